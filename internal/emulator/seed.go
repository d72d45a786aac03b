package emulator

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zowe/zowe-cli-sub009/internal/workflow"
	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// Seed is the YAML document used to preload an emulator.
//
//	definitions:
//	  - path: /u/ibmuser/wf.xml
//	    workflowID: sample
//	    steps:
//	      - name: Step1
//	        submitAs: JCL
//	    returnCodes:
//	      Step1: "0000"
//	workflows:
//	  - workflowName: W1
//	    workflowDefinitionFile: /u/ibmuser/wf.xml
//	    system: SYS1
//	    owner: IBMUSER
type Seed struct {
	Definitions []SeedDefinition `yaml:"definitions"`
	Workflows   []SeedWorkflow   `yaml:"workflows"`
}

// SeedDefinition is a definition file entry of a Seed.
type SeedDefinition struct {
	models.WorkflowDefinition `yaml:",inline"`

	Path        string            `yaml:"path"`
	ReturnCodes map[string]string `yaml:"returnCodes,omitempty"`
}

// SeedWorkflow is a workflow instance created when the seed is applied.
type SeedWorkflow struct {
	WorkflowName           string `yaml:"workflowName"`
	WorkflowDefinitionFile string `yaml:"workflowDefinitionFile"`
	System                 string `yaml:"system"`
	Owner                  string `yaml:"owner"`
	// Variables uses the inline "NAME=value,..." form.
	Variables string `yaml:"variables,omitempty"`
}

// LoadSeed decodes a seed document. Unknown fields are rejected.
func LoadSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed Seed
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	for i, d := range seed.Definitions {
		if d.Path == "" {
			return nil, fmt.Errorf("seed definition %d: path must not be empty", i)
		}
	}
	return &seed, nil
}

// LoadSeedFile reads a seed document from path.
func LoadSeedFile(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return LoadSeed(f)
}

// Apply registers the seed definitions and creates the seed workflows. It
// returns the keys of the created workflows in seed order.
func (s *Seed) Apply(ctx context.Context, b *Backend) ([]string, error) {
	for _, d := range s.Definitions {
		b.AddDefinition(Definition{Path: d.Path, Definition: d.WorkflowDefinition, ReturnCodes: d.ReturnCodes})
	}

	keys := make([]string, 0, len(s.Workflows))
	for _, w := range s.Workflows {
		vars, err := workflow.ParseProperties(w.Variables)
		if err != nil {
			return keys, fmt.Errorf("seed workflow %s: %w", w.WorkflowName, err)
		}
		created, err := b.Create(ctx, workflow.CreateRequest{
			WorkflowName:           w.WorkflowName,
			WorkflowDefinitionFile: w.WorkflowDefinitionFile,
			System:                 w.System,
			Owner:                  w.Owner,
			Variables:              vars,
		})
		if err != nil {
			return keys, fmt.Errorf("seed workflow %s: %w", w.WorkflowName, err)
		}
		keys = append(keys, created.WorkflowKey)
	}
	return keys, nil
}
