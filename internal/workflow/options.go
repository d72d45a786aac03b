package workflow

import (
	"strings"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

// Resource paths of the z/OSMF workflow REST service.
const (
	DefaultVersion        = "1.0"
	ResourceRoot          = "/zosmf/workflow/rest"
	WorkflowsResource     = "workflows"
	ArchivedResource      = "archivedworkflows"
	DefinitionResource    = "workflowDefinition"
	StartOperation        = "operations/start"
	CancelOperation       = "operations/cancel"
	ArchiveOperation      = "operations/archive"
	ReturnDataParam       = "returnData"
	DefinitionPathParam   = "definitionFilePath"
	ReturnDataSteps       = "steps"
	ReturnDataVariables   = "variables"
	CSRFHeader            = "X-CSRF-ZOSMF-HEADER"
	DefaultAccessType     = AccessPublic
	DefaultAssignToOwner  = true
	DefaultDeleteComplete = false
)

// Access types accepted on create.
const (
	AccessPublic     = "Public"
	AccessRestricted = "Restricted"
	AccessPrivate    = "Private"
)

// Conflict resolution modes accepted on start.
const (
	ConflictOutputFileValue = "outputFileValue"
	ConflictExistingValue   = "existingValue"
	ConflictLeave           = "leaveConflict"
)

// Global conflict modes accepted when creating a workflow.
const (
	ConflictGlobal = "global"
	ConflictInput  = "input"
)

// CreateRequest is the body of a create-workflow request. Nil pointers and
// empty strings are filled with service defaults by Normalize.
type CreateRequest struct {
	WorkflowName                 string            `json:"workflowName"`
	WorkflowDefinitionFile       string            `json:"workflowDefinitionFile"`
	System                       string            `json:"system"`
	Owner                        string            `json:"owner"`
	VariableInputFile            string            `json:"variableInputFile,omitempty"`
	Variables                    []models.Variable `json:"variables,omitempty"`
	AssignToOwner                *bool             `json:"assignToOwner,omitempty"`
	AccessType                   string            `json:"accessType,omitempty"`
	DeleteCompletedJobs          *bool             `json:"deleteCompletedJobs,omitempty"`
	JobStatement                 string            `json:"jobStatement,omitempty"`
	AccountInfo                  string            `json:"accountInfo,omitempty"`
	Comments                     string            `json:"comments,omitempty"`
	ResolveGlobalConflictByUsing string            `json:"resolveGlobalConflictByUsing,omitempty"`
}

// Normalize applies the create defaults and reduces a leading "//" on host
// paths to a single slash.
func (r CreateRequest) Normalize() CreateRequest {
	out := r
	out.WorkflowDefinitionFile = trimDoubleSlash(out.WorkflowDefinitionFile)
	out.VariableInputFile = trimDoubleSlash(out.VariableInputFile)
	if out.AssignToOwner == nil {
		v := DefaultAssignToOwner
		out.AssignToOwner = &v
	}
	if out.AccessType == "" {
		out.AccessType = DefaultAccessType
	}
	if out.DeleteCompletedJobs == nil {
		v := DefaultDeleteComplete
		out.DeleteCompletedJobs = &v
	}
	return out
}

// StartOptions scope a start request. An empty StepName starts the whole
// workflow.
type StartOptions struct {
	ResolveConflictByUsing string `json:"resolveConflictByUsing,omitempty"`
	StepName               string `json:"stepName,omitempty"`
	PerformSubsequent      *bool  `json:"performSubsequent,omitempty"`
}

// Subsequent reports whether steps after StepName should run too.
func (o StartOptions) Subsequent() bool {
	return o.PerformSubsequent != nil && *o.PerformSubsequent
}

// PropertiesOptions select the optional parts of a properties or
// definition response.
type PropertiesOptions struct {
	IncludeSteps     bool
	IncludeVariables bool
}

// ReturnData renders the returnData query value, or "" when nothing extra
// is requested.
func (o PropertiesOptions) ReturnData() string {
	var parts []string
	if o.IncludeSteps {
		parts = append(parts, ReturnDataSteps)
	}
	if o.IncludeVariables {
		parts = append(parts, ReturnDataVariables)
	}
	return strings.Join(parts, ",")
}

// ParseReturnData is the inverse of ReturnData.
func ParseReturnData(value string) PropertiesOptions {
	var opts PropertiesOptions
	for _, part := range strings.Split(value, ",") {
		switch strings.TrimSpace(part) {
		case ReturnDataSteps:
			opts.IncludeSteps = true
		case ReturnDataVariables:
			opts.IncludeVariables = true
		}
	}
	return opts
}

func trimDoubleSlash(path string) string {
	if strings.HasPrefix(path, "//") {
		return path[1:]
	}
	return path
}
