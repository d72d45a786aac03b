// Package models defines the data exchanged with the z/OSMF workflow service
package models

import (
	"time"
)

// CreatedWorkflow is returned by the create-workflow request.
type CreatedWorkflow struct {
	WorkflowKey         string `json:"workflowKey" yaml:"workflowKey"`
	WorkflowDescription string `json:"workflowDescription,omitempty" yaml:"workflowDescription,omitempty"`
	WorkflowID          string `json:"workflowID,omitempty" yaml:"workflowID,omitempty"`
	WorkflowVersion     string `json:"workflowVersion,omitempty" yaml:"workflowVersion,omitempty"`
	Vendor              string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
}

// CanceledWorkflow is returned by the cancel-workflow request.
type CanceledWorkflow struct {
	WorkflowName string `json:"workflowName" yaml:"workflowName"`
}

// ArchivedWorkflow is returned by the archive-workflow request.
type ArchivedWorkflow struct {
	WorkflowKey string `json:"workflowKey" yaml:"workflowKey"`
}

// WorkflowSummary is one entry of the active workflow listing.
type WorkflowSummary struct {
	WorkflowKey                    string `json:"workflowKey" yaml:"workflowKey"`
	WorkflowName                   string `json:"workflowName" yaml:"workflowName"`
	WorkflowDescription            string `json:"workflowDescription,omitempty" yaml:"workflowDescription,omitempty"`
	WorkflowID                     string `json:"workflowID,omitempty" yaml:"workflowID,omitempty"`
	WorkflowVersion                string `json:"workflowVersion,omitempty" yaml:"workflowVersion,omitempty"`
	WorkflowDefinitionFileMD5Value string `json:"workflowDefinitionFileMD5Value,omitempty" yaml:"workflowDefinitionFileMD5Value,omitempty"`
	InstanceURI                    string `json:"instanceURI,omitempty" yaml:"instanceURI,omitempty"`
	Owner                          string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Vendor                         string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Category                       string `json:"category,omitempty" yaml:"category,omitempty"`
	System                         string `json:"system,omitempty" yaml:"system,omitempty"`
	StatusName                     string `json:"statusName,omitempty" yaml:"statusName,omitempty"`
}

// WorkflowList is the body of the active listing response.
type WorkflowList struct {
	Workflows []WorkflowSummary `json:"workflows"`
}

// ArchivedWorkflowSummary is one entry of the archived workflow listing.
type ArchivedWorkflowSummary struct {
	WorkflowKey         string `json:"workflowKey" yaml:"workflowKey"`
	WorkflowName        string `json:"workflowName" yaml:"workflowName"`
	ArchivedInstanceURI string `json:"archivedInstanceURI,omitempty" yaml:"archivedInstanceURI,omitempty"`
}

// ArchivedWorkflowList is the body of the archived listing response.
type ArchivedWorkflowList struct {
	ArchivedWorkflows []ArchivedWorkflowSummary `json:"archivedWorkflows"`
}

// WorkflowDefinition describes a workflow definition file on the host.
type WorkflowDefinition struct {
	WorkflowID            string               `json:"workflowID" yaml:"workflowID"`
	WorkflowDescription   string               `json:"workflowDescription,omitempty" yaml:"workflowDescription,omitempty"`
	WorkflowVersion       string               `json:"workflowVersion,omitempty" yaml:"workflowVersion,omitempty"`
	WorkflowDefaultName   string               `json:"workflowDefaultName,omitempty" yaml:"workflowDefaultName,omitempty"`
	Vendor                string               `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Category              string               `json:"category,omitempty" yaml:"category,omitempty"`
	ProductName           string               `json:"productName,omitempty" yaml:"productName,omitempty"`
	IsCallable            string               `json:"isCallable,omitempty" yaml:"isCallable,omitempty"`
	ContainsParallelSteps bool                 `json:"containsParallelSteps" yaml:"containsParallelSteps"`
	Scope                 string               `json:"scope,omitempty" yaml:"scope,omitempty"`
	Steps                 []StepNode           `json:"steps,omitempty" yaml:"steps,omitempty"`
	Variables             []VariableDefinition `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// VariableDefinition describes a variable declared by a definition file.
type VariableDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Scope       string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Abstract    string `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Run records the outcome of one orchestration session.
type Run struct {
	ID           string    `json:"id" yaml:"id"`
	WorkflowKey  string    `json:"workflow_key" yaml:"workflow_key"`
	WorkflowName string    `json:"workflow_name,omitempty" yaml:"workflow_name,omitempty"`
	Mode         string    `json:"mode" yaml:"mode"`
	StepName     string    `json:"step_name,omitempty" yaml:"step_name,omitempty"`
	State        string    `json:"state" yaml:"state"`
	StatusName   string    `json:"status_name,omitempty" yaml:"status_name,omitempty"`
	ReturnCode   string    `json:"return_code,omitempty" yaml:"return_code,omitempty"`
	Polls        int       `json:"polls" yaml:"polls"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
}
