package models

// Status names reported by z/OSMF in WorkflowInstance.StatusName.
const (
	StatusInProgress           = "in-progress"
	StatusAutomationInProgress = "automation-in-progress"
	StatusComplete             = "complete"
	StatusCanceled             = "canceled"
	StatusFailed               = "failed"
)

// Step states reported in StepNode.State.
const (
	StepReady      = "Ready"
	StepInProgress = "In Progress"
	StepSubmitted  = "Submitted"
	StepComplete   = "Complete"
	StepSkipped    = "Skipped"
	StepFailed     = "Failed"
	StepUnassigned = "Unassigned"
)

// WorkflowInstance is a snapshot of a server-managed workflow instance.
// The key is assigned by the server and never changes.
type WorkflowInstance struct {
	WorkflowKey         string            `json:"workflowKey" yaml:"workflowKey"`
	WorkflowName        string            `json:"workflowName" yaml:"workflowName"`
	WorkflowDescription string            `json:"workflowDescription,omitempty" yaml:"workflowDescription,omitempty"`
	WorkflowID          string            `json:"workflowID,omitempty" yaml:"workflowID,omitempty"`
	WorkflowVersion     string            `json:"workflowVersion,omitempty" yaml:"workflowVersion,omitempty"`
	Owner               string            `json:"owner,omitempty" yaml:"owner,omitempty"`
	System              string            `json:"system,omitempty" yaml:"system,omitempty"`
	Vendor              string            `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Category            string            `json:"category,omitempty" yaml:"category,omitempty"`
	AccessType          string            `json:"accessType,omitempty" yaml:"accessType,omitempty"`
	StatusName          string            `json:"statusName" yaml:"statusName"`
	PercentComplete     int               `json:"percentComplete" yaml:"percentComplete"`
	DeleteCompletedJobs bool              `json:"deleteCompletedJobs" yaml:"deleteCompletedJobs"`
	AutomationStatus    *AutomationStatus `json:"automationStatus,omitempty" yaml:"automationStatus,omitempty"`
	Steps               []StepNode        `json:"steps,omitempty" yaml:"steps,omitempty"`
	Variables           []Variable        `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// AutomationStatus points at the step the server is currently running
// automatically. An empty CurrentStepName means no step is running.
type AutomationStatus struct {
	StartUser         string `json:"startUser,omitempty" yaml:"startUser,omitempty"`
	StartedTime       int64  `json:"startedTime,omitempty" yaml:"startedTime,omitempty"` // epoch millis
	StoppedTime       int64  `json:"stoppedTime,omitempty" yaml:"stoppedTime,omitempty"` // epoch millis
	CurrentStepName   string `json:"currentStepName,omitempty" yaml:"currentStepName,omitempty"`
	CurrentStepNumber string `json:"currentStepNumber,omitempty" yaml:"currentStepNumber,omitempty"`
	CurrentStepTitle  string `json:"currentStepTitle,omitempty" yaml:"currentStepTitle,omitempty"`
	MessageID         string `json:"messageID,omitempty" yaml:"messageID,omitempty"`
	MessageText       string `json:"messageText,omitempty" yaml:"messageText,omitempty"`
}

// StepNode is one step of a workflow. Children hold nested sub-steps in
// document order; a parent with children is a step group.
type StepNode struct {
	Name               string     `json:"name" yaml:"name"`
	Title              string     `json:"title,omitempty" yaml:"title,omitempty"`
	Description        string     `json:"description,omitempty" yaml:"description,omitempty"`
	StepNumber         string     `json:"stepNumber" yaml:"stepNumber"`
	State              string     `json:"state" yaml:"state"`
	IsRestStep         bool       `json:"isRestStep" yaml:"isRestStep"`
	ActualStatusCode   string     `json:"actualStatusCode,omitempty" yaml:"actualStatusCode,omitempty"`
	ExpectedStatusCode string     `json:"expectedStatusCode,omitempty" yaml:"expectedStatusCode,omitempty"`
	SubmitAs           string     `json:"submitAs,omitempty" yaml:"submitAs,omitempty"`
	JobInfo            *JobInfo   `json:"jobInfo,omitempty" yaml:"jobInfo,omitempty"`
	Template           string     `json:"template,omitempty" yaml:"template,omitempty"`
	ReturnCode         *string    `json:"returnCode,omitempty" yaml:"returnCode,omitempty"`
	RunAsUser          string     `json:"runAsUser,omitempty" yaml:"runAsUser,omitempty"`
	Owner              string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	Optional           bool       `json:"optional" yaml:"optional"`
	Children           []StepNode `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// JobInfo describes the batch job submitted for a JCL step.
type JobInfo struct {
	JobStatus *JobStatus `json:"jobstatus,omitempty" yaml:"jobstatus,omitempty"`
	JobFiles  []JobFile  `json:"jobfiles,omitempty" yaml:"jobfiles,omitempty"`
}

type JobStatus struct {
	JobID   string `json:"jobid" yaml:"jobid"`
	JobName string `json:"jobname,omitempty" yaml:"jobname,omitempty"`
	Owner   string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Status  string `json:"status,omitempty" yaml:"status,omitempty"`
	RetCode string `json:"retcode,omitempty" yaml:"retcode,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Class   string `json:"class,omitempty" yaml:"class,omitempty"`
}

type JobFile struct {
	ID       int    `json:"id" yaml:"id"`
	DDName   string `json:"ddname" yaml:"ddname"`
	ByteCnt  int    `json:"byteCount,omitempty" yaml:"byteCount,omitempty"`
	RecordCt int    `json:"recordCount,omitempty" yaml:"recordCount,omitempty"`
	StepName string `json:"stepname,omitempty" yaml:"stepname,omitempty"`
}

// Variable is a workflow variable assignment.
type Variable struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
}

// StepSummary is the flattened, display-oriented view of one step.
type StepSummary struct {
	StepNumber string `json:"stepNumber" yaml:"stepNumber"`
	Name       string `json:"name" yaml:"name"`
	State      string `json:"state" yaml:"state"`
	Misc       string `json:"misc" yaml:"misc"`
}
