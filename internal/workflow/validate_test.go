package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreate() CreateRequest {
	return CreateRequest{
		WorkflowName:           "W1",
		WorkflowDefinitionFile: "/u/ibmuser/wf.xml",
		System:                 "SYS1",
		Owner:                  "OWNER1",
	}
}

func TestValidateCreate(t *testing.T) {
	require.NoError(t, ValidateCreate(validCreate().Normalize()))

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"missing name", func(r *CreateRequest) { r.WorkflowName = "" }, "workflowName"},
		{"missing definition", func(r *CreateRequest) { r.WorkflowDefinitionFile = "" }, "workflowDefinitionFile"},
		{"missing system", func(r *CreateRequest) { r.System = "" }, "system"},
		{"missing owner", func(r *CreateRequest) { r.Owner = "" }, "owner"},
		{"owner too long", func(r *CreateRequest) { r.Owner = "TOOLONGUSER" }, "owner"},
		{"owner bad char", func(r *CreateRequest) { r.Owner = "a.b" }, "owner"},
		{"bad access type", func(r *CreateRequest) { r.AccessType = "Shared" }, "accessType"},
		{"bad conflict mode", func(r *CreateRequest) { r.ResolveGlobalConflictByUsing = "mine" }, "resolveGlobalConflictByUsing"},
		{"step conflict mode", func(r *CreateRequest) { r.ResolveGlobalConflictByUsing = ConflictExistingValue }, "resolveGlobalConflictByUsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreate()
			tt.mutate(&req)

			var verr *ValidationError
			require.ErrorAs(t, ValidateCreate(req), &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateCreateGlobalConflictModes(t *testing.T) {
	for _, mode := range []string{"", ConflictGlobal, ConflictInput} {
		req := validCreate()
		req.ResolveGlobalConflictByUsing = mode
		assert.NoError(t, ValidateCreate(req.Normalize()), "mode %q", mode)
	}
}

func TestCreateRequestNormalize(t *testing.T) {
	req := validCreate()
	req.WorkflowDefinitionFile = "//u/ibmuser/wf.xml"
	req.VariableInputFile = "//u/ibmuser/vars.properties"

	got := req.Normalize()
	assert.Equal(t, "/u/ibmuser/wf.xml", got.WorkflowDefinitionFile)
	assert.Equal(t, "/u/ibmuser/vars.properties", got.VariableInputFile)
	require.NotNil(t, got.AssignToOwner)
	assert.True(t, *got.AssignToOwner)
	require.NotNil(t, got.DeleteCompletedJobs)
	assert.False(t, *got.DeleteCompletedJobs)
	assert.Equal(t, AccessPublic, got.AccessType)

	no := false
	req.AssignToOwner = &no
	req.AccessType = AccessPrivate
	got = req.Normalize()
	assert.False(t, *got.AssignToOwner)
	assert.Equal(t, AccessPrivate, got.AccessType)
}

func TestValidateStart(t *testing.T) {
	assert.NoError(t, ValidateStart("k1", StartOptions{ResolveConflictByUsing: ConflictLeave}))

	var verr *ValidationError
	require.ErrorAs(t, ValidateStart("", StartOptions{}), &verr)
	assert.Equal(t, "workflowKey", verr.Field)

	require.ErrorAs(t, ValidateStart("k1", StartOptions{ResolveConflictByUsing: "x"}), &verr)
	assert.Equal(t, "resolveConflictByUsing", verr.Field)
}

func TestPropertiesOptionsReturnData(t *testing.T) {
	assert.Equal(t, "", PropertiesOptions{}.ReturnData())
	assert.Equal(t, "steps", PropertiesOptions{IncludeSteps: true}.ReturnData())
	assert.Equal(t, "variables", PropertiesOptions{IncludeVariables: true}.ReturnData())
	assert.Equal(t, "steps,variables", PropertiesOptions{IncludeSteps: true, IncludeVariables: true}.ReturnData())

	assert.Equal(t, PropertiesOptions{IncludeSteps: true, IncludeVariables: true}, ParseReturnData("steps,variables"))
	assert.Equal(t, PropertiesOptions{}, ParseReturnData(""))
}
