package workflow

import (
	"regexp"
)

// z/OS user IDs are 1-8 characters from A-Z, 0-9, #, $ and @.
var ownerPattern = regexp.MustCompile(`^[a-zA-Z0-9#$@]{1,8}$`)

// RequireNotEmpty returns a ValidationError naming field when value is empty.
func RequireNotEmpty(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// ValidateKey checks a workflow key argument.
func ValidateKey(key string) error {
	return RequireNotEmpty("workflowKey", key)
}

// ValidateVersion checks the z/OSMF workflow service version.
func ValidateVersion(version string) error {
	return RequireNotEmpty("zOSMFVersion", version)
}

// ValidateCreate checks a create request after Normalize.
func ValidateCreate(req CreateRequest) error {
	required := []struct{ field, value string }{
		{"workflowName", req.WorkflowName},
		{"workflowDefinitionFile", req.WorkflowDefinitionFile},
		{"system", req.System},
		{"owner", req.Owner},
	}
	for _, r := range required {
		if err := RequireNotEmpty(r.field, r.value); err != nil {
			return err
		}
	}
	if !ownerPattern.MatchString(req.Owner) {
		return &ValidationError{Field: "owner", Message: "must be a valid z/OS user ID"}
	}
	switch req.AccessType {
	case "", AccessPublic, AccessRestricted, AccessPrivate:
	default:
		return &ValidationError{Field: "accessType", Message: "must be Public, Restricted or Private"}
	}
	return validateGlobalConflictMode(req.ResolveGlobalConflictByUsing)
}

// ValidateStart checks a start request.
func ValidateStart(key string, opts StartOptions) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	return validateConflictMode("resolveConflictByUsing", opts.ResolveConflictByUsing)
}

// ValidateDefinitionPath checks a definition file path argument.
func ValidateDefinitionPath(path string) error {
	return RequireNotEmpty("definitionFilePath", path)
}

func validateConflictMode(field, mode string) error {
	switch mode {
	case "", ConflictOutputFileValue, ConflictExistingValue, ConflictLeave:
		return nil
	default:
		return &ValidationError{
			Field:   field,
			Message: "must be outputFileValue, existingValue or leaveConflict",
		}
	}
}

func validateGlobalConflictMode(mode string) error {
	switch mode {
	case "", ConflictGlobal, ConflictInput:
		return nil
	default:
		return &ValidationError{
			Field:   "resolveGlobalConflictByUsing",
			Message: "must be global or input",
		}
	}
}
