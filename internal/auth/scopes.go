package auth

const (
	ScopeOpenID        = "openid"
	ScopeWorkflowRead  = "zwf:read"
	ScopeWorkflowWrite = "zwf:write"
)

// DefaultScopes are requested by the client-credentials flow when none are
// configured.
var DefaultScopes = []string{
	ScopeOpenID,
	ScopeWorkflowRead,
	ScopeWorkflowWrite,
}
