package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"

	"github.com/zowe/zowe-cli-sub009/internal/config"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Principal identifies the caller of an authenticated request.
type Principal struct {
	Subject string
	Email   string
	Method  string // "bearer", "basic" or "bypass"
	Scopes  []string
}

// HasScope reports whether the principal was granted scope. Basic and
// bypass principals carry every scope.
func (p Principal) HasScope(scope string) bool {
	if p.Method != MethodBearer {
		return true
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authentication methods recorded on a Principal.
const (
	MethodBearer = "bearer"
	MethodBasic  = "basic"
	MethodBypass = "bypass"
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by RequireAuth.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Auth guards HTTP handlers with OpenID Connect bearer tokens or a single
// basic-auth account.
type Auth struct {
	apiVerifier *oidc.IDTokenVerifier
	user        string
	password    string
	logger      Logger
	authBypass  bool
}

// New creates a new Auth object using values from the application
// configuration. When an issuer is configured it connects to the provider
// and prepares an access token verifier.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	a := &Auth{
		user:       cfg.Auth.User,
		password:   cfg.Auth.Password,
		logger:     logger,
		authBypass: cfg.Server.DevBypass,
	}
	if a.authBypass {
		return a, nil
	}

	if cfg.Auth.Issuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
		if err != nil {
			return nil, err
		}
		// Access tokens often carry a different audience than the client ID.
		a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	}

	if a.apiVerifier == nil && a.user == "" {
		return nil, errors.New("auth configuration is incomplete: set auth.issuer or auth.user")
	}
	return a, nil
}

// RequireAuth is middleware that admits requests carrying a valid bearer
// token or the configured basic credentials. The caller is stored in the
// request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principal Principal

		switch authHeader := r.Header.Get("Authorization"); {
		case a.authBypass:
			principal = Principal{Subject: "dev", Email: "dev@localhost", Method: MethodBypass}

		case strings.HasPrefix(authHeader, "Bearer ") && a.apiVerifier != nil:
			rawToken := strings.TrimPrefix(authHeader, "Bearer ")
			token, err := a.apiVerifier.Verify(r.Context(), rawToken)
			if err != nil {
				a.debug("bearer token rejected", "error", err)
				http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
			var claims struct {
				Email string   `json:"email"`
				Scope string   `json:"scope"`
				Scp   []string `json:"scp"`
			}
			if err := token.Claims(&claims); err != nil {
				http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
				return
			}
			scopes := claims.Scp
			if len(scopes) == 0 && claims.Scope != "" {
				scopes = strings.Fields(claims.Scope)
			}
			principal = Principal{Subject: token.Subject, Email: claims.Email, Method: MethodBearer, Scopes: scopes}

		default:
			user, password, ok := r.BasicAuth()
			if !ok || a.user == "" || !a.checkBasic(user, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="zwf"`)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			principal = Principal{Subject: user, Method: MethodBasic}
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func (a *Auth) checkBasic(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	return userOK && passOK
}

func (a *Auth) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
