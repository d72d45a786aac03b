package auth

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/zowe/zowe-cli-sub009/internal/config"
)

// ClientConfig holds the credentials used to call z/OSMF.
type ClientConfig struct {
	User               string
	Password           string
	Token              string
	TokenURL           string
	ClientID           string
	ClientSecret       string
	Scopes             []string
	RejectUnauthorized bool
	Timeout            time.Duration
}

// ClientConfigFrom extracts the client credentials from cfg.
func ClientConfigFrom(cfg *config.Config) ClientConfig {
	return ClientConfig{
		User:               cfg.Auth.User,
		Password:           cfg.Auth.Password,
		Token:              cfg.Auth.Token,
		TokenURL:           cfg.Auth.TokenURL,
		ClientID:           cfg.Auth.ClientID,
		ClientSecret:       cfg.Auth.ClientSecret,
		Scopes:             cfg.Auth.Scopes,
		RejectUnauthorized: cfg.Zosmf.RejectUnauthorized,
	}
}

// NewHTTPClient builds an HTTP client that authenticates every request.
// Client credentials take precedence over a static token, which takes
// precedence over basic auth.
func NewHTTPClient(ctx context.Context, cc ClientConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cc.RejectUnauthorized {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // mirrors reject_unauthorized=false
	}
	base := &http.Client{Transport: transport, Timeout: cc.Timeout}

	switch {
	case cc.TokenURL != "" && cc.ClientID != "":
		scopes := cc.Scopes
		if len(scopes) == 0 {
			scopes = DefaultScopes
		}
		ccfg := clientcredentials.Config{
			ClientID:     cc.ClientID,
			ClientSecret: cc.ClientSecret,
			TokenURL:     cc.TokenURL,
			Scopes:       scopes,
		}
		client := ccfg.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
		client.Timeout = cc.Timeout
		return client

	case cc.Token != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cc.Token, TokenType: "Bearer"})
		client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), ts)
		client.Timeout = cc.Timeout
		return client

	case cc.User != "":
		base.Transport = &basicAuthTransport{user: cc.User, password: cc.Password, base: transport}
		return base

	default:
		return base
	}
}

type basicAuthTransport struct {
	user     string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.user, t.password)
	return t.base.RoundTrip(r)
}
