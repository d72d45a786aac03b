package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zowe/zowe-cli-sub009/internal/config"
)

func echoAuthorization(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, client *http.Client, url string) string {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := make([]byte, 512)
	n, _ := resp.Body.Read(buf)
	return string(buf[:n])
}

func TestNewHTTPClientBasic(t *testing.T) {
	srv := echoAuthorization(t)
	client := NewHTTPClient(context.Background(), ClientConfig{User: "ibmuser", Password: "secret", RejectUnauthorized: true})

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("ibmuser", "secret")
	assert.Equal(t, req.Header.Get("Authorization"), get(t, client, srv.URL))
}

func TestNewHTTPClientStaticToken(t *testing.T) {
	srv := echoAuthorization(t)
	client := NewHTTPClient(context.Background(), ClientConfig{Token: "abc123", User: "ignored", RejectUnauthorized: true})
	assert.Equal(t, "Bearer abc123", get(t, client, srv.URL))
}

func TestNewHTTPClientClientCredentials(t *testing.T) {
	var gotScope string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		gotScope = r.Form.Get("scope")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "issued-token",
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenSrv.Close()

	srv := echoAuthorization(t)
	client := NewHTTPClient(context.Background(), ClientConfig{
		TokenURL:           tokenSrv.URL,
		ClientID:           "zwf",
		ClientSecret:       "s3cret",
		RejectUnauthorized: true,
	})
	assert.Equal(t, "Bearer issued-token", get(t, client, srv.URL))
	assert.Equal(t, "openid zwf:read zwf:write", gotScope)
}

func TestNewHTTPClientInsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	strict := NewHTTPClient(context.Background(), ClientConfig{RejectUnauthorized: true})
	_, err := strict.Get(srv.URL)
	assert.Error(t, err)

	lenient := NewHTTPClient(context.Background(), ClientConfig{RejectUnauthorized: false})
	resp, err := lenient.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestClientConfigFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.User = "ibmuser"
	cfg.Auth.Scopes = []string{"a"}
	cfg.Zosmf.RejectUnauthorized = true

	cc := ClientConfigFrom(cfg)
	assert.Equal(t, "ibmuser", cc.User)
	assert.Equal(t, []string{"a"}, cc.Scopes)
	assert.True(t, cc.RejectUnauthorized)
}
