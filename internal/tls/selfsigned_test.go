package tls

import (
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "certs", "server.crt")
	keyPath := filepath.Join(dir, "certs", "server.key")

	created, err := EnsureCertificate(certPath, keyPath, []string{"zosmf.local", "127.0.0.1"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureCertificate(certPath, keyPath, nil)
	require.NoError(t, err)
	assert.False(t, created, "existing pair is reused")

	cfg, err := ServerConfig(certPath, keyPath)
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	leaf, err := x509.ParseCertificate(cfg.Certificates[0].Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"zosmf.local"}, leaf.DNSNames)
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())
	assert.NoError(t, leaf.VerifyHostname("zosmf.local"))
}

func TestEnsureCertificateRequiresPaths(t *testing.T) {
	_, err := EnsureCertificate("", "key.pem", nil)
	assert.Error(t, err)
}

func TestServerConfigMissingFiles(t *testing.T) {
	_, err := ServerConfig(filepath.Join(t.TempDir(), "nope.crt"), "nope.key")
	assert.Error(t, err)
}
