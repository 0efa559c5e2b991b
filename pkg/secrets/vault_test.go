package secrets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vaultServer(t *testing.T, wantPath string, payload string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(server.Close)
	return server
}

func testVaultConfig(addr string) VaultConfig {
	return VaultConfig{
		Enabled:   true,
		Addr:      addr,
		Token:     "test-token",
		Mount:     "secret",
		Path:      "waitline/api",
		KVVersion: 2,
		Timeout:   2 * time.Second,
	}
}

func TestApplyVaultSecrets_Disabled(t *testing.T) {
	result, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, result.Enabled)
}

func TestApplyVaultSecrets_IncompleteConfig(t *testing.T) {
	_, err := ApplyVaultSecrets(context.Background(), VaultConfig{Enabled: true})
	require.Error(t, err)
}

func TestApplyVaultSecrets_KVv2(t *testing.T) {
	server := vaultServer(t, "/v1/secret/data/waitline/api",
		`{"data":{"data":{"TEST_VAULT_SMS_API_KEY":"sk-123","TEST_VAULT_DB_PASSWORD":"hunter2"}}}`)

	t.Setenv("TEST_VAULT_SMS_API_KEY", "")
	t.Setenv("TEST_VAULT_DB_PASSWORD", "")
	os.Unsetenv("TEST_VAULT_SMS_API_KEY")
	os.Unsetenv("TEST_VAULT_DB_PASSWORD")

	result, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Loaded)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, "sk-123", os.Getenv("TEST_VAULT_SMS_API_KEY"))
	assert.Equal(t, "hunter2", os.Getenv("TEST_VAULT_DB_PASSWORD"))
}

func TestApplyVaultSecrets_KVv1(t *testing.T) {
	server := vaultServer(t, "/v1/secret/waitline/api",
		`{"data":{"TEST_VAULT_V1_KEY":"value"}}`)

	t.Setenv("TEST_VAULT_V1_KEY", "")
	os.Unsetenv("TEST_VAULT_V1_KEY")

	cfg := testVaultConfig(server.URL)
	cfg.KVVersion = 1

	result, err := ApplyVaultSecrets(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Loaded)
	assert.Equal(t, "value", os.Getenv("TEST_VAULT_V1_KEY"))
}

func TestApplyVaultSecrets_SkipsSetVariablesWithoutOverwrite(t *testing.T) {
	server := vaultServer(t, "/v1/secret/data/waitline/api",
		`{"data":{"data":{"TEST_VAULT_EXISTING":"from-vault"}}}`)

	t.Setenv("TEST_VAULT_EXISTING", "from-env")

	result, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Loaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "from-env", os.Getenv("TEST_VAULT_EXISTING"))
}

func TestApplyVaultSecrets_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	_, err := ApplyVaultSecrets(context.Background(), testVaultConfig(server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault fetch failed")
}

func TestBuildVaultURL(t *testing.T) {
	url, err := buildVaultURL("http://vault:8200/", "secret", "/waitline/api", 2)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/data/waitline/api", url)

	url, err = buildVaultURL("http://vault:8200", "secret", "waitline/api", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://vault:8200/v1/secret/waitline/api", url)

	_, err = buildVaultURL("", "secret", "path", 2)
	require.Error(t, err)
}
