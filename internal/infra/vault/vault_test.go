package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileVault(t *testing.T) *Vault {
	t.Helper()
	return New(BackendFile, "cerebro-test", filepath.Join(t.TempDir(), "sessions.json"))
}

func TestFileVaultRoundTrip(t *testing.T) {
	v := newFileVault(t)

	require.NoError(t, v.Set("weread", "wr_cookie=abc123"))

	secret, err := v.Get("weread")
	require.NoError(t, err)
	assert.Equal(t, "wr_cookie=abc123", secret)

	// Overwrite keeps the latest value.
	require.NoError(t, v.Set("weread", "wr_cookie=def456"))
	secret, err = v.Get("weread")
	require.NoError(t, err)
	assert.Equal(t, "wr_cookie=def456", secret)
}

func TestFileVaultMissingProvider(t *testing.T) {
	v := newFileVault(t)
	secret, err := v.Get("nobody")
	require.NoError(t, err)
	assert.Empty(t, secret)
}

func TestFileVaultDelete(t *testing.T) {
	v := newFileVault(t)
	require.NoError(t, v.Set("weread", "secret"))
	require.NoError(t, v.Delete("weread"))
	secret, err := v.Get("weread")
	require.NoError(t, err)
	assert.Empty(t, secret)

	// Deleting again is a no-op.
	require.NoError(t, v.Delete("weread"))
}

func TestFileVaultPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	v := New(BackendFile, "cerebro-test", path)
	require.NoError(t, v.Set("weread", "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileVaultCorruptStoreTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	v := New(BackendFile, "cerebro-test", path)
	secret, err := v.Get("weread")
	require.NoError(t, err)
	assert.Empty(t, secret)
}
