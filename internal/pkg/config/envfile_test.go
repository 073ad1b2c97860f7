package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEnvFileParsesQuotesAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment line
PLAIN=value
DOUBLE="two words"
SINGLE='single quoted'
  SPACED = padded
IGNORED LINE
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	values, err := ReadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, "value", values["PLAIN"])
	assert.Equal(t, "two words", values["DOUBLE"])
	assert.Equal(t, "single quoted", values["SINGLE"])
	assert.Equal(t, "padded", values["SPACED"])
	assert.NotContains(t, values, "IGNORED")
}

func TestReadEnvFileMissing(t *testing.T) {
	values, err := ReadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestUpsertEnvFilePreservesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	original := `# my notes
EXISTING=old
# trailing comment
`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	require.NoError(t, UpsertEnvFile(path, map[string]string{
		"EXISTING": "new",
		"ADDED":    "fresh",
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# my notes")
	assert.Contains(t, text, "# trailing comment")
	assert.Contains(t, text, "EXISTING=new")
	assert.Contains(t, text, "ADDED=fresh")
	assert.NotContains(t, text, "EXISTING=old")
}

func TestUpsertEnvFileIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	updates := map[string]string{
		"CEREBRO_DB_URL": "sqlite:///data/cerebro.db",
		"AI_PROVIDER":    "deepseek",
		"QUOTED":         "has spaces",
	}

	require.NoError(t, UpsertEnvFile(path, updates))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, UpsertEnvFile(path, updates))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "re-applying the same updates must be byte-identical")
}

func TestUpsertEnvFileNewFileHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, UpsertEnvFile(path, map[string]string{"KEY": "v"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), envFileHeader)
}

func TestSerializeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, UpsertEnvFile(path, map[string]string{"TRICKY": `va"lue with spaces`}))

	values, err := ReadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, `va"lue with spaces`, values["TRICKY"])
}
