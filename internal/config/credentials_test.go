package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCredentialsProducesCompleteSet(t *testing.T) {
	creds, err := GenerateCredentials()
	require.NoError(t, err)
	assert.True(t, creds.IsConfigured())
	assert.NotEmpty(t, creds.SecretKey)
	assert.NotEmpty(t, creds.PublicKey)
	assert.NotEmpty(t, creds.ID)
}

func TestGenerateCredentialsProducesDistinctKeys(t *testing.T) {
	a, err := GenerateCredentials()
	require.NoError(t, err)
	b, err := GenerateCredentials()
	require.NoError(t, err)

	assert.NotEqual(t, a.SecretKey, b.SecretKey)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLoadCredentialsBootstrapsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yml")

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.True(t, creds.IsConfigured())

	reloaded, err := readCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, creds, reloaded)
}

func TestLoadCredentialsReturnsExistingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yml")

	first, err := LoadCredentials(path)
	require.NoError(t, err)

	second, err := LoadCredentials(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoadCredentialsRegeneratesIncompleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yml")
	require.NoError(t, writeCredentials(path, Credentials{ID: "only-an-id"}))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.True(t, creds.IsConfigured())
	assert.NotEqual(t, "only-an-id", creds.ID)
}

func TestSaveCredentialsWritesToExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explicit.yml")
	creds, err := GenerateCredentials()
	require.NoError(t, err)

	resolved, err := SaveCredentials(path, creds)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	reloaded, err := readCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, creds, reloaded)
}
