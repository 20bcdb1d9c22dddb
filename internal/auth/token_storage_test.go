package auth_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/luispater/VertexBridge/internal/auth"
)

func TestTokenStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vertex.json")

	expiry := time.Date(2026, 8, 31, 12, 34, 56, 789012345, time.UTC)
	ts := &auth.TokenStorage{
		AccessToken: "ya29.test-token",
		TokenExpiry: expiry.Format(time.RFC3339Nano),
		ProjectID:   "my-project",
	}
	require.NoError(t, ts.SaveToFile(path))

	loaded := auth.LoadTokenStorage(path)
	assert.Equal(t, "ya29.test-token", loaded.AccessToken)
	assert.Equal(t, "vertex", loaded.Type)
	assert.Equal(t, "my-project", loaded.ProjectID)

	// The expiry instant must survive persistence without precision loss.
	parsed, err := time.Parse(time.RFC3339Nano, loaded.TokenExpiry)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(expiry))
}

func TestLoadTokenStorageMissingFile(t *testing.T) {
	loaded := auth.LoadTokenStorage(filepath.Join(t.TempDir(), "nope.json"))
	assert.Empty(t, loaded.AccessToken)
	assert.Empty(t, loaded.TokenExpiry)
}

func TestLoadTokenStorageMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vertex.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	loaded := auth.LoadTokenStorage(path)
	assert.Empty(t, loaded.AccessToken)
	assert.Empty(t, loaded.TokenExpiry)
}

func TestSaveToFilePreservesUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vertex.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"email":"user@example.com","access_token":"old"}`), 0o600))

	ts := &auth.TokenStorage{AccessToken: "new", TokenExpiry: "2026-09-01T00:00:00Z"}
	require.NoError(t, ts.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", gjson.GetBytes(data, "email").String())
	assert.Equal(t, "new", gjson.GetBytes(data, "access_token").String())
}
