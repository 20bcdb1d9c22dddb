package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luispater/VertexBridge/internal/config"
)

func TestLoadConfigMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Bind)
	assert.Equal(t, 8086, cfg.Port)
	assert.True(t, cfg.AutoRefresh)
	assert.True(t, cfg.FilterModelNames)
	assert.Equal(t, []string{"google", "anthropic", "meta"}, cfg.Publishers)

	// The defaults must have been persisted for the operator to edit.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestLoadConfigMergesPartialFileWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nkey: sekrit\n"), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sekrit", cfg.Key)
	// Absent keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Bind)
	assert.Equal(t, "us-central1", cfg.Location)
	assert.Equal(t, "openapi", cfg.EndpointID)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a port\n"), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Port = 8443
	cfg.Bind = "0.0.0.0"
	cfg.ModelNameFilters = []string{"google/gemini-"}
	require.NoError(t, config.SaveConfig(path, cfg))

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestIsLoopbackBind(t *testing.T) {
	tests := []struct {
		bind string
		want bool
	}{
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"0.0.0.0", false},
		{"192.168.1.10", false},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		cfg.Bind = tt.bind
		assert.Equal(t, tt.want, cfg.IsLoopbackBind(), "bind %q", tt.bind)
	}
}

func TestUpstreamBase(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Equal(t, "https://us-central1-aiplatform.googleapis.com", cfg.UpstreamBase())

	// The host follows the live location, so a reloaded region changes the
	// upstream on the next derivation.
	cfg.Location = "europe-west4"
	assert.Equal(t, "https://europe-west4-aiplatform.googleapis.com", cfg.UpstreamBase())
}
