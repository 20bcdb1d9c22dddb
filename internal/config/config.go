// Package config provides configuration management for the Vertex Bridge server.
// It handles loading and parsing the YAML configuration file, merging missing
// fields with defaults, and writing the configuration back to disk whenever a
// field changes so that state survives restarts.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Bind is the address the API server listens on.
	Bind string `yaml:"bind"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// Key is the static API key clients must present as a bearer token.
	// An empty key disables the inbound authorization check. A value with
	// a bcrypt prefix ($2) is treated as a bcrypt hash of the key.
	Key string `yaml:"key"`

	// AuthDir is the directory where the upstream token state file is stored.
	AuthDir string `yaml:"auth-dir"`

	// ProjectID is the Google Cloud project the upstream calls are billed to.
	// When empty it is resolved from Application Default Credentials at startup.
	ProjectID string `yaml:"project-id"`

	// Location is the Vertex AI region of the upstream endpoint.
	Location string `yaml:"location"`

	// EndpointID is the Vertex AI endpoint the chat completions proxy targets.
	EndpointID string `yaml:"endpoint-id"`

	// Publishers is the list of model publishers queried during catalog fan-out.
	// There is no upstream API to enumerate them, so they are configured.
	Publishers []string `yaml:"publishers"`

	// AutoRefresh enables the periodic background token refresh task.
	AutoRefresh bool `yaml:"auto-refresh"`

	// FilterModelNames narrows the model catalog to the configured prefixes.
	FilterModelNames bool `yaml:"filter-model-names"`

	// ModelNameFilters is the prefix allow-list applied when FilterModelNames
	// is enabled.
	ModelNameFilters []string `yaml:"model-name-filters"`

	// ProxyURL is the URL of an optional proxy server for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// RequestLog enables per-request logging with request ids.
	RequestLog bool `yaml:"request-log"`

	// LoggingToFile redirects application logs to rotating files under logs/.
	LoggingToFile bool `yaml:"logging-to-file"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the configuration used when no file exists or a field
// is absent from the loaded file.
func DefaultConfig() *Config {
	return &Config{
		Bind:             "localhost",
		Port:             8086,
		Key:              "",
		AuthDir:          "auth",
		Location:         "us-central1",
		EndpointID:       "openapi",
		Publishers:       []string{"google", "anthropic", "meta"},
		AutoRefresh:      true,
		FilterModelNames: true,
		ModelNameFilters: []string{"google/gemini-", "anthropic/claude-", "meta/llama"},
	}
}

// LoadConfig reads the YAML configuration file from the given path and merges
// it with the defaults. A missing file yields the defaults and writes them to
// disk so the operator has a file to edit.
//
// Parameters:
//   - configFile: The path to the YAML configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error only when the file exists but cannot be read or parsed
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			if errSave := SaveConfig(configFile, cfg); errSave != nil {
				return nil, fmt.Errorf("failed to write default config: %w", errSave)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default value.
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to the given path synchronously. It is
// called after every mutation so restarts observe the latest state.
func SaveConfig(configFile string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(configFile); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err = os.WriteFile(configFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// UpstreamBase returns the scheme://host prefix of the Vertex AI API for the
// configured region. Derived from the live configuration so a hot-reloaded
// location takes effect on the next request.
func (c *Config) UpstreamBase() string {
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.Location)
}

// IsLoopbackBind reports whether the configured bind address only accepts
// local connections. Used to warn when the server is exposed without a key.
func (c *Config) IsLoopbackBind() bool {
	switch c.Bind {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
