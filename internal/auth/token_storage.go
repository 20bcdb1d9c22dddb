// Package auth provides credential acquisition and token state persistence
// for the Vertex Bridge server. It obtains bearer tokens for the Vertex AI
// API either from Google Application Default Credentials or from a stored
// OAuth2 refresh token produced by the interactive login flow, and persists
// the current access token and its expiry across restarts.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// TokenStorage holds the persisted upstream credential state. The expiry is
// stored as an RFC 3339 string; an absent or unparsable value is treated by
// the token manager as an expired token, never as an error.
type TokenStorage struct {
	// AccessToken is the current bearer token for upstream calls.
	AccessToken string `json:"access_token"`

	// TokenExpiry is the absolute UTC expiry instant of AccessToken.
	TokenExpiry string `json:"token_expiry"`

	// RefreshToken is the OAuth2 refresh token written by the login flow.
	// Empty when credentials come from Application Default Credentials.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ProjectID is the Google Cloud project associated with this credential.
	ProjectID string `json:"project_id,omitempty"`

	// Type identifies the credential kind, always "vertex" for this storage.
	Type string `json:"type"`
}

// LoadTokenStorage reads the token state file at the given path. A missing or
// malformed file yields empty state: the token manager will simply treat the
// token as invalid and refresh.
func LoadTokenStorage(path string) *TokenStorage {
	ts := &TokenStorage{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("failed to read token state file %s: %v", path, err)
		}
		return ts
	}
	if !gjson.ValidBytes(data) {
		log.Warnf("token state file %s is not valid JSON, starting with empty state", path)
		return ts
	}

	ts.AccessToken = gjson.GetBytes(data, "access_token").String()
	ts.TokenExpiry = gjson.GetBytes(data, "token_expiry").String()
	ts.RefreshToken = gjson.GetBytes(data, "refresh_token").String()
	ts.ProjectID = gjson.GetBytes(data, "project_id").String()
	ts.Type = gjson.GetBytes(data, "type").String()

	return ts
}

// SaveToFile writes the token state to the given path. Existing file contents
// are updated field by field so any unknown keys written by other tools
// survive the rewrite.
//
// Parameters:
//   - path: The full path where the token state file should be saved
//
// Returns:
//   - error: An error if the operation fails, nil otherwise
func (ts *TokenStorage) SaveToFile(path string) error {
	ts.Type = "vertex"

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || !gjson.ValidBytes(data) {
		data = []byte("{}")
	}
	data, _ = sjson.SetBytes(data, "access_token", ts.AccessToken)
	data, _ = sjson.SetBytes(data, "token_expiry", ts.TokenExpiry)
	data, _ = sjson.SetBytes(data, "project_id", ts.ProjectID)
	data, _ = sjson.SetBytes(data, "type", ts.Type)
	if ts.RefreshToken != "" {
		data, _ = sjson.SetBytes(data, "refresh_token", ts.RefreshToken)
	}

	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token state file: %w", err)
	}
	return nil
}

// TokenFilePath returns the token state file location inside the auth dir.
func TokenFilePath(authDir string) string {
	return filepath.Join(authDir, "vertex.json")
}
