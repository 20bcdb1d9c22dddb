package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// cloudPlatformScope is the single scope requested for all upstream calls.
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// OAuth client of the Google Cloud SDK, used by the interactive login
	// flow. Tokens minted against it carry the cloud-platform scope.
	oauthClientID     = "764086051850-6qr4p6gpi6hn506pt8ejuq83di341hur.apps.googleusercontent.com"
	oauthClientSecret = "d-FL95Q19q7MQmFpd7hHD0Ty"
)

// CredentialSource produces a bearer token together with its absolute expiry
// instant. Implementations do not cache: every call yields a token fresh
// enough to outlive the manager's safety margin.
type CredentialSource interface {
	Credential(ctx context.Context) (token string, expiry time.Time, err error)
}

// ADCSource obtains tokens from Google Application Default Credentials, the
// same mechanism "gcloud auth application-default login" configures.
type ADCSource struct {
	httpClient *http.Client
}

// NewADCSource creates a credential source backed by Application Default
// Credentials. The provided HTTP client, when non-nil, carries the outbound
// proxy configuration into the token endpoint calls.
func NewADCSource(httpClient *http.Client) *ADCSource {
	return &ADCSource{httpClient: httpClient}
}

// Credential looks up default credentials and mints a token. Credentials are
// re-resolved on every call so the returned token is never a stale cache hit.
func (s *ADCSource) Credential(ctx context.Context) (string, time.Time, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to find default credentials: %w", err)
	}
	tok, err := creds.TokenSource.Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to mint token: %w", err)
	}
	return tok.AccessToken, tok.Expiry.UTC(), nil
}

// ProjectID resolves the default Google Cloud project from the environment.
func (s *ADCSource) ProjectID(ctx context.Context) (string, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return "", fmt.Errorf("failed to find default credentials: %w", err)
	}
	if creds.ProjectID == "" {
		return "", fmt.Errorf("project ID not found, please set up gcloud authentication or configure project-id")
	}
	return creds.ProjectID, nil
}

// RefreshTokenSource exchanges a stored OAuth2 refresh token for fresh access
// tokens. It is used after the interactive login flow has run.
type RefreshTokenSource struct {
	refreshToken string
	httpClient   *http.Client
}

// NewRefreshTokenSource creates a credential source from a refresh token.
func NewRefreshTokenSource(refreshToken string, httpClient *http.Client) *RefreshTokenSource {
	return &RefreshTokenSource{refreshToken: refreshToken, httpClient: httpClient}
}

// Credential performs the refresh grant. The base token deliberately carries
// no access token so the exchange always reaches the token endpoint instead
// of returning a cached value.
func (s *RefreshTokenSource) Credential(ctx context.Context) (string, time.Time, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	conf := oauthConfig()
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.refreshToken}).Token()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok.AccessToken, tok.Expiry.UTC(), nil
}

// NewCredentialSource picks the production credential source: the stored
// refresh token written by the login flow when present, Application Default
// Credentials otherwise.
func NewCredentialSource(ts *TokenStorage, httpClient *http.Client) CredentialSource {
	if ts != nil && ts.RefreshToken != "" {
		return NewRefreshTokenSource(ts.RefreshToken, httpClient)
	}
	return NewADCSource(httpClient)
}

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     oauthClientID,
		ClientSecret: oauthClientSecret,
		Scopes:       []string{cloudPlatformScope},
		Endpoint:     google.Endpoint,
	}
}
