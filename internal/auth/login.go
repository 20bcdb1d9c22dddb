package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/oauth2"
)

// Login runs the interactive OAuth2 authorization flow: it starts a local
// callback server, opens the user's browser to the consent page, exchanges
// the authorization code for tokens, and writes the resulting credential
// state to the token file inside authDir. projectID, when non-empty, is
// recorded alongside the credential.
func Login(ctx context.Context, authDir, projectID string) error {
	conf := oauthConfig()
	conf.RedirectURL = "http://localhost:8085/oauth2callback"

	token, err := getTokenFromWeb(ctx, conf)
	if err != nil {
		return fmt.Errorf("failed to get token from web: %w", err)
	}

	ts := &TokenStorage{
		AccessToken:  token.AccessToken,
		TokenExpiry:  token.Expiry.UTC().Format(time.RFC3339Nano),
		RefreshToken: token.RefreshToken,
		ProjectID:    projectID,
	}
	path := TokenFilePath(authDir)
	if err = ts.SaveToFile(path); err != nil {
		return err
	}
	log.Infof("login successful, credential state saved to %s", path)
	return nil
}

// getTokenFromWeb initiates the web-based OAuth2 authorization flow.
// It starts a local HTTP server to listen for the callback from Google's auth
// server, opens the user's browser to the authorization URL, and exchanges
// the received authorization code for an access token.
func getTokenFromWeb(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	codeChan := make(chan string)
	errChan := make(chan error)

	mux := http.NewServeMux()
	server := &http.Server{Addr: ":8085", Handler: mux}

	mux.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if errParam := r.URL.Query().Get("error"); errParam != "" {
			_, _ = fmt.Fprintf(w, "Authentication failed: %s", errParam)
			errChan <- fmt.Errorf("authentication failed via callback: %s", errParam)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			_, _ = fmt.Fprint(w, "Authentication failed: code not found.")
			errChan <- fmt.Errorf("code not found in callback")
			return
		}
		_, _ = fmt.Fprint(w, "<html><body><h1>Authentication successful!</h1><p>You can close this window.</p></body></html>")
		codeChan <- code
	})

	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("login callback server: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	log.Infof("Attempting to open the authentication page in your browser.\nIf it does not open, please navigate to this URL:\n\n%s\n", authURL)
	if err := open.Run(authURL); err != nil {
		log.Errorf("Failed to open browser: %v. Please open the URL manually.", err)
	}

	var authCode string
	select {
	case code := <-codeChan:
		authCode = code
	case err := <-errChan:
		return nil, err
	case <-time.After(5 * time.Minute):
		return nil, fmt.Errorf("oauth flow timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	token, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
