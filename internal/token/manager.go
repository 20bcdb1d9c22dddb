// Package token implements the upstream credential lifecycle: validity
// tracking with a safety margin, mutually exclusive refresh through the
// credential source, synchronous persistence of every state change, and the
// periodic background refresh task.
package token

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/luispater/VertexBridge/internal/auth"
)

const (
	// ExpiryBuffer is subtracted from the token's absolute expiry so a
	// refresh happens well before the upstream rejects the token.
	ExpiryBuffer = 10 * time.Minute

	// RefreshInterval is the cadence of the background refresh task.
	RefreshInterval = 5 * time.Minute
)

// expiry layouts tolerated in persisted state. Layouts without a zone are
// interpreted as UTC.
var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Manager owns the token state. All reads and mutations go through one
// mutex: at most one refresh is ever in flight and no reader observes a
// half-updated (token, expiry) pair.
type Manager struct {
	mu       sync.Mutex
	storage  *auth.TokenStorage
	filePath string
	source   auth.CredentialSource
	now      func() time.Time

	// RefreshEvery is the background refresh cadence.
	RefreshEvery time.Duration
}

// NewManager creates a token manager around the given persisted state and
// credential source. filePath is where state is written after every change.
func NewManager(storage *auth.TokenStorage, filePath string, source auth.CredentialSource) *Manager {
	return &Manager{
		storage:      storage,
		filePath:     filePath,
		source:       source,
		now:          time.Now,
		RefreshEvery: RefreshInterval,
	}
}

// IsValid reports whether a token is present and its expiry is further than
// the safety margin away. Missing fields or an unparsable expiry are a
// normal negative result.
func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isValidLocked()
}

func (m *Manager) isValidLocked() bool {
	if m.storage.AccessToken == "" || m.storage.TokenExpiry == "" {
		log.Debug("token invalid: missing token or expiry")
		return false
	}
	expiry, ok := ParseExpiry(m.storage.TokenExpiry)
	if !ok {
		log.Errorf("token invalid: unparsable expiry %q", m.storage.TokenExpiry)
		return false
	}
	if m.now().Before(expiry.Add(-ExpiryBuffer)) {
		log.Debugf("token valid until %s", expiry)
		return true
	}
	log.Debugf("token expired at %s", expiry)
	return false
}

// Refresh obtains a new token from the credential source. When force is
// false and the current token is still valid it is a no-op returning true.
// On source failure the prior state is left untouched and false is returned;
// the failure is logged, never propagated.
func (m *Manager) Refresh(ctx context.Context, force bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx, force)
}

func (m *Manager) refreshLocked(ctx context.Context, force bool) bool {
	if !force && m.isValidLocked() {
		log.Debug("no token refresh needed")
		return true
	}

	newToken, newExpiry, err := m.source.Credential(ctx)
	if err != nil {
		log.Errorf("token refresh failed: %v", err)
		return false
	}

	m.storage.AccessToken = newToken
	m.storage.TokenExpiry = newExpiry.UTC().Format(time.RFC3339Nano)
	if err = m.storage.SaveToFile(m.filePath); err != nil {
		log.Errorf("failed to persist token state: %v", err)
	}
	log.Infof("token refreshed, valid until %s", m.storage.TokenExpiry)
	return true
}

// GetToken returns the current bearer token, forcing a refresh first when
// the stored one is no longer valid. The second return value is false when
// no valid token could be obtained; callers must fail fast in that case.
func (m *Manager) GetToken(ctx context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isValidLocked() {
		log.Warn("token expired, forcing refresh")
		if !m.refreshLocked(ctx, true) {
			return "", false
		}
	}
	if !m.isValidLocked() {
		return "", false
	}
	return m.storage.AccessToken, true
}

// StartAutoRefresh issues one synchronous refresh and then drives periodic
// non-forced refreshes until ctx is cancelled, so request handlers almost
// always find a valid cached token.
func (m *Manager) StartAutoRefresh(ctx context.Context) {
	m.Refresh(ctx, false)

	go func() {
		ticker := time.NewTicker(m.RefreshEvery)
		defer ticker.Stop()
		log.Infof("background token refresh checking every %s", m.RefreshEvery)
		for {
			select {
			case <-ticker.C:
				m.Refresh(ctx, false)
			case <-ctx.Done():
				log.Debug("background token refresh stopped")
				return
			}
		}
	}()
}

// ParseExpiry parses a persisted expiry string. Values without timezone
// information are interpreted as UTC so naive and aware instants stay
// comparable.
func ParseExpiry(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
