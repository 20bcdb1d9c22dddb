// Package handlers implements the HTTP endpoints of the Vertex Bridge
// server: the streaming chat completions proxy and the model catalog
// listing. Handlers translate internal boolean/absent results into protocol
// error responses; no other layer writes status codes.
package handlers

import (
	"context"
	"net/http"
	"sync"

	"github.com/luispater/VertexBridge/internal/catalog"
	"github.com/luispater/VertexBridge/internal/config"
	"github.com/luispater/VertexBridge/internal/usage"
)

// ErrorResponse is the JSON error body returned by the API.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides specific information about an error that occurred.
type ErrorDetail struct {
	// Message is a human-readable message providing more details about the error.
	Message string `json:"message"`

	// Type is the category of error that occurred (e.g., "invalid_request_error").
	Type string `json:"type"`
}

// TokenProvider yields the current upstream bearer token, refreshing it if
// necessary. The boolean is false when no valid token could be obtained.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, bool)
}

// APIHandler holds the shared dependencies of all endpoint handlers.
type APIHandler struct {
	mu         sync.RWMutex
	cfg        *config.Config
	tokens     TokenProvider
	httpClient *http.Client
	fetcher    *catalog.Fetcher
	usageStore *usage.Store

	// UpstreamBase overrides the derived inference API scheme://host when
	// set. When empty the host is derived from the configuration snapshot
	// on every request, so a reloaded location takes effect immediately.
	UpstreamBase string
}

// NewAPIHandler creates the handler set. usageStore may be nil.
func NewAPIHandler(cfg *config.Config, tokens TokenProvider, httpClient *http.Client, fetcher *catalog.Fetcher, usageStore *usage.Store) *APIHandler {
	return &APIHandler{
		cfg:        cfg,
		tokens:     tokens,
		httpClient: httpClient,
		fetcher:    fetcher,
		usageStore: usageStore,
	}
}

// upstreamBase returns the inference API scheme://host for the given
// configuration snapshot, honoring the fixed override when set.
func (h *APIHandler) upstreamBase(cfg *config.Config) string {
	if h.UpstreamBase != "" {
		return h.UpstreamBase
	}
	return cfg.UpstreamBase()
}

// Config returns the current configuration snapshot.
func (h *APIHandler) Config() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// UpdateConfig swaps the configuration after a hot reload.
func (h *APIHandler) UpdateConfig(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

// recordUsage bumps the counter for route without blocking the request.
func (h *APIHandler) recordUsage(route string) {
	if h.usageStore == nil {
		return
	}
	go h.usageStore.Record(route)
}
