package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luispater/VertexBridge/internal/api/handlers"
	"github.com/luispater/VertexBridge/internal/catalog"
	"github.com/luispater/VertexBridge/internal/config"
)

type staticTokens struct {
	token string
	ok    bool
}

func (s *staticTokens) GetToken(ctx context.Context) (string, bool) {
	return s.token, s.ok
}

func newProxyEngine(t *testing.T, upstream *httptest.Server, tokens handlers.TokenProvider) (*gin.Engine, *handlers.APIHandler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.ProjectID = "test-project"

	httpClient := http.DefaultClient
	if upstream != nil {
		httpClient = upstream.Client()
	}
	h := handlers.NewAPIHandler(cfg, tokens, httpClient, catalog.NewFetcher(httpClient), nil)
	if upstream != nil {
		h.UpstreamBase = upstream.URL
	}

	engine := gin.New()
	engine.GET("/chat/completions", h.ChatCompletions)
	engine.POST("/chat/completions", h.ChatCompletions)
	return engine, h
}

func TestChatCompletionsInjectsFreshToken(t *testing.T) {
	var upstreamAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	engine, _ := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	req := httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader(`{"model":"x"}`))
	req.Header.Set("Authorization", "Bearer old")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bearer fresh", upstreamAuth, "inbound bearer must never leak upstream")
}

func TestChatCompletionsForwardsBodyHeadersAndQuery(t *testing.T) {
	var gotBody []byte
	var gotQuery, gotCustom, gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotQuery = r.URL.RawQuery
		gotCustom = r.Header.Get("X-Custom")
		gotHost = r.Host
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	engine, _ := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	req := httptest.NewRequest(http.MethodPost, "/chat/completions?alt=sse&x=1", strings.NewReader(`{"model":"google/gemini-pro"}`))
	req.Host = "bridge.internal"
	req.Header.Set("X-Custom", "kept")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"model":"google/gemini-pro"}`, string(gotBody))
	assert.Equal(t, "alt=sse&x=1", gotQuery, "query string appended verbatim")
	assert.Equal(t, "kept", gotCustom)
	// The inbound Host must not be forwarded; the upstream sees its own host.
	assert.NotEqual(t, "bridge.internal", gotHost)
}

func TestChatCompletionsTargetsEndpointTemplate(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	engine, _ := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader("{}")))

	assert.Equal(t, "/v1/projects/test-project/locations/us-central1/endpoints/openapi/chat/completions", gotPath)
}

func TestChatCompletionsTargetFollowsReloadedConfig(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	engine, h := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	reloaded := config.DefaultConfig()
	reloaded.ProjectID = "other-project"
	reloaded.Location = "europe-west4"
	reloaded.EndpointID = "custom"
	h.UpdateConfig(reloaded)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader("{}")))

	// The target is rebuilt from the live snapshot on every request.
	assert.Equal(t, "/v1/projects/other-project/locations/europe-west4/endpoints/custom/chat/completions", gotPath)
}

func TestChatCompletionsForwardsStatusAndContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("data: chunk-1\n\ndata: chunk-2\n\n"))
	}))
	defer upstream.Close()

	engine, _ := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader("{}")))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data: chunk-1\n\ndata: chunk-2\n\n", rec.Body.String())
}

func TestChatCompletionsWithoutTokenNeverForwards(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer upstream.Close()

	engine, _ := newProxyEngine(t, upstream, &staticTokens{ok: false})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader("{}")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, upstreamCalled, "must never forward without a token")
}

func TestChatCompletionsUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused from now on

	engine, _ := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/completions", strings.NewReader("{}")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream request failed")
}

func TestChatCompletionsSupportsGET(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	engine, _ := newProxyEngine(t, upstream, &staticTokens{token: "fresh", ok: true})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/completions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
