package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// headers that are connection- or framing-specific and must not be forwarded
// upstream. Authorization is replaced with the bridge's own token.
var strippedHeaders = map[string]struct{}{
	"host":           {},
	"authorization":  {},
	"content-length": {},
}

// ChatCompletions proxies the inbound request to the Vertex AI chat
// completions endpoint, injecting a fresh bearer token and streaming the
// response body back chunk by chunk. The upstream status code and content
// type are committed before the first body chunk. There is no overall
// timeout: long-lived streaming responses are expected, and an inbound
// client disconnect cancels the upstream request through the request
// context.
func (h *APIHandler) ChatCompletions(c *gin.Context) {
	defer h.recordUsage("/chat/completions")

	cfg := h.Config()
	log.Debugf("proxy request: %s %s", c.Request.Method, c.Request.URL.Path)

	token, ok := h.tokens.GetToken(c.Request.Context())
	if !ok {
		log.Error("no valid token for proxy request")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Message: "failed to obtain upstream token", Type: "server_error"},
		})
		return
	}

	target := fmt.Sprintf("%s/v1/projects/%s/locations/%s/endpoints/%s/chat/completions",
		h.upstreamBase(cfg), cfg.ProjectID, cfg.Location, cfg.EndpointID)
	if query := c.Request.URL.RawQuery; query != "" {
		target += "?" + query
	}
	log.Debugf("proxy target: %s %s", c.Request.Method, target)

	// The inbound body is handed to the upstream request as a stream, never
	// materialized.
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Message: fmt.Sprintf("failed to build upstream request: %v", err), Type: "server_error"},
		})
		return
	}
	for key, values := range c.Request.Header {
		if _, stripped := strippedHeaders[strings.ToLower(key)]; stripped {
			continue
		}
		req.Header[http.CanonicalHeaderKey(key)] = values
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	resp, err := h.httpClient.Do(req)
	if err != nil {
		log.Errorf("upstream request failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error: ErrorDetail{Message: "upstream request failed", Type: "server_error"},
		})
		return
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Debugf("failed to close upstream body: %v", errClose)
		}
	}()

	// Status and content type must be committed before the first body chunk
	// so the response opens with correct framing metadata.
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		c.Header("Content-Type", contentType)
	}
	c.Status(resp.StatusCode)

	flusher, canFlush := c.Writer.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, errRead := resp.Body.Read(buf)
		if n > 0 {
			if _, errWrite := c.Writer.Write(buf[:n]); errWrite != nil {
				// Client went away; the deferred close aborts the upstream stream.
				log.Debugf("client write failed, aborting stream: %v", errWrite)
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if errRead == io.EOF {
			return
		}
		if errRead != nil {
			// Mid-stream failure: streaming responses are not replayable, so
			// terminate abruptly instead of retrying.
			log.Errorf("upstream stream failed mid-transfer: %v", errRead)
			return
		}
	}
}
