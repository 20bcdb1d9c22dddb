package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/luispater/VertexBridge/internal/catalog"
)

// openAIModel is one entry of the OpenAI-style model list response.
type openAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// modelListResponse is the OpenAI-style list envelope.
type modelListResponse struct {
	Object string        `json:"object"`
	Data   []openAIModel `json:"data"`
}

// Models fetches the available models from all configured publishers and
// returns them in OpenAI list format, optionally narrowed by the configured
// name prefixes.
func (h *APIHandler) Models(c *gin.Context) {
	defer h.recordUsage("/models")

	cfg := h.Config()

	token, ok := h.tokens.GetToken(c.Request.Context())
	if !ok {
		log.Error("no valid token for models request")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{Message: "failed to obtain upstream token", Type: "server_error"},
		})
		return
	}

	entries := h.fetcher.ListModels(c.Request.Context(), cfg, token)
	if cfg.FilterModelNames {
		total := len(entries)
		entries = catalog.FilterByPrefix(entries, cfg.ModelNameFilters)
		log.Infof("fetched %d/%d models", len(entries), total)
	} else {
		log.Infof("fetched %d models", len(entries))
	}

	data := make([]openAIModel, 0, len(entries))
	for _, entry := range entries {
		data = append(data, openAIModel{ID: entry.ID, Object: "model", OwnedBy: entry.OwnedBy})
	}
	c.JSON(http.StatusOK, modelListResponse{Object: "list", Data: data})
}
