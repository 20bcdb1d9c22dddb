// Package catalog queries the Vertex AI publisher model listings and
// normalizes them into the OpenAI-style catalog served by the bridge. One
// request is issued per configured publisher, concurrently, with bounded
// retries for transport failures; an unreachable publisher never fails the
// aggregate listing.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/luispater/VertexBridge/internal/config"
)

const (
	maxAttempts = 3
	retryDelay  = 200 * time.Millisecond
)

// ModelEntry is one normalized catalog entry: a fully-qualified upstream
// resource name publishers/{p}/models/{m} reduced to {p}/{m}.
type ModelEntry struct {
	ID      string
	OwnedBy string
}

// Fetcher aggregates model listings across publisher partitions. Region,
// project and publisher set come from the configuration snapshot passed to
// each call, so hot-reloaded values take effect on the next listing.
type Fetcher struct {
	httpClient *http.Client

	// BaseURL overrides the derived publisher models API scheme://host
	// when set.
	BaseURL string
}

// NewFetcher creates a catalog fetcher reusing the shared outbound HTTP
// client.
func NewFetcher(httpClient *http.Client) *Fetcher {
	return &Fetcher{httpClient: httpClient}
}

func (f *Fetcher) baseURL(cfg *config.Config) string {
	if f.BaseURL != "" {
		return f.BaseURL
	}
	return cfg.UpstreamBase()
}

// ListModels queries every configured publisher concurrently with the given
// bearer token and returns the union of their entries. Order across
// publishers follows the configured publisher list; order within a publisher
// follows its response. Failed publishers contribute nothing.
func (f *Fetcher) ListModels(ctx context.Context, cfg *config.Config, token string) []ModelEntry {
	log.Debugf("fetching models from %d publishers", len(cfg.Publishers))

	base := f.baseURL(cfg)
	results := make([][]ModelEntry, len(cfg.Publishers))
	var wg sync.WaitGroup
	wg.Add(len(cfg.Publishers))
	for i, publisher := range cfg.Publishers {
		go func(i int, publisher string) {
			defer wg.Done()
			results[i] = f.fetchPublisher(ctx, base, cfg.ProjectID, token, publisher)
		}(i, publisher)
	}
	wg.Wait()

	all := make([]ModelEntry, 0)
	for _, entries := range results {
		all = append(all, entries...)
	}
	return all
}

// fetchPublisher fetches one partition. Transport errors are retried up to
// maxAttempts with a fixed delay; a non-200 status is final and yields zero
// entries.
func (f *Fetcher) fetchPublisher(ctx context.Context, base, projectID, token, publisher string) []ModelEntry {
	url := fmt.Sprintf("%s/v1beta1/publishers/%s/models", base, publisher)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			log.Errorf("failed to build models request for publisher %q: %v", publisher, err)
			return nil
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		req.Header.Set("x-goog-user-project", projectID)

		resp, errDo := f.httpClient.Do(req)
		var body []byte
		if errDo == nil {
			// A body read failure is a transport error like a failed dial and
			// consumes a retry attempt the same way.
			body, errDo = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
		}
		if errDo != nil {
			if attempt < maxAttempts {
				log.Warnf("failed to fetch models for publisher %q, will retry in %s: %v", publisher, retryDelay, errDo)
				select {
				case <-time.After(retryDelay):
				case <-ctx.Done():
					return nil
				}
				continue
			}
			log.Warnf("failed to fetch models for publisher %q: %v", publisher, errDo)
			return nil
		}

		log.Debugf("models response %d for publisher %q", resp.StatusCode, publisher)
		if resp.StatusCode != http.StatusOK {
			// HTTP errors are final, only transport failures are retried.
			log.Warnf("failed to fetch models for publisher %q: %d %s", publisher, resp.StatusCode, strings.TrimSpace(string(body)))
			return nil
		}

		return parseModels(body)
	}
	return nil
}

// parseModels extracts publisherModels[].name entries, keeping only names
// matching the publishers/{p}/models/{m} shape.
func parseModels(body []byte) []ModelEntry {
	entries := make([]ModelEntry, 0)
	gjson.GetBytes(body, "publisherModels").ForEach(func(_, model gjson.Result) bool {
		name := model.Get("name").String()
		parts := strings.Split(name, "/")
		if len(parts) == 4 && parts[0] == "publishers" && parts[2] == "models" {
			entries = append(entries, ModelEntry{
				ID:      parts[1] + "/" + parts[3],
				OwnedBy: parts[1],
			})
		}
		return true
	})
	return entries
}

// FilterByPrefix narrows entries to those whose id starts with any of the
// allowed prefixes. An empty prefix list passes everything through.
func FilterByPrefix(entries []ModelEntry, prefixes []string) []ModelEntry {
	if len(prefixes) == 0 {
		return entries
	}
	filtered := make([]ModelEntry, 0, len(entries))
	for _, entry := range entries {
		for _, prefix := range prefixes {
			if strings.HasPrefix(entry.ID, prefix) {
				filtered = append(filtered, entry)
				break
			}
		}
	}
	return filtered
}
