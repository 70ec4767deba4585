package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClientConfig configures the search backend.
type ClientConfig struct {
	// Endpoint is the search API URL. Zero means the Brave web search API.
	Endpoint string
	APIKey   string
	// MaxResults bounds results rendered into the prompt. Zero means 3.
	MaxResults int
	Timeout    time.Duration
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// DefaultClientConfig returns the production search settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:   "https://api.search.brave.com/res/v1/web/search",
		MaxResults: 3,
		Timeout:    5 * time.Second,
	}
}

// Client fetches search context for a message.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  *zap.Logger
}

// NewClient builds a search client.
func NewClient(config ...ClientConfig) *Client {
	cfg := DefaultClientConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.search.brave.com/res/v1/web/search"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc, log: log}
}

type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Lookup implements the engine's search source: it gates on ShouldSearch
// and returns formatted result lines, or empty when no lookup applies.
// Search failures degrade to an empty result; a chat turn should never
// fail because the search API did.
func (c *Client) Lookup(ctx context.Context, message string) (string, error) {
	if !ShouldSearch(message) {
		return "", nil
	}
	query := KeyTerms(message)
	if query == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.Endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("websearch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Subscription-Token", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("search request failed", zap.Error(err))
		return "", nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("search returned non-200", zap.Int("status", resp.StatusCode))
		return "", nil
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.log.Warn("search response unparseable", zap.Error(err))
		return "", nil
	}

	var b strings.Builder
	count := 0
	for _, r := range parsed.Web.Results {
		if r.Title == "" && r.Description == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Title, r.Description)
		count++
		if count == c.cfg.MaxResults {
			break
		}
	}
	if count == 0 {
		return "", nil
	}
	c.log.Debug("search context attached",
		zap.String("query", query), zap.Int("results", count))
	return b.String(), nil
}
