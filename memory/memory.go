// Package memory surfaces relevant past conversation into the prompt and
// keeps per-conversation history.
package memory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Hit is one vector search result from the long-term store.
type Hit struct {
	ID         string            `json:"id"`
	Message    string            `json:"message"`
	Similarity float64           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Role reads the speaker role recorded with the hit.
func (h Hit) Role() string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata["role"]
}

// Searcher is the vector store lookup.
type Searcher interface {
	Search(ctx context.Context, userID, query string, limit int) ([]Hit, error)
}

// ServiceConfig controls recall.
type ServiceConfig struct {
	Logger *zap.Logger
	// Threshold drops weak matches. Zero means the default of 0.80.
	Threshold float64
	// Limit bounds hits requested from the store. Zero means 5.
	Limit int
}

// DefaultServiceConfig returns the production recall settings.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{Threshold: 0.80, Limit: 5}
}

// Service turns vector hits into a formatted prompt block.
type Service struct {
	searcher Searcher
	cfg      ServiceConfig
	log      *zap.Logger
}

// NewService builds a recall service.
func NewService(searcher Searcher, config ...ServiceConfig) *Service {
	cfg := DefaultServiceConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.80
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{searcher: searcher, cfg: cfg, log: log}
}

// Recall fetches hits for the message and formats them for the prompt.
// An empty string means nothing relevant surfaced.
func (s *Service) Recall(ctx context.Context, userID, message string) (string, error) {
	if s.searcher == nil {
		return "", nil
	}
	hits, err := s.searcher.Search(ctx, userID, message, s.cfg.Limit)
	if err != nil {
		return "", fmt.Errorf("memory: search: %w", err)
	}
	block := FormatContext(hits, s.cfg.Threshold, "you")
	if block != "" {
		s.log.Debug("memory recalled", zap.Int("hits", len(hits)))
	}
	return block, nil
}

// FormatContext renders hits as a prompt block. System-injected messages
// are skipped, weak and duplicate hits dropped.
func FormatContext(hits []Hit, threshold float64, userName string) string {
	if userName == "" {
		userName = "the user"
	}
	seen := map[string]bool{}
	var lines []string
	for _, h := range hits {
		msg := strings.TrimSpace(h.Message)
		if msg == "" || strings.HasPrefix(msg, "[System:") {
			continue
		}
		if h.Similarity <= threshold {
			continue
		}
		if seen[msg] {
			continue
		}
		seen[msg] = true
		if h.Role() == "assistant" {
			lines = append(lines, fmt.Sprintf("I previously responded: %s", msg))
		} else {
			lines = append(lines, fmt.Sprintf("Previously, %s mentioned: %s", userName, msg))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("RELEVANT CONTEXT (from earlier conversations):\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}
