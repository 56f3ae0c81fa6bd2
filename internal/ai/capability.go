package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/bilgisen/newsroom/internal/config"
	"github.com/bilgisen/newsroom/internal/models"
)

// ErrRateLimited is wrapped by CapabilityError when the provider answers 429
var ErrRateLimited = errors.New("ai provider rate limit exceeded")

// Rewrite is a localized headline and body
type Rewrite struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

// Ranker picks the most interesting candidates. Indices are 1-based.
type Ranker interface {
	Rank(ctx context.Context, candidates []models.Candidate, n int) ([]int, error)
}

// Rewriter produces a localized headline and body from a source article
type Rewriter interface {
	Rewrite(ctx context.Context, title, summary string) (Rewrite, error)
}

// Client provides both capabilities
type Client interface {
	Ranker
	Rewriter
}

// CapabilityError reports a failed or unparseable AI call
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// New returns the client selected by cfg.AIProvider
func New(cfg *config.Config) (Client, error) {
	switch cfg.AIProvider {
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:   cfg.AIApiKey,
			Model:    cfg.AIModel,
			Language: cfg.TargetLanguage,
			Timeout:  cfg.AITimeout,
		}), nil
	case "offline", "":
		return NewOfflineClient(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}
