package ai

import (
	"context"
	"fmt"

	"github.com/bilgisen/newsroom/internal/models"
)

// OfflineClient is a deterministic Client for development and tests. It
// needs no credentials and never fails.
type OfflineClient struct {
	post *PostProcessor
}

func NewOfflineClient() *OfflineClient {
	return &OfflineClient{post: NewPostProcessor(maxHeadlineRunes)}
}

// Rank picks the first n candidates in feed order
func (o *OfflineClient) Rank(ctx context.Context, candidates []models.Candidate, n int) ([]int, error) {
	if n > len(candidates) {
		n = len(candidates)
	}
	indices := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		indices = append(indices, i)
	}
	return indices, nil
}

// Rewrite echoes the source article in the shape a real rewrite would have
func (o *OfflineClient) Rewrite(ctx context.Context, title, summary string) (Rewrite, error) {
	body := fmt.Sprintf("AI BREAKING: %s (Rewritten from '%s')", summary, title)
	return Rewrite{
		Headline: o.post.cleanHeadline(title),
		Body:     cleanBody(body),
	}, nil
}
