package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/go-resty/resty/v2"
)

// FetchError reports an unreachable or unparseable feed
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch feed %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher downloads a syndication feed and turns it into candidates
type Fetcher struct {
	client *resty.Client
	parser *Parser
	limit  int
}

// NewFetcher builds a fetcher returning at most limit entries per feed.
// Failed requests are not retried; the next run is the retry.
func NewFetcher(timeout time.Duration, limit int, placeholderImage string) *Fetcher {
	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "newsroom/1.0 (+feed reader)"),
		parser: NewParser(placeholderImage),
		limit:  limit,
	}
}

// Fetch retrieves url and returns up to the configured number of most recent
// candidates.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]models.Candidate, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8").
		Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if resp.IsError() {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status code %d", resp.StatusCode())}
	}

	candidates, err := f.parser.Parse(ctx, resp.Body())
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	if f.limit > 0 && len(candidates) > f.limit {
		candidates = candidates[:f.limit]
	}
	return candidates, nil
}
