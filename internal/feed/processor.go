package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/utils"
)

// ProcessedCache remembers which source URLs earlier runs already stored
type ProcessedCache interface {
	IsProcessed(ctx context.Context, hash string) (bool, error)
	MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error
}

// Processor binds a fetcher to one feed URL and drops entries that were
// already turned into news items by a previous run.
type Processor struct {
	fetcher *Fetcher
	feedURL string
	cache   ProcessedCache
	ttl     time.Duration
}

// NewProcessor creates a processor. cache may be nil to disable deduplication.
func NewProcessor(fetcher *Fetcher, feedURL string, cache ProcessedCache, ttl time.Duration) *Processor {
	return &Processor{
		fetcher: fetcher,
		feedURL: feedURL,
		cache:   cache,
		ttl:     ttl,
	}
}

// Candidates fetches the feed and returns the entries not seen before, in
// feed order.
func (p *Processor) Candidates(ctx context.Context) ([]models.Candidate, error) {
	log := logger.Get()
	start := time.Now()

	items, err := p.fetcher.Fetch(ctx, p.feedURL)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("feed_url", p.feedURL).
		Int("total_items", len(items)).
		Dur("fetch_duration", time.Since(start)).
		Msg("Fetched feed items")

	return p.filterDuplicates(ctx, items), nil
}

// filterDuplicates removes items whose URL is marked in the cache. Items are
// kept when the cache fails.
func (p *Processor) filterDuplicates(ctx context.Context, items []models.Candidate) []models.Candidate {
	if p.cache == nil || len(items) == 0 {
		return items
	}

	log := logger.Get()
	unique := make([]models.Candidate, 0, len(items))
	duplicates := 0

	for _, item := range items {
		seen, err := p.cache.IsProcessed(ctx, utils.Hash(item.URL))
		if err != nil {
			log.Warn().
				Err(err).
				Str("url", item.URL).
				Msg("Error checking cache for item, keeping it")
			unique = append(unique, item)
			continue
		}
		if seen {
			log.Debug().
				Str("url", item.URL).
				Msg("Skipping already processed item")
			duplicates++
			continue
		}
		unique = append(unique, item)
	}

	log.Info().
		Int("unique_items", len(unique)).
		Int("duplicate_items", duplicates).
		Msg("Finished filtering duplicates")
	return unique
}

// MarkProcessed records that item has been stored
func (p *Processor) MarkProcessed(ctx context.Context, item models.Candidate) error {
	if p.cache == nil {
		return nil
	}
	if err := p.cache.MarkProcessed(ctx, utils.Hash(item.URL), p.ttl); err != nil {
		return fmt.Errorf("error marking %s as processed: %w", item.URL, err)
	}
	return nil
}
