package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/config"
)

// Post is the content sent to the social page
type Post struct {
	Title    string
	Message  string
	ImageRef string // http(s) URL or local file path; may be empty
}

// Caption joins title and message the way the page shows them
func (p Post) Caption() string {
	switch {
	case p.Title == "":
		return p.Message
	case p.Message == "":
		return p.Title
	default:
		return p.Title + "\n\n" + p.Message
	}
}

// Publisher sends a post and returns the provider's reference for it
type Publisher interface {
	Publish(ctx context.Context, post Post) (string, error)
}

// Error reports a rejected or failed publish call
type Error struct {
	Provider string
	Status   int // HTTP status, 0 when no response arrived
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publish via %s failed with status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("publish via %s failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the publisher selected by cfg.PublishProvider
func New(cfg *config.Config) (Publisher, error) {
	switch cfg.PublishProvider {
	case "facebook":
		return NewFacebookPublisher(FacebookConfig{
			PageID:      cfg.FacebookPageID,
			AccessToken: cfg.FacebookAccessToken,
			APIVersion:  cfg.FacebookAPIVersion,
			Timeout:     cfg.HTTPTimeout,
		}), nil
	case "offline", "":
		return NewOfflinePublisher(), nil
	default:
		return nil, fmt.Errorf("unknown publish provider %q", cfg.PublishProvider)
	}
}

func defaultTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
