package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/publish"
	"github.com/rs/zerolog"
)

var (
	// ErrNotPending is returned when approving or rejecting an item whose
	// status no longer allows it
	ErrNotPending = errors.New("news item is not pending")
	// ErrChanged is returned when an item was published but left the
	// approved state before the post could be recorded
	ErrChanged = errors.New("news item changed while publishing")
)

// Outcome of an approval
type Outcome string

const (
	OutcomePosted        Outcome = "posted"
	OutcomeAlreadyPosted Outcome = "already_posted"
)

// Store is the persistence the workflow needs
type Store interface {
	Get(ctx context.Context, id int64) (*models.NewsItem, error)
	Update(ctx context.Context, id int64, u models.Update) error
	TransitionStatus(ctx context.Context, id int64, from, to models.Status, extra models.Update) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// Workflow applies operator actions to stored items
type Workflow struct {
	store     Store
	publisher publish.Publisher
	now       func() time.Time
}

func New(store Store, publisher publish.Publisher) *Workflow {
	return &Workflow{store: store, publisher: publisher, now: time.Now}
}

// Edit writes the present fields. An empty string is a valid value.
func (w *Workflow) Edit(ctx context.Context, id int64, title, summary *string) error {
	return w.store.Update(ctx, id, models.Update{Title: title, Summary: summary})
}

// Approve publishes a pending item and marks it posted. The item is claimed
// first, so of several concurrent approvals only one publishes. A publish
// failure releases the claim and returns the *publish.Error.
func (w *Workflow) Approve(ctx context.Context, id int64) (Outcome, error) {
	log := logger.Get().With().Int64("id", id).Logger()

	claimed, err := w.store.TransitionStatus(ctx, id, models.StatusPending, models.StatusApproved, models.Update{})
	if err != nil {
		return "", err
	}
	if !claimed {
		return w.unclaimed(ctx, id)
	}

	item, err := w.store.Get(ctx, id)
	if err != nil {
		w.release(ctx, log, id)
		return "", err
	}

	ref, err := w.publisher.Publish(ctx, publish.Post{
		Title:    item.Headline(),
		Message:  item.Summary,
		ImageRef: item.ImagePath,
	})
	if err != nil {
		log.Error().Err(err).Msg("Publish failed, returning item to pending")
		w.release(ctx, log, id)
		var perr *publish.Error
		if !errors.As(err, &perr) {
			err = &publish.Error{Provider: "unknown", Err: err}
		}
		return "", err
	}

	postedAt := w.now()
	ok, err := w.store.TransitionStatus(ctx, id, models.StatusApproved, models.StatusPosted, models.Update{
		PostedAt:   &postedAt,
		PublishRef: &ref,
	})
	if err != nil {
		return "", fmt.Errorf("published as %s but failed to record it: %w", ref, err)
	}
	if !ok {
		log.Error().Str("publish_ref", ref).Msg("Item changed while publishing")
		return "", fmt.Errorf("%w: published as %s", ErrChanged, ref)
	}

	log.Info().Str("publish_ref", ref).Msg("Approved and posted")
	return OutcomePosted, nil
}

func (w *Workflow) release(ctx context.Context, log zerolog.Logger, id int64) {
	if _, err := w.store.TransitionStatus(ctx, id, models.StatusApproved, models.StatusPending, models.Update{}); err != nil {
		log.Error().Err(err).Msg("Failed to release approval claim")
	}
}

// unclaimed explains why the pending claim was not won
func (w *Workflow) unclaimed(ctx context.Context, id int64) (Outcome, error) {
	current, err := w.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	switch current.Status {
	case models.StatusPosted:
		return OutcomeAlreadyPosted, nil
	default:
		return "", fmt.Errorf("%w: status is %s", ErrNotPending, current.Status)
	}
}

// Reject marks a pending item rejected. Rejecting twice is harmless; any
// other status yields ErrNotPending.
func (w *Workflow) Reject(ctx context.Context, id int64) error {
	ok, err := w.store.TransitionStatus(ctx, id, models.StatusPending, models.StatusRejected, models.Update{})
	if err != nil || ok {
		return err
	}

	current, err := w.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == models.StatusRejected {
		return nil
	}
	return fmt.Errorf("%w: status is %s", ErrNotPending, current.Status)
}

// Delete removes an item; a missing id is not an error
func (w *Workflow) Delete(ctx context.Context, id int64) error {
	return w.store.Delete(ctx, id)
}
