package publish

import (
	"context"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/google/uuid"
)

// OfflinePublisher logs posts instead of sending them
type OfflinePublisher struct{}

func NewOfflinePublisher() *OfflinePublisher {
	return &OfflinePublisher{}
}

func (o *OfflinePublisher) Publish(ctx context.Context, post Post) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Provider: "offline", Err: err}
	}

	ref := "offline-" + uuid.NewString()

	logger.Get().Info().
		Str("publish_ref", ref).
		Str("title", post.Title).
		Str("image", post.ImageRef).
		Msg("Offline publish")

	return ref, nil
}
