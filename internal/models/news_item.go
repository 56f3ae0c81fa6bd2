package models

import (
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of a persisted news item
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusPosted   Status = "posted"
	StatusRejected Status = "rejected"
)

// Statuses lists every valid status in display order
var Statuses = []Status{StatusPending, StatusApproved, StatusPosted, StatusRejected}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ParseStatus converts a raw string into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// NewsItem represents a localized news post awaiting approval or already published
type NewsItem struct {
	ID            int64      `json:"id" db:"id"`
	OriginalTitle string     `json:"original_title" db:"original_title"`
	Title         *string    `json:"title" db:"title"`
	Summary       string     `json:"summary" db:"summary"`
	ImagePath     string     `json:"image_path" db:"image_path"`
	SourceURL     string     `json:"source_url" db:"source_url"`
	Status        Status     `json:"status" db:"status"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty" db:"scheduled_time"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	PostedAt      *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	PublishRef    *string    `json:"publish_ref,omitempty" db:"publish_ref"`
}

// Headline returns the localized title, falling back to the original one
func (n *NewsItem) Headline() string {
	if n.Title != nil && *n.Title != "" {
		return *n.Title
	}
	return n.OriginalTitle
}

// Update is a partial update. A nil field is left untouched; a non-nil field
// is written even when it points at an empty value.
type Update struct {
	Title         *string    `json:"title,omitempty"`
	Summary       *string    `json:"summary,omitempty"`
	ImagePath     *string    `json:"image_path,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	PublishRef    *string    `json:"publish_ref,omitempty"`
}

// IsEmpty reports whether the update carries no fields
func (u Update) IsEmpty() bool {
	return u.Title == nil && u.Summary == nil && u.ImagePath == nil && u.Status == nil &&
		u.ScheduledTime == nil && u.PostedAt == nil && u.PublishRef == nil
}

// Counts aggregates stored items per status
type Counts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Posted   int `json:"posted"`
	Rejected int `json:"rejected"`
}

// Ptr returns a pointer to v. Handy for building Updates.
func Ptr[T any](v T) *T {
	return &v
}
