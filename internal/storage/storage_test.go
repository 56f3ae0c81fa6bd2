package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	// Deterministic, strictly increasing clock
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func newItem(title string) *models.NewsItem {
	return &models.NewsItem{
		OriginalTitle: title,
		Title:         models.Ptr("localized " + title),
		Summary:       "summary of " + title,
		ImagePath:     "images/" + title + ".jpg",
		SourceURL:     "https://example.com/" + title,
	}
}

func TestCreateAssignsDefaults(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	item := newItem("a")
	id, err := s.Create(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, "a", got.OriginalTitle)
	assert.Equal(t, "localized a", *got.Title)
	require.NotNil(t, got.ScheduledTime)
	assert.True(t, got.ScheduledTime.Equal(got.CreatedAt))
	assert.Nil(t, got.PostedAt)
}

func TestCreateRejectsMissingImagePath(t *testing.T) {
	s := openTestStorage(t)

	item := newItem("a")
	item.ImagePath = ""
	_, err := s.Create(context.Background(), item)

	var storageErr *Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "create", storageErr.Op)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := s.Create(ctx, newItem(title))
		require.NoError(t, err)
	}

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "third", items[0].OriginalTitle)
	assert.Equal(t, "second", items[1].OriginalTitle)
	assert.Equal(t, "first", items[2].OriginalTitle)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].CreatedAt.After(items[i-1].CreatedAt))
	}
}

func TestListEmpty(t *testing.T) {
	s := openTestStorage(t)

	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestUpdateOnlyTouchesPresentFields(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newItem("a"))
	require.NoError(t, err)
	before, err := s.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, id, models.Update{Summary: models.Ptr("edited body")}))

	after, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited body", after.Summary)
	assert.Equal(t, *before.Title, *after.Title)
	assert.Equal(t, before.ImagePath, after.ImagePath)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.SourceURL, after.SourceURL)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
}

func TestUpdateWritesExplicitEmptyTitle(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newItem("a"))
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, id, models.Update{Title: models.Ptr("")}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Title)
	assert.Equal(t, "", *got.Title)
}

func TestUpdateUnknownAndEmpty(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	err := s.Update(ctx, 42, models.Update{Summary: models.Ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Update(ctx, 42, models.Update{}))

	err = s.Update(ctx, 42, models.Update{Status: models.Ptr(models.Status("archived"))})
	var storageErr *Error
	assert.ErrorAs(t, err, &storageErr)
}

func TestTransitionStatusIsCompareAndSet(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newItem("a"))
	require.NoError(t, err)

	postedAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	ok, err := s.TransitionStatus(ctx, id, models.StatusPending, models.StatusPosted, models.Update{
		PostedAt:   &postedAt,
		PublishRef: models.Ptr("fb_123"),
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TransitionStatus(ctx, id, models.StatusPending, models.StatusPosted, models.Update{})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, got.Status)
	require.NotNil(t, got.PostedAt)
	assert.True(t, postedAt.Equal(*got.PostedAt))
	assert.Equal(t, "fb_123", *got.PublishRef)
}

func TestConcurrentTransitionHasSingleWinner(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newItem("a"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TransitionStatus(ctx, id, models.StatusPending, models.StatusApproved, models.Update{})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestConcurrentUpdatesOnDifferentFields(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newItem("a"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := models.Update{Summary: models.Ptr(fmt.Sprintf("body %d", i))}
			if i%2 == 0 {
				u = models.Update{Title: models.Ptr(fmt.Sprintf("title %d", i))}
			}
			assert.NoError(t, s.Update(ctx, id, u))
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Regexp(t, `^title \d+$`, *got.Title)
	assert.Regexp(t, `^body \d+$`, got.Summary)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	id, err := s.Create(ctx, newItem("a"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, 999))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountsMatchTotal(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{}, counts)

	statuses := []models.Status{
		models.StatusPending, models.StatusPending, models.StatusPosted,
		models.StatusRejected, models.StatusApproved,
	}
	for i, st := range statuses {
		item := newItem(fmt.Sprintf("n%d", i))
		item.Status = st
		_, err := s.Create(ctx, item)
		require.NoError(t, err)
	}

	counts, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Counts{Total: 5, Pending: 2, Approved: 1, Posted: 1, Rejected: 1}, counts)
	assert.Equal(t, counts.Total, counts.Pending+counts.Approved+counts.Posted+counts.Rejected)
}

func TestOpenIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "news.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s1.Create(ctx, newItem("a"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	items, err := s2.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestDatabaseFailuresAreStorageErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := New(sqlx.NewDb(db, "sqlite3"))
	ctx := context.Background()
	diskErr := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT .* FROM news_posts ORDER BY").WillReturnError(diskErr)
	_, err = s.List(ctx)
	var storageErr *Error
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "list", storageErr.Op)
	assert.ErrorIs(t, err, diskErr)

	mock.ExpectExec("INSERT INTO news_posts").WillReturnError(diskErr)
	_, err = s.Create(ctx, newItem("a"))
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "create", storageErr.Op)

	mock.ExpectExec("DELETE FROM news_posts").WillReturnError(diskErr)
	err = s.Delete(ctx, 1)
	require.ErrorAs(t, err, &storageErr)

	mock.ExpectQuery("SELECT\\s+COUNT").WillReturnError(diskErr)
	_, err = s.Counts(ctx)
	require.ErrorAs(t, err, &storageErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}
