package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/publish"
	"github.com/bilgisen/newsroom/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	calls  atomic.Int32
	err    error
	last   publish.Post
	mu     sync.Mutex
	during func()
}

func (c *countingPublisher) Publish(ctx context.Context, post publish.Post) (string, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.last = post
	c.mu.Unlock()
	if c.during != nil {
		c.during()
	}
	if c.err != nil {
		return "", c.err
	}
	return "page_1", nil
}

func setup(t *testing.T) (*storage.Storage, int64) {
	t.Helper()
	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "news.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	id, err := store.Create(context.Background(), &models.NewsItem{
		OriginalTitle: "Lakers win",
		Title:         models.Ptr("เลเกอร์สชนะ"),
		Summary:       "body",
		ImagePath:     "/img/a.jpg",
		SourceURL:     "https://example.com/a",
	})
	require.NoError(t, err)
	return store, id
}

func TestApprovePublishesOnce(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	pub := &countingPublisher{}
	w := New(store, pub)

	outcome, err := w.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)
	assert.Equal(t, publish.Post{Title: "เลเกอร์สชนะ", Message: "body", ImageRef: "/img/a.jpg"}, pub.last)

	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, item.Status)
	require.NotNil(t, item.PublishRef)
	assert.Equal(t, "page_1", *item.PublishRef)
	assert.NotNil(t, item.PostedAt)

	outcome, err = w.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyPosted, outcome)
	assert.EqualValues(t, 1, pub.calls.Load())
}

func TestConcurrentApprovalsPublishOnce(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	pub := &countingPublisher{}
	w := New(store, pub)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Approve(ctx, id)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, pub.calls.Load())
	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, item.Status)
}

func TestApprovePublishFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	w := New(store, &countingPublisher{err: errors.New("token expired")})

	_, err := w.Approve(ctx, id)
	var perr *publish.Error
	require.True(t, errors.As(err, &perr))

	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, item.Status)
	assert.Nil(t, item.PostedAt)
}

func TestApproveRejectedOrMissing(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	pub := &countingPublisher{}
	w := New(store, pub)

	require.NoError(t, w.Reject(ctx, id))
	require.NoError(t, w.Reject(ctx, id))

	_, err := w.Approve(ctx, id)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = w.Approve(ctx, id+100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, pub.calls.Load())
}

func TestEditAndDelete(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	w := New(store, &countingPublisher{})

	require.NoError(t, w.Edit(ctx, id, nil, models.Ptr("new body")))
	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "เลเกอร์สชนะ", *item.Title)
	assert.Equal(t, "new body", item.Summary)

	require.NoError(t, w.Edit(ctx, id, models.Ptr(""), nil))
	item, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "", *item.Title)

	assert.ErrorIs(t, w.Edit(ctx, id+100, models.Ptr("x"), nil), storage.ErrNotFound)

	require.NoError(t, w.Delete(ctx, id))
	require.NoError(t, w.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRejectOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	w := New(store, &countingPublisher{})

	_, err := w.Approve(ctx, id)
	require.NoError(t, err)

	assert.ErrorIs(t, w.Reject(ctx, id), ErrNotPending)
	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, item.Status)

	assert.ErrorIs(t, w.Reject(ctx, id+100), storage.ErrNotFound)
}

func TestRejectDuringPublishIsRefused(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	pub := &countingPublisher{}
	w := New(store, pub)

	var rejectErr error
	pub.during = func() { rejectErr = w.Reject(ctx, id) }

	outcome, err := w.Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, outcome)
	assert.ErrorIs(t, rejectErr, ErrNotPending)

	item, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPosted, item.Status)
	require.NotNil(t, item.PublishRef)
	assert.Equal(t, "page_1", *item.PublishRef)
}

func TestApproveReportsItemChangedWhilePublishing(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	pub := &countingPublisher{}
	w := New(store, pub)
	pub.during = func() { require.NoError(t, store.Delete(ctx, id)) }

	outcome, err := w.Approve(ctx, id)
	assert.ErrorIs(t, err, ErrChanged)
	assert.Empty(t, outcome)
	assert.EqualValues(t, 1, pub.calls.Load())
}

// editingStore applies an edit right as the approval claim lands
type editingStore struct {
	*storage.Storage
	edit func()
}

func (e *editingStore) TransitionStatus(ctx context.Context, id int64, from, to models.Status, extra models.Update) (bool, error) {
	ok, err := e.Storage.TransitionStatus(ctx, id, from, to, extra)
	if ok && to == models.StatusApproved && e.edit != nil {
		e.edit()
		e.edit = nil
	}
	return ok, err
}

func TestApprovePublishesEditMadeDuringClaim(t *testing.T) {
	ctx := context.Background()
	store, id := setup(t)
	pub := &countingPublisher{}
	es := &editingStore{Storage: store}
	es.edit = func() {
		require.NoError(t, store.Update(ctx, id, models.Update{Title: models.Ptr("edited headline")}))
	}

	_, err := New(es, pub).Approve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited headline", pub.last.Title)
}
