package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bilgisen/newsroom/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls    atomic.Int32
	autoPost atomic.Bool
	err      error
	panics   bool
	block    chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, opts pipeline.RunOptions) (pipeline.Result, error) {
	f.calls.Add(1)
	f.autoPost.Store(opts.AutoPost)
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("pipeline exploded")
	}
	return pipeline.Result{RunID: "r1", Created: 1}, f.err
}

func TestSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:00", "0 9 * * *", false},
		{" 21:45 ", "45 21 * * *", false},
		{"00:05", "5 0 * * *", false},
		{"24:00", "", true},
		{"9am", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Spec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsBadTime(t *testing.T) {
	_, err := New(&fakeRunner{}, []string{"09:00", "nope"}, time.UTC)
	assert.Error(t, err)
}

func TestEntriesReportNextRun(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	s, err := New(&fakeRunner{}, []string{"09:00", "15:00", "21:00"}, loc)
	require.NoError(t, err)

	s.Start()
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	entries := s.Entries()
	require.Len(t, entries, 3)
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Time] = true
		next := e.Next.In(loc)
		assert.True(t, next.After(time.Now()))
		assert.Zero(t, next.Minute())
		assert.Contains(t, []int{9, 15, 21}, next.Hour())
	}
	assert.Len(t, seen, 3)
}

func TestTriggerRunsWithAutoPost(t *testing.T) {
	runner := &fakeRunner{}
	s, err := New(runner, []string{"09:00"}, time.UTC)
	require.NoError(t, err)

	s.cron.Entries()[0].WrappedJob.Run()
	assert.EqualValues(t, 1, runner.calls.Load())
	assert.True(t, runner.autoPost.Load())
}

func TestJobFailuresDoNotEscape(t *testing.T) {
	for _, runner := range []*fakeRunner{
		{err: errors.New("storage down")},
		{panics: true},
	} {
		s, err := New(runner, []string{"09:00"}, time.UTC)
		require.NoError(t, err)

		job := s.cron.Entries()[0].WrappedJob
		assert.NotPanics(t, job.Run)
		assert.NotPanics(t, job.Run)
		assert.EqualValues(t, 2, runner.calls.Load())
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s, err := New(runner, []string{"09:00"}, time.UTC)
	require.NoError(t, err)
	job := s.cron.Entries()[0].WrappedJob

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		job.Run()
	}()
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	job.Run() // returns immediately while the first run holds the slot
	assert.EqualValues(t, 1, runner.calls.Load())

	close(runner.block)
	wg.Wait()
}

func TestStopHonorsContext(t *testing.T) {
	s, err := New(&fakeRunner{}, nil, nil)
	require.NoError(t, err)
	s.Start()
	assert.Empty(t, s.Entries())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
