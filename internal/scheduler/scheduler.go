package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (pipeline.Result, error)
}

// Entry is a configured daily slot and its next activation
type Entry struct {
	Time string    `json:"time"`
	Next time.Time `json:"next"`
}

// Scheduler triggers auto-posting runs at fixed times of day
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    zerolog.Logger
	slots  map[cron.EntryID]string
}

// New registers one daily entry per "HH:MM" time, interpreted in loc
func New(runner Runner, times []string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}

	log := logger.Component("scheduler")
	cronLog := cronLogger{log: log}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		runner: runner,
		log:    log,
		slots:  make(map[cron.EntryID]string),
	}

	for _, t := range times {
		spec, err := Spec(t)
		if err != nil {
			return nil, err
		}
		id, err := s.cron.AddFunc(spec, s.trigger)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", t, err)
		}
		s.slots[id] = strings.TrimSpace(t)
	}

	return s, nil
}

// Spec converts "HH:MM" into a daily cron expression
func Spec(hhmm string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return "", fmt.Errorf("invalid schedule time %q: %w", hhmm, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// Start begins dispatching. Missed slots are not replayed.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.Entries() {
		s.log.Info().Str("slot", e.Time).Time("next", e.Next).Msg("Scheduled pipeline run")
	}
}

// Stop halts dispatching and waits for a running job until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Entries lists the slots in activation order
func (s *Scheduler) Entries() []Entry {
	entries := make([]Entry, 0, len(s.slots))
	for _, e := range s.cron.Entries() {
		entries = append(entries, Entry{Time: s.slots[e.ID], Next: e.Next})
	}
	return entries
}

func (s *Scheduler) trigger() {
	start := time.Now()
	s.log.Info().Msg("Scheduled run triggered")

	res, err := s.runner.Run(context.Background(), pipeline.RunOptions{AutoPost: true})
	if err != nil {
		s.log.Error().Err(err).Str("run_id", res.RunID).Msg("Scheduled run failed")
		return
	}

	s.log.Info().
		Str("run_id", res.RunID).
		Int("created", res.Created).
		Dur("duration", time.Since(start)).
		Msg("Scheduled run completed")
}

// cronLogger routes cron's own logging to zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
