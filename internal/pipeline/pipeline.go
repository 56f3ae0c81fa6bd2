package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/ai"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/publish"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultRunTimeout  = 30 * time.Minute
	defaultPlaceholder = "https://placehold.co/1024x1024.jpg"
)

// CandidateSource yields fresh feed entries and remembers stored ones
type CandidateSource interface {
	Candidates(ctx context.Context) ([]models.Candidate, error)
	MarkProcessed(ctx context.Context, item models.Candidate) error
}

// Compositor renders the branded image for a headline
type Compositor interface {
	Compose(ctx context.Context, sourceRef, headline, outputPath string) (string, error)
}

// Store persists created items
type Store interface {
	Create(ctx context.Context, item *models.NewsItem) (int64, error)
	TransitionStatus(ctx context.Context, id int64, from, to models.Status, extra models.Update) (bool, error)
}

// Uploader copies a composited image to public storage
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Deps are the collaborators of a Pipeline. Uploader and Publisher are
// optional.
type Deps struct {
	Source     CandidateSource
	Ranker     ai.Ranker
	Rewriter   ai.Rewriter
	Compositor Compositor
	Store      Store
	Uploader   Uploader
	Publisher  publish.Publisher
}

// Options tune a Pipeline
type Options struct {
	SelectCount      int
	Cooldown         time.Duration // minimum spacing between rewrite calls
	RunTimeout       time.Duration
	PlaceholderImage string
}

// RunOptions apply to a single run
type RunOptions struct {
	AutoPost bool `json:"auto_post"`
}

// Result summarizes a run. Failed counts stored items that needed a
// fallback for their rewrite, image or publish step.
type Result struct {
	RunID    string `json:"run_id"`
	Fetched  int    `json:"fetched"`
	Selected int    `json:"selected"`
	Created  int    `json:"created"`
	Failed   int    `json:"failed"`
}

// Pipeline turns feed entries into stored, localized news items
type Pipeline struct {
	deps        Deps
	selectCount int
	limiter     *rate.Limiter
	runTimeout  time.Duration
	placeholder string
	now         func() time.Time
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.SelectCount <= 0 {
		opts.SelectCount = 3
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if opts.PlaceholderImage == "" {
		opts.PlaceholderImage = defaultPlaceholder
	}

	limit := rate.Inf
	if opts.Cooldown > 0 {
		limit = rate.Every(opts.Cooldown)
	}

	return &Pipeline{
		deps:        deps,
		selectCount: opts.SelectCount,
		limiter:     rate.NewLimiter(limit, 1),
		runTimeout:  opts.RunTimeout,
		placeholder: opts.PlaceholderImage,
		now:         time.Now,
	}
}

// Run executes fetch, select and process. Only a storage failure is
// returned as an error; every other failure is absorbed per item.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.runTimeout)
	defer cancel()

	start := time.Now()
	res := Result{RunID: uuid.NewString()}
	log := logger.Get().With().Str("run_id", res.RunID).Logger()

	log.Info().Bool("auto_post", opts.AutoPost).Msg("Pipeline run started: fetching")

	candidates, err := p.deps.Source.Candidates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Feed unavailable, ending run with no items")
		return res, nil
	}
	res.Fetched = len(candidates)
	if len(candidates) == 0 {
		log.Info().Msg("No new feed entries")
		return res, nil
	}

	log.Info().Int("candidates", len(candidates)).Msg("Selecting")
	selected := Select(ctx, p.deps.Ranker, candidates, p.selectCount)
	res.Selected = len(selected)

	for i, item := range selected {
		itemLog := log.With().Int("item_index", i).Str("source_url", item.URL).Logger()
		itemLog.Info().Str("title", item.Title).Msg("Processing")

		degraded, err := p.process(ctx, itemLog, item, opts)
		if err != nil {
			log.Error().Err(err).Int("created", res.Created).Msg("Pipeline run aborted")
			return res, err
		}
		res.Created++
		if degraded {
			res.Failed++
		}
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("selected", res.Selected).
		Int("created", res.Created).
		Int("failed", res.Failed).
		Dur("duration", time.Since(start)).
		Msg("Pipeline run finished")

	return res, nil
}

// process rewrites, composites and stores one candidate. It reports whether
// any step fell back; the error is non-nil only for storage failures.
func (p *Pipeline) process(ctx context.Context, log zerolog.Logger, item models.Candidate, opts RunOptions) (bool, error) {
	headline, body, rewriteOK := p.rewrite(ctx, log, item)
	imagePath, imageOK := p.image(ctx, log, item, headline)

	news := &models.NewsItem{
		OriginalTitle: item.Title,
		Title:         &headline,
		Summary:       body,
		ImagePath:     imagePath,
		SourceURL:     item.URL,
		Status:        models.StatusPending,
	}
	autoPublish := opts.AutoPost && p.deps.Publisher != nil
	switch {
	case autoPublish:
		// approved is the publish claim; operator approval only claims pending items
		news.Status = models.StatusApproved
	case opts.AutoPost:
		posted := p.now()
		news.Status = models.StatusPosted
		news.PostedAt = &posted
	}

	id, err := p.deps.Store.Create(ctx, news)
	if err != nil {
		return false, fmt.Errorf("failed to store %s: %w", item.URL, err)
	}
	log.Info().Int64("id", id).Str("status", string(news.Status)).Msg("Stored news item")

	if err := p.deps.Source.MarkProcessed(ctx, item); err != nil {
		log.Warn().Err(err).Msg("Failed to mark item as processed")
	}

	publishOK := true
	if autoPublish {
		publishOK, err = p.publish(ctx, log, news)
		if err != nil {
			return false, err
		}
	}

	return !(rewriteOK && imageOK && publishOK), nil
}

func (p *Pipeline) rewrite(ctx context.Context, log zerolog.Logger, item models.Candidate) (string, string, bool) {
	err := p.limiter.Wait(ctx)
	if err == nil {
		var rw ai.Rewrite
		rw, err = p.deps.Rewriter.Rewrite(ctx, item.Title, item.Summary)
		if err == nil {
			return rw.Headline, rw.Body, true
		}
	}

	log.Warn().Err(err).Msg("Rewrite failed, storing placeholder text")
	return "[rewrite failed] " + item.Title,
		fmt.Sprintf("[rewrite failed: %v]\n\n%s", err, item.Summary),
		false
}

// image composites the headline onto the entry image, uploading the result
// when an uploader is configured. On failure the entry image is kept.
func (p *Pipeline) image(ctx context.Context, log zerolog.Logger, item models.Candidate, headline string) (string, bool) {
	fallback := item.ImageURL
	if fallback == "" {
		fallback = p.placeholder
	}

	path, err := p.deps.Compositor.Compose(ctx, item.ImageURL, headline, "")
	if err != nil {
		log.Warn().Err(err).Str("image_url", item.ImageURL).Msg("Image composite failed, keeping source image")
		return fallback, false
	}

	if p.deps.Uploader == nil {
		return path, true
	}
	url, err := p.deps.Uploader.Upload(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("image_path", path).Msg("Upload failed, keeping local image")
		return path, true
	}
	return url, true
}

// publish posts an item stored as approved and moves it to posted. A
// publish failure returns it to pending.
func (p *Pipeline) publish(ctx context.Context, log zerolog.Logger, news *models.NewsItem) (bool, error) {
	log = log.With().Int64("id", news.ID).Logger()

	ref, err := p.deps.Publisher.Publish(ctx, publish.Post{
		Title:    news.Headline(),
		Message:  news.Summary,
		ImageRef: news.ImagePath,
	})
	if err != nil {
		log.Error().Err(err).Msg("Auto-post failed, returning item to pending")
		if _, err := p.deps.Store.TransitionStatus(ctx, news.ID, models.StatusApproved, models.StatusPending, models.Update{}); err != nil {
			return false, fmt.Errorf("failed to release %d: %w", news.ID, err)
		}
		news.Status = models.StatusPending
		return false, nil
	}

	postedAt := p.now()
	ok, err := p.deps.Store.TransitionStatus(ctx, news.ID, models.StatusApproved, models.StatusPosted, models.Update{
		PostedAt:   &postedAt,
		PublishRef: &ref,
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark %d posted: %w", news.ID, err)
	}
	if !ok {
		log.Warn().Str("publish_ref", ref).Msg("Item changed while auto-posting")
		return false, nil
	}

	news.Status, news.PostedAt, news.PublishRef = models.StatusPosted, &postedAt, &ref
	log.Info().Str("publish_ref", ref).Msg("Auto-posted")
	return true, nil
}
