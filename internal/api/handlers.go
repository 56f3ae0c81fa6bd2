package api

import (
	"context"
	"errors"
	"time"

	"github.com/bilgisen/newsroom/internal/middleware"
	"github.com/bilgisen/newsroom/internal/models"
	"github.com/bilgisen/newsroom/internal/pipeline"
	"github.com/bilgisen/newsroom/internal/publish"
	"github.com/bilgisen/newsroom/internal/scheduler"
	"github.com/bilgisen/newsroom/internal/storage"
	"github.com/bilgisen/newsroom/internal/workflow"
	"github.com/gofiber/fiber/v2"
)

// NewsReader is the read side of the store
type NewsReader interface {
	List(ctx context.Context) ([]models.NewsItem, error)
	Get(ctx context.Context, id int64) (*models.NewsItem, error)
	Counts(ctx context.Context) (models.Counts, error)
}

// Workflow applies operator actions
type Workflow interface {
	Edit(ctx context.Context, id int64, title, summary *string) error
	Approve(ctx context.Context, id int64) (workflow.Outcome, error)
	Reject(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// ProcessedCache forgets which feed URLs were already stored
type ProcessedCache interface {
	ClearProcessed(ctx context.Context) error
}

// Schedule reports upcoming scheduled runs
type Schedule interface {
	Entries() []scheduler.Entry
}

type Handlers struct {
	news     NewsReader
	workflow Workflow
	pipeline scheduler.Runner
	schedule Schedule
	cache    ProcessedCache
	started  time.Time
}

// NewHandlers wires the handlers. schedule may be nil when the scheduler
// runs in a separate process.
func NewHandlers(news NewsReader, wf Workflow, runner scheduler.Runner, schedule Schedule, processed ProcessedCache) *Handlers {
	return &Handlers{
		news:     news,
		workflow: wf,
		pipeline: runner,
		schedule: schedule,
		cache:    processed,
		started:  time.Now(),
	}
}

type updateRequest struct {
	Title   *string `json:"title" validate:"omitempty,max=500"`
	Summary *string `json:"summary" validate:"omitempty,max=20000"`
}

type runRequest struct {
	AutoPost bool `json:"auto_post"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ListNews handles GET /news, newest first, optionally filtered by ?status=
func (h *Handlers) ListNews(c *fiber.Ctx) error {
	var filter models.Status
	if raw := c.Query("status"); raw != "" {
		s, err := models.ParseStatus(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		filter = s
	}

	items, err := h.news.List(c.UserContext())
	if err != nil {
		return apiError(err)
	}

	if filter != "" {
		kept := items[:0]
		for _, item := range items {
			if item.Status == filter {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	return c.JSON(fiber.Map{
		"total": len(items),
		"items": items,
	})
}

// GetNews handles GET /news/:id
func (h *Handlers) GetNews(c *fiber.Ctx) error {
	id, err := newsID(c)
	if err != nil {
		return err
	}

	item, err := h.news.Get(c.UserContext(), id)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(item)
}

// UpdateNews handles PATCH /news/:id. Keys present in the body are written,
// including empty strings; absent keys are left alone.
func (h *Handlers) UpdateNews(c *fiber.Ctx) error {
	id, err := newsID(c)
	if err != nil {
		return err
	}
	req := middleware.Body[updateRequest](c)

	if err := h.workflow.Edit(c.UserContext(), id, req.Title, req.Summary); err != nil {
		return apiError(err)
	}

	item, err := h.news.Get(c.UserContext(), id)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(item)
}

// ApproveNews handles POST /news/:id/approve
func (h *Handlers) ApproveNews(c *fiber.Ctx) error {
	id, err := newsID(c)
	if err != nil {
		return err
	}

	outcome, err := h.workflow.Approve(c.UserContext(), id)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{
		"id":      id,
		"outcome": outcome,
	})
}

// RejectNews handles POST /news/:id/reject
func (h *Handlers) RejectNews(c *fiber.Ctx) error {
	id, err := newsID(c)
	if err != nil {
		return err
	}

	if err := h.workflow.Reject(c.UserContext(), id); err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{
		"id":     id,
		"status": models.StatusRejected,
	})
}

// DeleteNews handles DELETE /news/:id
func (h *Handlers) DeleteNews(c *fiber.Ctx) error {
	id, err := newsID(c)
	if err != nil {
		return err
	}

	if err := h.workflow.Delete(c.UserContext(), id); err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{
		"status":  "deleted",
		"message": "News item deleted successfully",
	})
}

// Metrics handles GET /metrics
func (h *Handlers) Metrics(c *fiber.Ctx) error {
	counts, err := h.news.Counts(c.UserContext())
	if err != nil {
		return apiError(err)
	}
	return c.JSON(counts)
}

// RunPipeline handles POST /pipeline/run. The run is synchronous and the
// response carries its result.
func (h *Handlers) RunPipeline(c *fiber.Ctx) error {
	req := middleware.Body[runRequest](c)

	res, err := h.pipeline.Run(c.UserContext(), pipeline.RunOptions{AutoPost: req.AutoPost})
	if err != nil {
		return apiError(err)
	}
	return c.JSON(res)
}

// ClearProcessedCache handles DELETE /cache/processed. Feed entries seen by
// earlier runs become candidates again.
func (h *Handlers) ClearProcessedCache(c *fiber.Ctx) error {
	if err := h.cache.ClearProcessed(c.UserContext()); err != nil {
		return apiError(err)
	}
	return c.JSON(fiber.Map{
		"status":  "cleared",
		"message": "Processed feed URLs forgotten",
	})
}

// GetSchedule handles GET /schedule
func (h *Handlers) GetSchedule(c *fiber.Ctx) error {
	entries := []scheduler.Entry{}
	if h.schedule != nil {
		entries = h.schedule.Entries()
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func newsID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "News ID must be a positive integer")
	}
	return int64(id), nil
}

// apiError maps domain errors to HTTP statuses. Anything unrecognized,
// storage failures included, is left for the error handler to report as 500.
func apiError(err error) error {
	var perr *publish.Error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "News item not found")
	case errors.Is(err, workflow.ErrNotPending), errors.Is(err, workflow.ErrChanged):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.As(err, &perr):
		return fiber.NewError(fiber.StatusBadGateway, perr.Error())
	default:
		return err
	}
}
