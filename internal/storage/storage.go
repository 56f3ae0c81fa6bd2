package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bilgisen/newsroom/internal/models"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const itemColumns = `id, original_title, title, summary, image_path, source_url, status,
	scheduled_time, created_at, posted_at, publish_ref`

// Storage persists news items in SQLite
type Storage struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open creates the database file if needed, applies migrations and returns
// a ready store.
func Open(ctx context.Context, path string) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, wrap("open", fmt.Errorf("failed to create storage directory: %w", err))
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrap("open", err)
	}

	// One connection serializes writers; every record mutation is a single
	// statement, so interleaving callers never see a half-applied update.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, wrap("open", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, wrap("migrate", err)
	}

	return New(db), nil
}

// New wraps an already migrated database handle
func New(db *sqlx.DB) *Storage {
	return &Storage{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source driver: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the database handle
func (s *Storage) Close() error {
	return s.db.Close()
}

// Create inserts item, assigning its ID and CreatedAt. Status defaults to
// pending and ScheduledTime to the creation time.
func (s *Storage) Create(ctx context.Context, item *models.NewsItem) (int64, error) {
	if item.ImagePath == "" {
		return 0, wrap("create", errors.New("image_path is required"))
	}

	item.CreatedAt = s.now()
	if item.Status == "" {
		item.Status = models.StatusPending
	}
	if !item.Status.Valid() {
		return 0, wrap("create", fmt.Errorf("invalid status %q", item.Status))
	}
	if item.ScheduledTime == nil {
		scheduled := item.CreatedAt
		item.ScheduledTime = &scheduled
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO news_posts
			(original_title, title, summary, image_path, source_url, status,
			 scheduled_time, created_at, posted_at, publish_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.OriginalTitle, item.Title, item.Summary, item.ImagePath, item.SourceURL,
		item.Status, item.ScheduledTime, item.CreatedAt, item.PostedAt, item.PublishRef,
	)
	if err != nil {
		return 0, wrap("create", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("create", err)
	}
	item.ID = id
	return id, nil
}

// List returns every stored item, newest first
func (s *Storage) List(ctx context.Context) ([]models.NewsItem, error) {
	items := []models.NewsItem{}
	query := `SELECT ` + itemColumns + ` FROM news_posts ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		return nil, wrap("list", err)
	}
	return items, nil
}

// Get returns one item or ErrNotFound
func (s *Storage) Get(ctx context.Context, id int64) (*models.NewsItem, error) {
	var item models.NewsItem
	query := `SELECT ` + itemColumns + ` FROM news_posts WHERE id = ?`
	if err := s.db.GetContext(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrap("get", err)
	}
	return &item, nil
}

// Update writes every field present in u in a single statement. An empty
// update is a no-op; an unknown id yields ErrNotFound.
func (s *Storage) Update(ctx context.Context, id int64, u models.Update) error {
	if u.Status != nil && !u.Status.Valid() {
		return wrap("update", fmt.Errorf("invalid status %q", *u.Status))
	}

	if u.IsEmpty() {
		return nil
	}

	sets, args := assignments(u)
	query := `UPDATE news_posts SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrap("update", err)
	}
	return checkAffected("update", res)
}

// TransitionStatus moves an item from one status to another only when it is
// currently in from. Other present fields of extra are written in the same
// statement. It reports whether the transition happened.
func (s *Storage) TransitionStatus(ctx context.Context, id int64, from, to models.Status, extra models.Update) (bool, error) {
	if !to.Valid() {
		return false, wrap("transition", fmt.Errorf("invalid status %q", to))
	}

	extra.Status = &to
	sets, args := assignments(extra)
	query := `UPDATE news_posts SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND status = ?`
	args = append(args, id, from)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, wrap("transition", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("transition", err)
	}
	return n == 1, nil
}

// Delete removes an item. Deleting a missing id is not an error.
func (s *Storage) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM news_posts WHERE id = ?`, id); err != nil {
		return wrap("delete", err)
	}
	return nil
}

// Counts returns per-status totals computed in one consistent query
func (s *Storage) Counts(ctx context.Context) (models.Counts, error) {
	var row struct {
		Total    int `db:"total"`
		Pending  int `db:"pending"`
		Approved int `db:"approved"`
		Posted   int `db:"posted"`
		Rejected int `db:"rejected"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0) AS approved,
			COALESCE(SUM(CASE WHEN status = 'posted' THEN 1 ELSE 0 END), 0) AS posted,
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0) AS rejected
		FROM news_posts`)
	if err != nil {
		return models.Counts{}, wrap("counts", err)
	}
	return models.Counts(row), nil
}

// assignments turns the present fields of u into SET clauses
func assignments(u models.Update) ([]string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Summary != nil {
		add("summary", *u.Summary)
	}
	if u.ImagePath != nil {
		add("image_path", *u.ImagePath)
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.ScheduledTime != nil {
		add("scheduled_time", u.ScheduledTime.UTC())
	}
	if u.PostedAt != nil {
		add("posted_at", u.PostedAt.UTC())
	}
	if u.PublishRef != nil {
		add("publish_ref", *u.PublishRef)
	}
	return sets, args
}

func checkAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
