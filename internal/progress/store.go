// Package progress records how far a user got through each document and
// which lectures they opened, and derives profile statistics from it.
package progress

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Activity types.
const (
	ActivityLecture = "lecture"
)

// Progress is the reading position of one user in one document.
type Progress struct {
	bun.BaseModel `bun:"table:user_pdf_progress"`

	UserID       string    `bun:"user_id,pk"`
	PDFName      string    `bun:"pdf_name,pk"`
	LastReadPage int       `bun:"last_read_page,notnull"`
	PagesRead    int       `bun:"pages_read,notnull"`
	TotalPages   int       `bun:"total_pages,notnull"`
	LastReadAt   time.Time `bun:"last_read_at,notnull"`
}

// Activity is one logged user action. Actions of one program run share a
// SessionID.
type Activity struct {
	bun.BaseModel `bun:"table:activity_logs"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       string    `bun:"user_id,notnull"`
	SessionID    uuid.UUID `bun:"session_id,type:uuid,notnull"`
	ActivityType string    `bun:"activity_type,notnull"`
	FileName     string    `bun:"file_name,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Recorder persists progress and activity.
type Recorder interface {
	SaveProgress(ctx context.Context, p Progress) error
	LogActivity(ctx context.Context, a Activity) error
}

// Store is the Postgres-backed Recorder.
type Store struct {
	db *bun.DB
}

var _ Recorder = (*Store)(nil)

// Open connects to the database at dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, debug bool) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	if err := migrate(ctx, sqldb); err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("migrate progress schema: %w", err)
	}
	return nil
}

// SaveProgress upserts p. Pages read only ever grows.
func (s *Store) SaveProgress(ctx context.Context, p Progress) error {
	if p.LastReadAt.IsZero() {
		p.LastReadAt = time.Now()
	}
	_, err := s.db.NewInsert().
		Model(&p).
		On("CONFLICT (user_id, pdf_name) DO UPDATE").
		Set("last_read_page = EXCLUDED.last_read_page").
		Set("pages_read = GREATEST(user_pdf_progress.pages_read, EXCLUDED.pages_read)").
		Set("total_pages = EXCLUDED.total_pages").
		Set("last_read_at = EXCLUDED.last_read_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// LogActivity inserts a.
func (s *Store) LogActivity(ctx context.Context, a Activity) error {
	if a.FileName == "" {
		a.FileName = "Unknown File"
	}
	if _, err := s.db.NewInsert().Model(&a).Exec(ctx); err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// Stats loads the profile statistics of userID.
func (s *Store) Stats(ctx context.Context, userID string, now time.Time) (Stats, error) {
	var rows []Progress
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("last_read_at DESC").
		Scan(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load progress: %w", err)
	}

	var days []time.Time
	err = s.db.NewSelect().
		Model((*Activity)(nil)).
		ColumnExpr("DISTINCT date_trunc('day', created_at) AS day").
		Where("user_id = ?", userID).
		Scan(ctx, &days)
	if err != nil {
		return Stats{}, fmt.Errorf("load activity: %w", err)
	}

	return Summarize(rows, days, now), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
