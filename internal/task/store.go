package task

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Store persists finished task results in SQLite, standing in for a Celery
// style result backend. Only task state is stored; entity mappings live in
// the result payload owned by the caller and are never tracked separately.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the result database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening task database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		result TEXT,
		error TEXT,
		submitted_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_finished ON tasks(finished_at);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating task schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts a task's current state.
func (s *Store) Save(ctx context.Context, t *Task) error {
	var finished any
	if !t.FinishedAt.IsZero() {
		finished = t.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, status, result, error, submitted_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			finished_at = excluded.finished_at`,
		t.ID, string(t.Status), string(t.Result), t.Error, t.SubmittedAt, finished)
	if err != nil {
		return fmt.Errorf("saving task %s: %w", t.ID, err)
	}
	return nil
}

// Get loads a task by id. Fails with ErrTaskNotFound when absent.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, result, error, submitted_at, finished_at
		FROM tasks WHERE id = ?`, id)

	var t Task
	var status, result string
	var finished sql.NullTime
	err := row.Scan(&t.ID, &status, &result, &t.Error, &t.SubmittedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading task %s: %w", id, err)
	}
	t.Status = Status(status)
	if result != "" {
		t.Result = []byte(result)
	}
	if finished.Valid {
		t.FinishedAt = finished.Time
	}
	return &t, nil
}

// PurgeBefore deletes finished tasks with finished_at before cutoff and
// returns the number of rows removed.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE finished_at IS NOT NULL AND finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging tasks: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRetention schedules PurgeExpired on the queue every sweep interval,
// keeping finished results for ttl. The returned cron must be stopped by the
// caller on shutdown.
func StartRetention(q *Queue, ttl, sweep time.Duration) *cron.Cron {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", sweep)
	if _, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		q.PurgeExpired(ctx, ttl)
	}); err != nil {
		log.Warn().Err(err).Str("schedule", spec).Msg("task retention disabled")
		return c
	}
	c.Start()
	log.Info().Dur("ttl", ttl).Dur("sweep", sweep).Msg("task result retention scheduled")
	return c
}
