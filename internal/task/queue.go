// Package task runs anonymization jobs asynchronously behind the HTTP API:
// an in-process bounded queue with a worker pool, task ids, and an optional
// SQLite result backend with scheduled retention.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	presidiootel "github.com/prokopidis/presidio/internal/otel"
)

var tracer = presidiootel.Tracer("github.com/prokopidis/presidio/internal/task")

// Status is a task lifecycle state.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusStarted Status = "STARTED"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

var (
	// ErrQueueFull is returned by Submit when the job buffer is at capacity.
	ErrQueueFull = errors.New("task queue full")

	// ErrTaskNotFound is returned by Get for an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
)

// Task is the tracked state of one submitted job.
type Task struct {
	ID          string          `json:"id"`
	Status      Status          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
}

// Func executes one job. The returned value is JSON-marshaled into the
// task's Result on success.
type Func func(ctx context.Context, text string) (any, error)

type job struct {
	id   string
	text string
}

// Queue dispatches submitted texts to a fixed worker pool. Results are held
// in memory and, when a Store is attached, mirrored to SQLite so they
// survive a process restart.
type Queue struct {
	fn    Func
	jobs  chan job
	store *Store

	mu    sync.RWMutex
	tasks map[string]*Task

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewQueue creates a queue running fn with the given worker count and job
// buffer. store may be nil for memory-only operation.
func NewQueue(fn Func, workers, buffer int, store *Store) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	q := &Queue{
		fn:    fn,
		jobs:  make(chan job, buffer),
		store: store,
		tasks: make(map[string]*Task),
	}
	q.start(workers)
	return q
}

func (q *Queue) start(workers int) {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		q.group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case j, ok := <-q.jobs:
					if !ok {
						return nil
					}
					q.run(ctx, j)
				}
			}
		})
	}
}

// Submit enqueues a text and returns the new task id. Non-blocking: returns
// ErrQueueFull instead of waiting when the buffer is at capacity.
func (q *Queue) Submit(text string) (string, error) {
	id := uuid.NewString()
	t := &Task{ID: id, Status: StatusPending, SubmittedAt: time.Now().UTC()}

	q.mu.Lock()
	q.tasks[id] = t
	q.mu.Unlock()

	select {
	case q.jobs <- job{id: id, text: text}:
	default:
		q.mu.Lock()
		delete(q.tasks, id)
		q.mu.Unlock()
		return "", ErrQueueFull
	}

	log.Debug().Str("task_id", id).Msg("task submitted")
	return id, nil
}

// Get returns the task with the given id, consulting the result store for
// tasks evicted from memory. Fails with ErrTaskNotFound when unknown.
func (q *Queue) Get(ctx context.Context, id string) (*Task, error) {
	q.mu.RLock()
	t, ok := q.tasks[id]
	q.mu.RUnlock()
	if ok {
		copied := *t
		return &copied, nil
	}
	if q.store != nil {
		return q.store.Get(ctx, id)
	}
	return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
}

func (q *Queue) run(ctx context.Context, j job) {
	ctx, span := tracer.Start(ctx, "task.run")
	defer span.End()

	q.setStatus(j.id, StatusStarted, nil, "")

	result, err := q.fn(ctx, j.text)
	if err != nil {
		log.Error().Err(err).Str("task_id", j.id).Func(presidiootel.LogTraceFields(ctx)).Msg("task failed")
		q.setStatus(j.id, StatusFailure, nil, err.Error())
		q.persist(ctx, j.id)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		q.setStatus(j.id, StatusFailure, nil, fmt.Sprintf("marshaling result: %v", err))
		q.persist(ctx, j.id)
		return
	}

	q.setStatus(j.id, StatusSuccess, payload, "")
	q.persist(ctx, j.id)
	log.Debug().Str("task_id", j.id).Msg("task finished")
}

func (q *Queue) setStatus(id string, status Status, result json.RawMessage, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return
	}
	t.Status = status
	t.Result = result
	t.Error = errMsg
	if status == StatusSuccess || status == StatusFailure {
		t.FinishedAt = time.Now().UTC()
	}
}

func (q *Queue) persist(ctx context.Context, id string) {
	if q.store == nil {
		return
	}
	q.mu.RLock()
	t, ok := q.tasks[id]
	var copied Task
	if ok {
		copied = *t
	}
	q.mu.RUnlock()
	if !ok {
		return
	}
	if err := q.store.Save(ctx, &copied); err != nil {
		log.Warn().Err(err).Str("task_id", id).Msg("persisting task result")
	}
}

// PurgeExpired drops finished tasks older than ttl from memory and, when a
// store is attached, from disk. Returns the number of in-memory evictions.
func (q *Queue) PurgeExpired(ctx context.Context, ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	q.mu.Lock()
	evicted := 0
	for id, t := range q.tasks {
		if t.FinishedAt.IsZero() || t.FinishedAt.After(cutoff) {
			continue
		}
		delete(q.tasks, id)
		evicted++
	}
	q.mu.Unlock()

	if q.store != nil {
		n, err := q.store.PurgeBefore(ctx, cutoff)
		if err != nil {
			log.Warn().Err(err).Msg("purging stored task results")
		} else if n > 0 {
			log.Debug().Int64("purged", n).Msg("stored task results purged")
		}
	}
	return evicted
}

// Close stops the workers after draining queued jobs.
func (q *Queue) Close() error {
	close(q.jobs)
	err := q.group.Wait()
	q.cancel()
	return err
}
