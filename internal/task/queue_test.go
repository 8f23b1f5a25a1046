package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsToSuccess(t *testing.T) {
	fn := func(_ context.Context, text string) (any, error) {
		return map[string]string{"echo": text}, nil
	}
	q := NewQueue(fn, 2, 4, nil)
	defer q.Close()

	id, err := q.Submit("γειά σου")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		task, err := q.Get(context.Background(), id)
		return err == nil && task.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	task, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(task.Result, &payload))
	assert.Equal(t, "γειά σου", payload["echo"])
	assert.False(t, task.FinishedAt.IsZero())
	assert.Empty(t, task.Error)
}

func TestQueueRecordsFailure(t *testing.T) {
	boom := errors.New("detector blew up")
	q := NewQueue(func(context.Context, string) (any, error) {
		return nil, boom
	}, 1, 4, nil)
	defer q.Close()

	id, err := q.Submit("whatever")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, err := q.Get(context.Background(), id)
		return err == nil && task.Status == StatusFailure
	}, 2*time.Second, 10*time.Millisecond)

	task, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "detector blew up", task.Error)
	assert.Nil(t, task.Result)
}

func TestQueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := NewQueue(func(context.Context, string) (any, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}, 1, 1, nil)
	defer func() {
		close(release)
		q.Close()
	}()

	// Occupy the single worker, then fill the single buffer slot.
	_, err := q.Submit("occupies worker")
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first job")
	}
	_, err = q.Submit("fills buffer")
	require.NoError(t, err)

	_, err = q.Submit("overflow")
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueGetUnknown(t *testing.T) {
	q := NewQueue(func(context.Context, string) (any, error) { return nil, nil }, 1, 1, nil)
	defer q.Close()

	_, err := q.Get(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestQueueGetFallsBackToStore(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(func(_ context.Context, text string) (any, error) {
		return text, nil
	}, 1, 4, store)
	defer q.Close()

	id, err := q.Submit("persisted")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, err := q.Get(context.Background(), id)
		return err == nil && task.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	// Evict from memory; Get must come back from SQLite.
	q.mu.Lock()
	delete(q.tasks, id)
	q.mu.Unlock()

	task, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, task.Status)
	assert.Equal(t, json.RawMessage(`"persisted"`), task.Result)
}

func TestPurgeExpired(t *testing.T) {
	q := NewQueue(func(context.Context, string) (any, error) { return "ok", nil }, 1, 4, nil)
	defer q.Close()

	id, err := q.Submit("finished long ago")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, err := q.Get(context.Background(), id)
		return err == nil && task.Status == StatusSuccess
	}, 2*time.Second, 10*time.Millisecond)

	// Backdate the finish time past any ttl.
	q.mu.Lock()
	q.tasks[id].FinishedAt = time.Now().UTC().Add(-48 * time.Hour)
	q.mu.Unlock()

	evicted := q.PurgeExpired(context.Background(), 24*time.Hour)
	assert.Equal(t, 1, evicted)

	_, err = q.Get(context.Background(), id)
	require.ErrorIs(t, err, ErrTaskNotFound)
}

func TestPurgeExpiredKeepsUnfinished(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := NewQueue(func(context.Context, string) (any, error) {
		started <- struct{}{}
		<-release
		return "ok", nil
	}, 1, 4, nil)
	defer func() {
		close(release)
		q.Close()
	}()

	id, err := q.Submit("still running")
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started the job")
	}

	assert.Zero(t, q.PurgeExpired(context.Background(), 0))
	task, err := q.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, task.Status)
}
