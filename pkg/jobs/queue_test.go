package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := NewQueue("test", QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	var calls int32
	done := make(chan struct{})
	q.Register("flaky", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("temporary")
		}
		close(done)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue(Job{Type: "flaky"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueuePermanentErrorStopsRetries(t *testing.T) {
	q := NewQueue("test", QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	var calls int32
	q.Register("fatal", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return fmt.Errorf("bad payload: %w", ErrPermanent)
	})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{Type: "fatal"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestQueueRejectsUnknownTypeAndUnstarted(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	q.Register("known", func(context.Context, Job) error { return nil })

	_, err := q.Enqueue(Job{Type: "known"})
	assert.Error(t, err)

	q.Start(context.Background())
	defer q.Stop()
	_, err = q.Enqueue(Job{Type: "unknown"})
	assert.Error(t, err)
}
