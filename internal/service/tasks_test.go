package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/stickergen/internal/logger"
)

func TestTaskRunnerTaskContextCarriesName(t *testing.T) {
	runner := NewTaskRunner()
	got := make(chan string, 1)

	ok := runner.Go("generate:abc", func(ctx context.Context) error {
		got <- logger.GetFieldString(ctx, logger.FieldTask)
		return nil
	})
	require.True(t, ok)
	require.NoError(t, runner.Shutdown(time.Second))
	assert.Equal(t, "generate:abc", <-got)
}

func TestTaskRunnerRecoversPanics(t *testing.T) {
	runner := NewTaskRunner()
	var ran int32

	runner.Go("panics", func(ctx context.Context) error {
		panic("boom")
	})
	runner.Go("fails", func(ctx context.Context) error {
		return errors.New("failed")
	})
	runner.Go("ok", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	require.NoError(t, runner.Shutdown(time.Second))
	assert.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestTaskRunnerShutdownWaitsForTasks(t *testing.T) {
	runner := NewTaskRunner()
	var done int32

	for i := 0; i < 3; i++ {
		runner.Go("sleep", func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&done, 1)
			return nil
		})
	}

	require.NoError(t, runner.Shutdown(time.Second))
	assert.EqualValues(t, 3, atomic.LoadInt32(&done))

	assert.False(t, runner.Go("late", func(ctx context.Context) error { return nil }))
}

func TestTaskRunnerShutdownTimeoutCancelsTasks(t *testing.T) {
	runner := NewTaskRunner()
	cancelled := make(chan struct{})

	var recorded int32

	runner.Go("blocked", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		// Stands in for recording the failure on a context that outlives ctx
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&recorded, 1)
		return ctx.Err()
	})

	err := runner.Shutdown(30 * time.Millisecond)
	assert.Error(t, err)

	select {
	case <-cancelled:
	default:
		t.Fatal("task context was not cancelled after shutdown timeout")
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&recorded), "Shutdown must wait for cancelled tasks to unwind")
}
