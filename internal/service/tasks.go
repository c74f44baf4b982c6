package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/timmy/stickergen/internal/logger"
)

// TaskRunner runs fire-and-forget background tasks.
// Each task gets its own goroutine, a context detached from any request, and a
// recover boundary so a failing task never affects the caller or other tasks.
type TaskRunner struct {
	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewTaskRunner() *TaskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{baseCtx: ctx, cancel: cancel}
}

// Go starts fn in the background. It returns false without running fn once Shutdown has begun.
// Parameters:
//   - name: task name used in logs.
//   - fn: task body; its error is logged, never returned.
// Returns:
//   - bool: whether the task was started.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		ctx := logger.WithField(r.baseCtx, logger.FieldTask, name)
		start := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				logger.CtxError(ctx, "Background task panicked: %v\n%s", rec, debug.Stack())
			}
		}()

		if err := fn(ctx); err != nil {
			logger.With(logger.Fields{}).WithDuration(start).Warn(ctx, "Background task failed: %v", err)
			return
		}
		logger.With(logger.Fields{}).WithDuration(start).Debug(ctx, "Background task finished")
	}()
	return true
}

// Shutdown stops accepting tasks and waits up to timeout for running ones.
// If they are still running when the timeout elapses their context is cancelled,
// Shutdown waits up to recordTimeout more for them to record the cancellation,
// and an error is returned.
func (r *TaskRunner) Shutdown(timeout time.Duration) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-time.After(timeout):
	}

	r.cancel()
	select {
	case <-done:
		return fmt.Errorf("background tasks cancelled after %s", timeout)
	case <-time.After(recordTimeout):
		return fmt.Errorf("background tasks still running after %s", timeout+recordTimeout)
	}
}
