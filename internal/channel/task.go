package channel

import (
	"context"
	"time"
)

// Task is a handle on a scheduled simulated server response.
type Task interface {
	// Cancel stops any step that has not fired yet.
	Cancel()
	// Done is closed once the task finished or was cancelled.
	Done() <-chan struct{}
}

// step is one delayed action of a response chain. Returning false ends the
// chain early.
type step struct {
	delay time.Duration
	run   func(ctx context.Context) bool
}

type timerTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *timerTask) Cancel() { t.cancel() }

func (t *timerTask) Done() <-chan struct{} { return t.done }

// finishedTask is returned when nothing was scheduled.
func finishedTask() Task {
	t := &timerTask{cancel: func() {}, done: make(chan struct{})}
	close(t.done)
	return t
}

// sleep waits for d or until ctx ends and reports whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
