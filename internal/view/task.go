// Package view runs the two screen views and switches between them on
// button presses. Exactly one view task runs at a time.
package view

import (
	"context"
	"errors"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("main.view")

// Task is a view running in its own goroutine.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs fn in a new goroutine under a context derived from ctx.
func Start(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		defer cancel()
		t.err = fn(ctx)
	}()

	logger.Debugf("started view %v", name)
	return t
}

func (t *Task) Name() string {
	return t.name
}

// Cancel asks the task to stop, it returns immediately.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the task returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task returned. A task that stopped because it was
// cancelled returned cleanly, any other error is the task's own failure.
func (t *Task) Wait() error {
	<-t.done
	if errors.Is(t.err, context.Canceled) {
		return nil
	}
	return t.err
}

// Stop cancels the task and waits for its teardown.
func (t *Task) Stop() error {
	t.Cancel()
	return t.Wait()
}
