// Package loop provides the host's single event loop.
//
// Every registry mutation and routing decision runs as a short task on one
// goroutine, in the order tasks were posted. Work that suspends (content
// loads, renderer launches) runs elsewhere and posts its continuation back.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrStopped is returned when posting to a loop that has exited
	ErrStopped = errors.New("event loop stopped")
)

// Task is a unit of work executed on the loop goroutine
type Task func()

// Loop is a FIFO task queue drained by a single goroutine
type Loop struct {
	tasks   chan Task
	done    chan struct{}
	stopped sync.Once
	logger  *zap.Logger
}

// New creates a loop with the given queue capacity
func New(capacity int, logger *zap.Logger) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		tasks:  make(chan Task, capacity),
		done:   make(chan struct{}),
		logger: logger.Named("loop"),
	}
}

// Run drains tasks until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			l.execute(task)
		}
	}
}

// Post enqueues a task. It blocks while the queue is full and fails once
// the loop has stopped.
func (l *Loop) Post(task Task) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}

	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Call posts a task and waits for it to finish
func (l *Loop) Call(ctx context.Context, task Task) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the loop exits
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) stop() {
	l.stopped.Do(func() { close(l.done) })
}

// execute runs a task, containing panics so one bad message cannot stop
// routing for every window
func (l *Loop) execute(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
		}
	}()
	task()
}
