package dispatch

import (
	"context"

	"github.com/teris-io/shortid"
)

// Task is the handle to one in-flight operation. It settles exactly once,
// with either a result or an error, and never both.
type Task[TR any] struct {
	ID   string
	Kind Kind

	done   chan struct{}
	result TR
	err    error
}

func newTask[TR any](kind Kind) *Task[TR] {
	return &Task[TR]{
		ID:   kind.Value + "-" + shortid.MustGenerate(),
		Kind: kind,
		done: make(chan struct{}),
	}
}

func (t *Task[TR]) resolve(result TR, err error) {
	t.result = result
	t.err = err
	close(t.done)
}

// Result returns the result of the task, blocking until it settles or ctx
// gives up.
func (t *Task[TR]) Result(ctx context.Context) (TR, error) {
	select {
	case <-ctx.Done():
		var zero TR
		return zero, ctx.Err()
	case <-t.done:
		return t.result, t.err
	}
}

// Wait waits until the task is done
func (t *Task[TR]) Wait(ctx context.Context) error {
	_, err := t.Result(ctx)
	return err
}

// Settled reports whether the task already finished, without blocking.
func (t *Task[TR]) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
