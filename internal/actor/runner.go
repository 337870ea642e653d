package actor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrStopped is returned by Do when the runner is no longer accepting work.
var ErrStopped = errors.New("actor stopped")

const defaultMailboxSize = 64

type call struct {
	fn   func()
	done chan struct{}
}

// Runner serializes all operations of one actor. Operations are queued into a
// mailbox and executed one at a time by a single goroutine, so no two
// operations on the same actor ever interleave their effects. An operation
// that has been accepted always runs to completion: the caller's context is
// stripped of cancellation before the operation executes.
type Runner struct {
	name       string
	mailbox    chan call
	quit       chan struct{}
	done       chan struct{}
	lastActive atomic.Int64 // unix nanos
}

// NewRunner starts the actor's processing goroutine.
func NewRunner(name string) *Runner {
	r := &Runner{
		name:    name,
		mailbox: make(chan call, defaultMailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.touch()
	go r.process()
	return r
}

// Name returns the stable identity the runner was registered under.
func (r *Runner) Name() string { return r.name }

// Do enqueues fn and blocks until it has fully executed. Enqueueing honours
// ctx, but once accepted the operation is not cancellable.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context)) error {
	opCtx := context.WithoutCancel(ctx)
	c := call{fn: func() { fn(opCtx) }, done: make(chan struct{})}
	select {
	case r.mailbox <- c:
	case <-r.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.done:
		return nil
	case <-r.done:
		// The shutdown drain may have run the operation just before the
		// runner exited; report success in that case.
		select {
		case <-c.done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// IdleTime reports how long ago the actor last executed an operation.
func (r *Runner) IdleTime() time.Duration {
	return time.Since(time.Unix(0, r.lastActive.Load()))
}

// Stop shuts the runner down. Already queued operations are drained first;
// Stop returns once the processing goroutine has exited.
func (r *Runner) Stop() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
	<-r.done
}

func (r *Runner) touch() {
	r.lastActive.Store(time.Now().UnixNano())
}

func (r *Runner) process() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			// Drain whatever was accepted before the stop.
			for {
				select {
				case c := <-r.mailbox:
					r.run(c)
				default:
					return
				}
			}
		case c := <-r.mailbox:
			r.run(c)
		}
	}
}

// run touches on both sides of the operation so a long-running operation
// never makes the actor look idle.
func (r *Runner) run(c call) {
	r.touch()
	c.fn()
	r.touch()
	close(c.done)
}
