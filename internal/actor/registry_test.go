package actor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestRegistry(t *testing.T) *Registry[*Runner] {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRegistry(func(name string) *Runner { return NewRunner(name) }, logger)
	t.Cleanup(r.Close)
	return r
}

func TestRegistryGet(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("SameNameSameInstance", func(t *testing.T) {
		a := r.Get("alice")
		b := r.Get("alice")
		assert.Same(t, a, b)
	})

	t.Run("DifferentNamesDifferentInstances", func(t *testing.T) {
		a := r.Get("alice")
		b := r.Get("bob")
		assert.NotSame(t, a, b)
		assert.Equal(t, "alice", a.Name())
		assert.Equal(t, "bob", b.Name())
	})

	t.Run("ConcurrentGetYieldsOneInstance", func(t *testing.T) {
		var mu sync.Mutex
		seen := make(map[*Runner]struct{})
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a := r.Get("carol")
				mu.Lock()
				seen[a] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 1)
	})
}

func TestRegistryEvictIdle(t *testing.T) {
	r := newTestRegistry(t)

	a := r.Get("alice")
	time.Sleep(5 * time.Millisecond)
	r.evictIdle(0)

	// The evicted runner no longer accepts work; a fresh Get rehydrates.
	err := a.Do(context.Background(), func(ctx context.Context) {})
	assert.ErrorIs(t, err, ErrStopped)
	assert.NotSame(t, a, r.Get("alice"))
}

func TestRegistryEvictionWaitsForRunningOperations(t *testing.T) {
	r := newTestRegistry(t)
	a := r.Get("alice")

	var active atomic.Int32
	var overlap atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = a.Do(context.Background(), func(ctx context.Context) {
			active.Add(1)
			close(started)
			<-release
			active.Add(-1)
		})
	}()
	<-started

	// Sweep while the operation is in flight. Eviction must not hand the
	// name to a second instance until the first has fully drained.
	evicted := make(chan struct{})
	go func() {
		defer close(evicted)
		r.evictIdle(time.Nanosecond)
	}()

	secondRan := make(chan struct{})
	go func() {
		defer close(secondRan)
		b := r.Get("alice")
		_ = b.Do(context.Background(), func(ctx context.Context) {
			if active.Load() > 0 {
				overlap.Store(true)
			}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	<-evicted
	<-secondRan

	assert.False(t, overlap.Load(), "two instances of one actor name must never run operations concurrently")
}

func TestRegistryDiscard(t *testing.T) {
	r := newTestRegistry(t)

	t.Run("RemovesCurrentInstance", func(t *testing.T) {
		a := r.Get("alice")
		r.Discard("alice", a)

		assert.ErrorIs(t, a.Do(context.Background(), func(ctx context.Context) {}), ErrStopped)
		assert.NotSame(t, a, r.Get("alice"))
	})

	t.Run("IgnoresStaleHandle", func(t *testing.T) {
		a := r.Get("bob")
		r.Discard("bob", a)
		b := r.Get("bob")

		// Discarding through the replaced handle must not touch the
		// successor.
		r.Discard("bob", a)
		assert.Same(t, b, r.Get("bob"))
		assert.NoError(t, b.Do(context.Background(), func(ctx context.Context) {}))
	})
}

func TestRegistryEvictIdleKeepsActiveActors(t *testing.T) {
	r := newTestRegistry(t)

	a := r.Get("alice")
	r.evictIdle(time.Hour)
	assert.Same(t, a, r.Get("alice"))
}

func TestRegistryClose(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRegistry(func(name string) *Runner { return NewRunner(name) }, logger)

	a := r.Get("alice")
	b := r.Get("bob")
	r.Close()

	assert.ErrorIs(t, a.Do(context.Background(), func(ctx context.Context) {}), ErrStopped)
	assert.ErrorIs(t, b.Do(context.Background(), func(ctx context.Context) {}), ErrStopped)
}
