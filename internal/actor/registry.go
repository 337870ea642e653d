package actor

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

// Instance is what the registry manages: anything built around a Runner.
type Instance interface {
	Name() string
	IdleTime() time.Duration
	Stop()
}

const shardCount = 16

type shard[T Instance] struct {
	mu       sync.Mutex
	actors   map[string]T
	draining map[string]chan struct{}
}

// Registry resolves a stable actor name to its single live instance,
// instantiating lazily on first use. Different names map to fully independent
// actors; the registry guarantees at most one live instance per name: a name
// being drained (its instance stopping, mailbox emptying) is not reusable
// until the drain completes, so two instances of the same actor never run
// operations concurrently.
type Registry[T Instance] struct {
	logger  *slog.Logger
	factory func(name string) T
	shards  [shardCount]*shard[T]
}

func NewRegistry[T Instance](factory func(name string) T, logger *slog.Logger) *Registry[T] {
	r := &Registry[T]{
		logger:  logger,
		factory: factory,
	}
	for i := range r.shards {
		r.shards[i] = &shard[T]{
			actors:   make(map[string]T),
			draining: make(map[string]chan struct{}),
		}
	}
	return r
}

func (r *Registry[T]) shardFor(name string) *shard[T] {
	h := fnv.New32a()
	h.Write([]byte(name))
	return r.shards[h.Sum32()%shardCount]
}

// Get returns the live actor for name, creating it if necessary. When the
// previous instance is still draining, Get blocks until the drain finishes
// and then creates the successor.
func (r *Registry[T]) Get(name string) T {
	s := r.shardFor(name)
	for {
		s.mu.Lock()
		if a, ok := s.actors[name]; ok {
			s.mu.Unlock()
			return a
		}
		if drained, ok := s.draining[name]; ok {
			s.mu.Unlock()
			<-drained
			continue
		}
		a := r.factory(name)
		s.actors[name] = a
		s.mu.Unlock()
		r.logger.Debug("actor instantiated", slog.String("actor", name))
		return a
	}
}

// Discard stops and removes the instance if name still resolves to it. Used
// by handlers to drop actors that were instantiated for a lookup and turned
// out to hold no state.
func (r *Registry[T]) Discard(name string, a T) {
	s := r.shardFor(name)
	s.mu.Lock()
	cur, ok := s.actors[name]
	if !ok || any(cur) != any(a) {
		s.mu.Unlock()
		return
	}
	s.beginDrain(name)
	s.mu.Unlock()

	a.Stop()
	s.finishDrain(name)
	r.logger.Debug("actor discarded", slog.String("actor", name))
}

// Passivate runs until ctx is done, periodically stopping and evicting actors
// that have been idle longer than ttl. Their durable state stays in the store,
// so a later Get simply rehydrates a fresh instance.
func (r *Registry[T]) Passivate(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictIdle(ttl)
		}
	}
}

func (r *Registry[T]) evictIdle(ttl time.Duration) {
	for _, s := range r.shards {
		victims := make(map[string]T)
		s.mu.Lock()
		for name, a := range s.actors {
			if a.IdleTime() > ttl {
				s.beginDrain(name)
				victims[name] = a
			}
		}
		s.mu.Unlock()
		for name, a := range victims {
			// Stop blocks until queued operations have run; only then does
			// the name become available for a fresh instance.
			a.Stop()
			s.finishDrain(name)
			r.logger.Debug("actor passivated", slog.String("actor", name))
		}
	}
}

// beginDrain moves name from the live map into the draining set. Caller holds
// the shard lock.
func (s *shard[T]) beginDrain(name string) {
	delete(s.actors, name)
	s.draining[name] = make(chan struct{})
}

func (s *shard[T]) finishDrain(name string) {
	s.mu.Lock()
	close(s.draining[name])
	delete(s.draining, name)
	s.mu.Unlock()
}

// Close stops every live actor. Used on shutdown.
func (r *Registry[T]) Close() {
	for _, s := range r.shards {
		s.mu.Lock()
		actors := make([]T, 0, len(s.actors))
		for _, a := range s.actors {
			actors = append(actors, a)
		}
		s.actors = make(map[string]T)
		s.mu.Unlock()
		for _, a := range actors {
			a.Stop()
		}
	}
}
