package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/pipeline"
)

const DefaultAttemptTTL = 30 * time.Minute

type attempt struct {
	pipeline   *pipeline.Pipeline
	cancel     context.CancelFunc
	finishedAt time.Time
}

// Registry keeps analysis attempts in memory so clients can poll them.
// Finished attempts are evicted lazily once they are older than the TTL.
type Registry struct {
	base   context.Context
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	attempts map[string]*attempt
	running  sync.WaitGroup
}

// NewRegistry creates a registry whose attempts run under base; cancelling base
// abandons every running attempt.
func NewRegistry(base context.Context, ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultAttemptTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		base:     base,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
		attempts: make(map[string]*attempt),
	}
}

// Start runs p in the background and makes it visible through Get.
func (r *Registry) Start(p *pipeline.Pipeline) {
	ctx, cancel := context.WithCancel(r.base)

	r.mu.Lock()
	r.evictLocked()
	entry := &attempt{pipeline: p, cancel: cancel}
	r.attempts[p.ID()] = entry
	r.running.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.running.Done()
		defer cancel()

		// The outcome is read back through the snapshot.
		_, _ = p.Run(ctx)

		r.mu.Lock()
		entry.finishedAt = r.now()
		r.mu.Unlock()
	}()
}

func (r *Registry) Get(id string) (pipeline.Snapshot, bool) {
	r.mu.Lock()
	r.evictLocked()
	entry, ok := r.attempts[id]
	r.mu.Unlock()

	if !ok {
		return pipeline.Snapshot{}, false
	}
	return entry.pipeline.Snapshot(), true
}

// Remove abandons the attempt: its context is cancelled and its state dropped.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	entry, ok := r.attempts[id]
	delete(r.attempts, id)
	r.mu.Unlock()

	if ok {
		entry.cancel()
		r.logger.Info("analysis abandoned", zap.String("attempt_id", id))
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

// Wait blocks until every started attempt has returned.
func (r *Registry) Wait() {
	r.running.Wait()
}

func (r *Registry) evictLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, entry := range r.attempts {
		if !entry.finishedAt.IsZero() && entry.finishedAt.Before(cutoff) {
			delete(r.attempts, id)
		}
	}
}
