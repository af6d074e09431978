// Package ratelimit implements a process-local sliding-window limiter shared
// by every inbound operation. Budgets are not persisted: a restart resets them.
package ratelimit

import (
	"sync"
	"time"
)

// Namespaces of the independent request budgets.
const (
	NamespaceTranscript = "transcript"
	NamespaceScoring    = "scoring"
	NamespaceUpload     = "upload"
)

const defaultSweepEvery = 100

// Policy is the budget of one namespace: at most MaxRequests admissions per
// trailing Window.
type Policy struct {
	MaxRequests int           `mapstructure:"max-requests"`
	Window      time.Duration `mapstructure:"window"`
}

func (p Policy) valid() bool {
	return p.MaxRequests > 0 && p.Window > 0
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
}

type window struct {
	stamps []time.Time
	span   time.Duration
}

// Limiter tracks admitted request timestamps per namespace and identifier.
type Limiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	calls      uint64
	sweepEvery uint64
	now        func() time.Time
	observe    func(namespace string, allowed bool)
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSweepEvery sets how many admission calls pass between global sweeps.
func WithSweepEvery(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.sweepEvery = uint64(n)
		}
	}
}

// WithObserver registers a callback invoked after every decision.
func WithObserver(fn func(namespace string, allowed bool)) Option {
	return func(l *Limiter) {
		l.observe = fn
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows:    make(map[string]*window),
		sweepEvery: defaultSweepEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records a request for identifier in namespace if the policy allows it.
// The check and the record happen under one lock, so concurrent callers on the
// same key can never be admitted more than policy.MaxRequests times per window.
// Denied requests are not recorded. An invalid policy denies everything.
func (l *Limiter) Admit(namespace, identifier string, policy Policy) Decision {
	decision := l.admit(namespace, identifier, policy)
	if l.observe != nil {
		l.observe(namespace, decision.Allowed)
	}
	return decision
}

func (l *Limiter) admit(namespace, identifier string, policy Policy) Decision {
	if !policy.valid() {
		return Decision{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	l.calls++
	if l.calls%l.sweepEvery == 0 {
		l.sweep(now)
	}

	key := namespace + "\x00" + identifier
	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.span = policy.Window
	w.stamps = prune(w.stamps, now.Add(-policy.Window))

	if len(w.stamps) >= policy.MaxRequests {
		return Decision{Allowed: false, Remaining: 0}
	}

	w.stamps = append(w.stamps, now)
	return Decision{Allowed: true, Remaining: policy.MaxRequests - len(w.stamps)}
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweep drops keys whose newest timestamp left the window. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if len(w.stamps) == 0 || !w.stamps[len(w.stamps)-1].After(now.Add(-w.span)) {
			delete(l.windows, key)
		}
	}
}

// prune removes timestamps at or before cutoff. stamps are in ascending order.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
