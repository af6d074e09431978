package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/logger"
	"github.com/spigell/hh-interviewer/internal/metrics"
	"github.com/spigell/hh-interviewer/internal/ratelimit"
	"github.com/spigell/hh-interviewer/internal/transcript"
	"github.com/spigell/hh-interviewer/internal/utils"
)

const anonymousIdentity = "anonymous"

// ErrAlreadyStarted is returned by Run on every call after the first.
var ErrAlreadyStarted = errors.New("pipeline already started")

// Scorer scores a rendered transcript with an optional CV.
type Scorer interface {
	Score(ctx context.Context, transcript, cv string) (*interview.ScoringResult, error)
}

// Policies holds the rate limit budgets consulted by a pipeline.
type Policies struct {
	Transcript ratelimit.Policy `mapstructure:"transcript"`
	Scoring    ratelimit.Policy `mapstructure:"scoring"`
}

// Deps are shared by every pipeline built from them. A nil Limiter disables
// rate limiting.
type Deps struct {
	Retriever    *transcript.Retriever
	Scorer       Scorer
	Limiter      *ratelimit.Limiter
	Policies     Policies
	Deliberation time.Duration
	Logger       *zap.Logger
	Wait         func(ctx context.Context, d time.Duration) error
}

// Input is captured once at construction and never changes.
type Input struct {
	ConversationID interview.ConversationID
	CVText         string
	Identity       string
}

// Snapshot is a consistent view of a pipeline at one point in time.
type Snapshot struct {
	ID             string                   `json:"id"`
	ConversationID string                   `json:"conversationId"`
	Phase          Phase                    `json:"phase"`
	Result         *interview.ScoringResult `json:"result,omitempty"`
	Error          string                   `json:"error,omitempty"`
	ErrorKind      interview.Kind           `json:"errorKind,omitempty"`
	StartedAt      time.Time                `json:"startedAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

type Option func(*Pipeline)

// WithObserver registers fn to be called after every transition.
func WithObserver(fn func(Snapshot)) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.observers = append(p.observers, fn)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline drives one analysis attempt through
// retrieving -> scoring -> deliberating -> done, or to failed.
type Pipeline struct {
	id        string
	input     Input
	deps      Deps
	logger    *zap.Logger
	now       func() time.Time
	observers []func(Snapshot)

	mu        sync.Mutex
	started   bool
	phase     Phase
	result    *interview.ScoringResult
	err       error
	startedAt time.Time
	updatedAt time.Time
}

func New(deps Deps, input Input, opts ...Option) *Pipeline {
	input.CVText = strings.TrimSpace(input.CVText)
	if input.Identity = strings.TrimSpace(input.Identity); input.Identity == "" {
		input.Identity = anonymousIdentity
	}
	if deps.Wait == nil {
		deps.Wait = utils.WaitFor
	}

	p := &Pipeline{
		id:    uuid.NewString(),
		input: input,
		deps:  deps,
		now:   time.Now,
		phase: RetrievingTranscript,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.logger = logger.WithFields(deps.Logger, logger.AttemptFields(p.id, input.ConversationID.String())...)
	p.startedAt = p.now()
	p.updatedAt = p.startedAt

	return p
}

func (p *Pipeline) ID() string {
	return p.id
}

// Snapshot returns the current state. Result is set only in Done; Error and
// ErrorKind only in Failed.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             p.id,
		ConversationID: p.input.ConversationID.String(),
		Phase:          p.phase,
		Result:         p.result,
		StartedAt:      p.startedAt,
		UpdatedAt:      p.updatedAt,
	}
	if p.err != nil {
		snap.Error = interview.PublicMessage(p.err)
		snap.ErrorKind = interview.KindOf(p.err)
	}
	return snap
}

// Run executes the attempt. It may be called once; a failed attempt is never
// resumed, a retry needs a new Pipeline.
func (p *Pipeline) Run(ctx context.Context) (*interview.ScoringResult, error) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("analysis started", zap.Bool("with_cv", p.input.CVText != ""))

	result, err := p.run(ctx)
	if err != nil {
		p.fail(err)
		p.record(Failed, err)
		return nil, err
	}

	p.record(Done, nil)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*interview.ScoringResult, error) {
	if !p.input.ConversationID.Valid() {
		return nil, fmt.Errorf("%w: malformed conversation id", interview.ErrInvalidInput)
	}
	if p.deps.Retriever == nil || p.deps.Scorer == nil {
		return nil, errors.New("pipeline dependencies are not configured")
	}

	retriever := p.deps.Retriever.Gated(p.gate(ratelimit.NamespaceTranscript, p.deps.Policies.Transcript))
	entries, err := retriever.Fetch(ctx, p.input.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := p.advance(Scoring, nil); err != nil {
		return nil, err
	}

	if err := p.gate(ratelimit.NamespaceScoring, p.deps.Policies.Scoring)(ctx); err != nil {
		return nil, err
	}
	result, err := p.deps.Scorer.Score(ctx, interview.FormatTranscript(entries), p.input.CVText)
	if err != nil {
		return nil, err
	}
	if err := p.advance(Deliberating, nil); err != nil {
		return nil, err
	}

	if p.deps.Deliberation > 0 {
		if err := p.deps.Wait(ctx, p.deps.Deliberation); err != nil {
			return nil, fmt.Errorf("deliberating: %w", err)
		}
	}
	if err := p.advance(Done, result); err != nil {
		return nil, err
	}

	return result, nil
}

func (p *Pipeline) gate(namespace string, policy ratelimit.Policy) transcript.Gate {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.deps.Limiter == nil {
			return nil
		}
		decision := p.deps.Limiter.Admit(namespace, p.input.Identity, policy)
		if !decision.Allowed {
			p.logger.Warn("rate limit exceeded", zap.String("namespace", namespace))
			return fmt.Errorf("%w: %s budget exhausted", interview.ErrRateLimited, namespace)
		}
		return nil
	}
}

// advance moves the pipeline to the next phase. result is stored only on Done.
func (p *Pipeline) advance(to Phase, result *interview.ScoringResult) error {
	p.mu.Lock()
	from := p.phase
	if !canTransition(from, to) {
		p.mu.Unlock()
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	p.phase = to
	if to == Done {
		p.result = result
	}
	p.updatedAt = p.now()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Info("phase changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	p.notify(snap)
	return nil
}

// fail moves the pipeline to Failed and drops any partial result.
func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	from := p.phase
	if !canTransition(from, Failed) {
		p.mu.Unlock()
		return
	}
	p.phase = Failed
	p.result = nil
	p.err = err
	p.updatedAt = p.now()
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.logger.Warn("analysis failed",
		zap.Stringer("from", from),
		zap.String("kind", string(snap.ErrorKind)),
		zap.Error(err),
	)
	p.notify(snap)
}

func (p *Pipeline) notify(snap Snapshot) {
	for _, fn := range p.observers {
		fn(snap)
	}
}

func (p *Pipeline) record(phase Phase, err error) {
	p.mu.Lock()
	elapsed := p.updatedAt.Sub(p.startedAt)
	p.mu.Unlock()

	metrics.ObservePipeline(elapsed, phase.String(), string(interview.KindOf(err)))
	if phase == Done {
		p.logger.Info("analysis finished", zap.Duration("elapsed", elapsed))
	}
}
