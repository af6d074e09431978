package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/metrics"
	"github.com/spigell/hh-interviewer/internal/utils"
)

const (
	DefaultMaxAttempts = 8
	DefaultBaseDelay   = 3 * time.Second
	DefaultMultiplier  = 1.5
)

// Gate is consulted before every poll. A non-nil error aborts the fetch and is
// returned unchanged.
type Gate func(ctx context.Context) error

// Retriever polls a Source until the conversation transcript is ready.
type Retriever struct {
	source      Source
	logger      *zap.Logger
	maxAttempts int
	baseDelay   time.Duration
	multiplier  float64
	wait        func(ctx context.Context, d time.Duration) error
	gate        Gate
}

type Option func(*Retriever)

func WithMaxAttempts(n int) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay before the second poll and its growth factor.
func WithBackoff(base time.Duration, multiplier float64) Option {
	return func(r *Retriever) {
		if base > 0 {
			r.baseDelay = base
		}
		if multiplier >= 1 {
			r.multiplier = multiplier
		}
	}
}

// WithWait replaces the function used to sleep between polls.
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retriever) {
		if wait != nil {
			r.wait = wait
		}
	}
}

func NewRetriever(source Source, logger *zap.Logger, opts ...Option) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Retriever{
		source:      source,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		multiplier:  DefaultMultiplier,
		wait:        utils.WaitFor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gated returns a copy of r that calls gate before every poll.
func (r *Retriever) Gated(gate Gate) *Retriever {
	clone := *r
	clone.gate = gate
	return &clone
}

// Fetch polls until the transcript is ready. The first poll is immediate and
// the delay before poll i is baseDelay * multiplier^(i-1). Source errors are
// never retried. When every attempt reports a non-terminal status the error
// wraps interview.ErrNotReady.
func (r *Retriever) Fetch(ctx context.Context, id interview.ConversationID) ([]interview.TranscriptEntry, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: malformed conversation id", interview.ErrInvalidInput)
	}
	if r.source == nil {
		return nil, errors.New("transcript source is not configured")
	}

	log := r.logger.With(zap.String("conversation_id", id.String()))

	for attempt := range r.maxAttempts {
		if attempt > 0 {
			delay := utils.BackoffDelay(r.baseDelay, r.multiplier, attempt-1)
			log.Debug("transcript not ready, waiting",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := r.wait(ctx, delay); err != nil {
				return nil, fmt.Errorf("waiting for transcript: %w", err)
			}
		}

		if r.gate != nil {
			if err := r.gate(ctx); err != nil {
				return nil, err
			}
		}

		conversation, err := r.source.GetConversation(ctx, id)
		if err != nil {
			metrics.ObserveTranscriptPoll(metrics.OutcomeRejected)
			log.Warn("transcript source failed", zap.Int("attempt", attempt+1), zap.Error(err))
			if errors.Is(err, interview.ErrUpstream) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", interview.ErrUpstream, err)
		}

		switch classify(conversation.Status) {
		case ready:
			metrics.ObserveTranscriptPoll(metrics.OutcomeReady)
			entries := normalize(conversation.Entries)
			log.Info("transcript ready",
				zap.Int("attempts", attempt+1),
				zap.Int("entries", len(entries)),
			)
			return entries, nil
		case failed:
			metrics.ObserveTranscriptPoll(metrics.OutcomeRejected)
			return nil, fmt.Errorf("%w: conversation processing failed", interview.ErrUpstream)
		default:
			metrics.ObserveTranscriptPoll(metrics.OutcomePending)
			log.Debug("conversation still processing",
				zap.Int("attempt", attempt+1),
				zap.String("status", conversation.Status),
			)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", interview.ErrNotReady, r.maxAttempts)
}
