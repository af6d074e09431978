package scoring

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/utils"
)

const (
	MaxTranscriptChars = 200_000
	MaxCVChars         = 100_000

	defaultMaxLogLength = 200
)

//go:embed prompt.md
var systemPrompt string

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, user string) (string, error)
}

// Scorer submits a transcript for scoring and validates the answer.
type Scorer struct {
	generator contentGenerator
	validator *Validator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Scorer{
		generator: generator,
		validator: NewValidator(logger),
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Score makes exactly one call to the generator. Oversized or empty input is
// rejected before the call. Every failure after the call is reported through
// interview.ErrScoringFailed; the cause is logged, not returned.
func (s *Scorer) Score(ctx context.Context, transcript, cv string) (*interview.ScoringResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: transcript is empty", interview.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(transcript); n > MaxTranscriptChars {
		return nil, fmt.Errorf("%w: transcript has %d characters, limit is %d", interview.ErrInvalidInput, n, MaxTranscriptChars)
	}
	if n := utf8.RuneCountInString(cv); n > MaxCVChars {
		return nil, fmt.Errorf("%w: cv has %d characters, limit is %d", interview.ErrInvalidInput, n, MaxCVChars)
	}

	user := buildUserContent(transcript, cv)

	s.logger.Debug("scoring request",
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.Bool("with_cv", strings.TrimSpace(cv) != ""),
		zap.String("prompt_preview", utils.TruncateForLog(user, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, systemPrompt, user)
	if err != nil {
		s.logger.Warn("scoring collaborator failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", interview.ErrUpstream, interview.ErrScoringFailed)
	}

	s.logger.Debug("scoring response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	payload, err := ParsePayload(raw)
	if err != nil {
		s.logger.Warn("scoring response is not valid JSON",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
		return nil, fmt.Errorf("%w: %w", interview.ErrValidationFailed, interview.ErrScoringFailed)
	}

	result, err := s.validator.Validate(payload)
	if err != nil {
		s.logger.Warn("scoring response failed validation",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
		)
		return nil, fmt.Errorf("%w: %w", interview.ErrValidationFailed, interview.ErrScoringFailed)
	}

	s.logger.Info("interview scored",
		zap.Int("rating", result.Rating),
		zap.String("tier", string(result.Tier)),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("moments", len(result.Moments)),
		zap.Bool("partial", result.IsPartial),
	)

	return result, nil
}

func buildUserContent(transcript, cv string) string {
	var builder strings.Builder

	if cv = strings.TrimSpace(cv); cv != "" {
		builder.WriteString("## Candidate CV\n\n")
		builder.WriteString(cv)
		builder.WriteString("\n\n")
	}

	builder.WriteString("## Interview transcript\n\n")
	builder.WriteString(strings.TrimSpace(transcript))
	builder.WriteString("\n\n")
	builder.WriteString("Evaluate the interview above and respond with the JSON object only.")

	return builder.String()
}
