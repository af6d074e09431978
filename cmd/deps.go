package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/ai"
	"github.com/spigell/hh-interviewer/internal/ai/gemini"
	"github.com/spigell/hh-interviewer/internal/metrics"
	"github.com/spigell/hh-interviewer/internal/pipeline"
	"github.com/spigell/hh-interviewer/internal/ratelimit"
	"github.com/spigell/hh-interviewer/internal/scoring"
	"github.com/spigell/hh-interviewer/internal/secrets"
	"github.com/spigell/hh-interviewer/internal/transcript"
)

// buildPipeline wires the collaborators shared by every analysis attempt.
func buildPipeline(ctx context.Context, config *Config, logger *zap.Logger) (pipeline.Deps, *ratelimit.Limiter, error) {
	limiter := ratelimit.New(
		ratelimit.WithSweepEvery(config.Limits.SweepEvery),
		ratelimit.WithObserver(metrics.ObserveRateLimit),
	)

	retriever, err := newRetriever(config.Transcript, logger.Named("transcript"))
	if err != nil {
		return pipeline.Deps{}, nil, err
	}

	generator, err := newGenerator(ctx, config.AI, logger.Named("ai"))
	if err != nil {
		return pipeline.Deps{}, nil, err
	}

	scorer := scoring.NewScorer(generator, logger.Named("scoring"), config.AI.Gemini.MaxLogLength)

	return pipeline.Deps{
		Retriever: retriever,
		Scorer:    scorer,
		Limiter:   limiter,
		Policies: pipeline.Policies{
			Transcript: config.Limits.Transcript,
			Scoring:    config.Limits.Scoring,
		},
		Deliberation: config.Pipeline.Deliberation,
		Logger:       logger.Named("pipeline"),
	}, limiter, nil
}

func newRetriever(cfg *TranscriptConfig, logger *zap.Logger) (*transcript.Retriever, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name: "elevenlabs api key",
		File: cfg.APIKeyFile,
		Env:  "ELEVENLABS_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set transcript.api-key-file or ELEVENLABS_API_KEY_FILE)", err)
	}

	source := transcript.NewElevenLabs(apiKey, logger)
	if cfg.BaseURL != "" {
		source.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		source.HTTPClient.Timeout = cfg.Timeout
	}

	return transcript.NewRetriever(source, logger,
		transcript.WithMaxAttempts(cfg.MaxAttempts),
		transcript.WithBackoff(cfg.BaseDelay, cfg.Multiplier),
	), nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("ai generator ready", zap.String("model", generator.Model()))
	return generator, nil
}
