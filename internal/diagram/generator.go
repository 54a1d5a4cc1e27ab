// Package diagram turns source text into a validated Mermaid flowchart by
// calling a chat-completions API with a bounded number of attempts.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MalithGihan/codediagram-service/internal/credential"
	"github.com/MalithGihan/codediagram-service/internal/validate"
	"github.com/MalithGihan/codediagram-service/pkg/types"
)

const DefaultMaxAttempts = 3

type Config struct {
	Chat        Completer
	Credentials *credential.Manager
	Logger      *slog.Logger
	// MaxAttempts counts the first call. Zero means DefaultMaxAttempts.
	MaxAttempts int
	// RetryDelay is the pause between attempts. Zero retries immediately.
	RetryDelay time.Duration
}

// Generator serializes calls: one generation runs at a time per Generator.
type Generator struct {
	chat        Completer
	creds       *credential.Manager
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration

	// sem holds one token; waiting callers give up when their context ends.
	sem chan struct{}
}

func New(cfg Config) (*Generator, error) {
	if cfg.Chat == nil {
		return nil, errors.New("diagram: chat client is required")
	}
	if cfg.Credentials == nil {
		return nil, errors.New("diagram: credential manager is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		chat:        cfg.Chat,
		creds:       cfg.Credentials,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		sem:         make(chan struct{}, 1),
	}, nil
}

func (g *Generator) MaxAttempts() int { return g.maxAttempts }

func (g *Generator) Model() string { return g.chat.Model() }

// Generate is GenerateRequest for bare source text.
func (g *Generator) Generate(ctx context.Context, source string) (types.GenerationResult, error) {
	return g.GenerateRequest(ctx, types.GenerationRequest{Source: source})
}

// GenerateRequest resolves the API key, then calls the model until the output
// validates or attempts run out. Missing keys fail before any request is made.
func (g *Generator) GenerateRequest(ctx context.Context, req types.GenerationRequest) (types.GenerationResult, error) {
	if err := g.acquire(ctx); err != nil {
		return types.GenerationResult{Model: g.chat.Model()}, &GenerationError{Err: err}
	}
	defer g.release()

	res := types.GenerationResult{ID: uuid.NewString(), Model: g.chat.Model()}
	start := time.Now()
	log := g.logger.With("generation_id", res.ID)

	apiKey, err := g.creds.Token(ctx)
	if err != nil {
		log.WarnContext(ctx, "diagram generation aborted: no API key", "error", err)
		return res, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	userPrompt, err := UserPrompt(req)
	if err != nil {
		return res, err
	}

	log.InfoContext(ctx, "generating diagram",
		"source_length", len(req.Source),
		"language", req.Language,
		"model", res.Model)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 && g.retryDelay > 0 {
			select {
			case <-time.After(g.retryDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return res, &GenerationError{Attempts: attempt - 1, Err: ctx.Err()}
		}
		res.Attempts = attempt

		text, err := g.attempt(ctx, apiKey, userPrompt)
		if err == nil {
			res.Diagram = text
			res.Duration = time.Since(start)
			log.InfoContext(ctx, "diagram generated",
				"attempt", attempt,
				"max_attempts", g.maxAttempts,
				"duration_ms", res.Duration.Milliseconds())
			return res, nil
		}
		lastErr = err

		if errors.Is(err, ErrResponseShape) {
			log.ErrorContext(ctx, "malformed completion response, not retrying",
				"attempt", attempt, "error", err)
			return res, &GenerationError{Attempts: attempt, Err: err}
		}
		log.WarnContext(ctx, "diagram attempt failed",
			"attempt", attempt,
			"max_attempts", g.maxAttempts,
			"error", err)
	}

	log.ErrorContext(ctx, "diagram generation exhausted attempts",
		"max_attempts", g.maxAttempts, "error", lastErr)
	return res, &GenerationError{Attempts: g.maxAttempts, Err: lastErr}
}

func (g *Generator) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Generator) release() { <-g.sem }

func (g *Generator) attempt(ctx context.Context, apiKey, userPrompt string) (string, error) {
	out, err := g.chat.Complete(ctx, apiKey, SystemPrompt(), userPrompt)
	if err != nil {
		return "", err
	}
	text := StripFences(out)
	if err := validate.Diagram(text); err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return text, nil
}
