// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm issues completion requests against a language model
// provider with per-attempt timeouts, retry, and backoff.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/coursegen/pkg/types"
)

// Terminal provider conditions. These still consume retry budget but are
// surfaced with a distinct kind so callers can tell a throttled provider
// from a broken one.
var (
	// ErrRateLimited marks an HTTP 429 from the provider.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExhausted marks an HTTP 402 (out of credit) from the provider.
	ErrQuotaExhausted = errors.New("quota exhausted")

	// ErrEmptyResponse marks a completion that returned no content.
	ErrEmptyResponse = errors.New("empty response")
)

// Request is a single completion request.
type Request struct {
	// Model is the provider model identifier.
	Model string

	// SystemPrompt sets the assistant's role and formatting rules.
	SystemPrompt string

	// UserPrompt is the task prompt.
	UserPrompt string
}

// Client issues one completion request. Implementations hold no state
// between calls. The pipeline talks to a Client wrapped in a Retrier.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

const (
	defaultMaxRetries     = 3
	defaultRequestTimeout = 120 * time.Second
	defaultBackoffBase    = 2 * time.Second
	defaultBackoffCap     = 10 * time.Second
)

// Retrier wraps a Client with a hard wall-clock timeout per attempt and
// exponential backoff between attempts. A timed-out attempt is aborted
// through context cancellation before the next one starts, so a retry
// never races a zombie request.
type Retrier struct {
	client      Client
	maxRetries  int
	timeout     time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *zap.Logger
}

// NewRetrier builds a Retrier from config, applying defaults for unset
// fields (3 retries, 120s timeout, 2s backoff base, 10s cap).
func NewRetrier(client Client, cfg types.AIConfig, logger *zap.Logger) *Retrier {
	r := &Retrier{
		client:      client,
		maxRetries:  cfg.MaxRetries,
		timeout:     cfg.RequestTimeout,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
		logger:      logger,
	}
	if r.maxRetries <= 0 {
		r.maxRetries = defaultMaxRetries
	}
	if r.timeout <= 0 {
		r.timeout = defaultRequestTimeout
	}
	if r.backoffBase <= 0 {
		r.backoffBase = defaultBackoffBase
	}
	if r.backoffCap <= 0 {
		r.backoffCap = defaultBackoffCap
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Complete runs the request through the wrapped client, retrying failed
// attempts up to the configured budget. maxRetries bounds the total
// attempt count, so the default of 3 means one initial call plus two
// retries. The backoff doubles each attempt (base * 2^(attempt-1)) up
// to the cap. After exhausting retries the last error is returned
// wrapped, so errors.Is still matches its kind.
func (r *Retrier) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		text, err := r.client.Complete(attemptCtx, req)
		cancel()

		if err == nil {
			return text, nil
		}
		lastErr = err

		r.logger.Warn("completion attempt failed",
			zap.String("model", req.Model),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", r.maxRetries),
			zap.Error(err))

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == r.maxRetries {
			break
		}

		backoff := r.backoffBase << (attempt - 1)
		if backoff > r.backoffCap {
			backoff = r.backoffCap
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", r.maxRetries, lastErr)
}
