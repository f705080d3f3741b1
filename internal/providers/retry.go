package providers

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// ErrCancelled marks a call aborted by context cancellation, propagated
// immediately without retry (spec §4.2, §7: ProviderCancelled). It is the
// same sentinel the loop checks with errors.Is(err, orchestrator.ErrCancelled)
// — a distinct error value here would never match there.
var ErrCancelled = orchestrator.ErrCancelled

// RetryConfig bounds the exponential backoff applied to transient provider
// failures. Grounded on original_source's tenacity-based
// wait_exponential(...) usage in prebuilt/orchestrator.py, not on the
// teacher's own linear BaseProvider.Retry — see DESIGN.md for why the two
// diverge here.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches spec §4.2/§7: up to 5 attempts, exponential
// backoff.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}

// Retry runs op up to cfg.MaxAttempts times with exponential backoff,
// doubling BaseDelay each attempt up to MaxDelay. It stops immediately,
// without retrying, when op returns a context-overflow or non-retryable
// error (returned to the caller unchanged) or when ctx is done (returned as
// ErrCancelled), per spec §4.2.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return zero, ErrCancelled
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ErrCancelled
		}
		if IsContextOverflow(err) {
			return zero, err
		}
		if !IsRetryable(err) {
			return zero, err
		}

		delay := cfg.BaseDelay * time.Duration(1<<uint(attempt))
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		select {
		case <-ctx.Done():
			return zero, ErrCancelled
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
