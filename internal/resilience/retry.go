// Package resilience holds the retry, circuit breaker, and failure
// classification primitives shared by the pipeline and the external clients.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how Do re-runs a failing operation.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, first call included.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each failed attempt. 1.0 keeps the
	// delay constant.
	Multiplier float64

	// JitterFraction spreads each delay by up to this fraction of itself in
	// either direction.
	JitterFraction float64

	// ShouldRetry decides whether an error deserves another attempt. When
	// nil, only errors passing IsTransient are retried.
	ShouldRetry func(err error) bool

	// OnRetry runs before each sleep, with the attempt number that just
	// failed and its error.
	OnRetry func(attempt int, err error)
}

// FixedRetry is the whole-job retry policy: a fixed number of attempts with a
// constant delay between them, retrying on every error. The pipeline uses it
// because any uncaught stage error restarts the job from the top.
func FixedRetry(maxAttempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: delay,
		MaxBackoff:     delay,
		Multiplier:     1.0,
		JitterFraction: 0,
		ShouldRetry:    func(error) bool { return true },
	}
}

// Do runs fn until it succeeds, attempts run out, the error is not worth
// retrying, or the context ends. The last error seen is returned.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = withDefaults(cfg)
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoffDelay(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

// RetryLogger builds an OnRetry hook that logs every retry of the named
// operation at warn level.
func RetryLogger(service, operation string) func(attempt int, err error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}

// withDefaults fills zero-valued fields so an empty RetryConfig still behaves
// sensibly.
func withDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// backoffDelay is the sleep after the given zero-based attempt: the initial
// backoff grown by the multiplier per prior failure, capped, then jittered.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	d := float64(cfg.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= cfg.Multiplier
		if d >= float64(cfg.MaxBackoff) {
			d = float64(cfg.MaxBackoff)
			break
		}
	}
	if cfg.JitterFraction > 0 {
		spread := d * cfg.JitterFraction
		d = d - spread + rand.Float64()*2*spread
	}
	return time.Duration(d)
}
