package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Classification is the outcome of classifying an error returned by an operation.
type Classification int

const (
	// Permanent errors are never retried; the caller should fall back immediately.
	Permanent Classification = iota
	// Transient errors are retried with exponential backoff.
	Transient
	// RateLimited errors are retried, but the next attempt is delayed by at least MinDelay.
	RateLimited
)

// ErrPermanent wraps an error to mark it non-retryable. DefaultClassify treats any
// error satisfying errors.Is(err, ErrPermanent) as Permanent; WithBackoff consults
// only cfg.ClassifyFunc, so a custom ClassifyFunc decides for itself and a nil one
// retries every error as Transient.
var ErrPermanent = errors.New("permanent error")

// Config defines retry behavior
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterEnabled bool
	// JitterFraction bounds the jitter applied to each computed delay: the final
	// delay is drawn uniformly from [delay*(1-JitterFraction), delay*(1+JitterFraction)].
	JitterFraction float64
	// MinDelay floors the delay used after a RateLimited classification.
	MinDelay time.Duration
	// ClassifyFunc classifies a non-nil error. A nil ClassifyFunc treats every
	// error as Transient, matching the teacher's original unconditional retry.
	ClassifyFunc func(error) Classification
}

// DefaultConfig returns production-ready retry settings
func DefaultConfig() Config {
	return Config{
		MaxRetries:     10,
		InitialDelay:   2 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterEnabled:  true,
		JitterFraction: 0.15,
	}
}

// ChainClientConfig matches the Chain Client's retry contract: 500ms initial delay,
// doubling up to 8s, +/-20% jitter, 5 attempts, rate-limit floor of 30s.
func ChainClientConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		JitterEnabled:  true,
		JitterFraction: 0.2,
		MinDelay:       30 * time.Second,
		ClassifyFunc:   DefaultClassify,
	}
}

// DeliveryConfig matches the Delivery Gate's re-enqueue contract: up to 3 attempts,
// exponential from 1s to 16s.
func DeliveryConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       16 * time.Second,
		Multiplier:     2.0,
		JitterEnabled:  true,
		JitterFraction: 0.15,
	}
}

// DefaultClassify treats an ErrPermanent-wrapped error as Permanent, leaves everything
// else Transient. Callers with richer error taxonomies (HTTP status, etc.) supply their
// own ClassifyFunc.
func DefaultClassify(err error) Classification {
	if errors.Is(err, ErrPermanent) {
		return Permanent
	}
	return Transient
}

// WithBackoff executes fn with exponential backoff and optional jitter. If cfg.ClassifyFunc
// classifies an error as Permanent, retrying stops immediately and that error is returned.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	var lastErr error
	classify := cfg.ClassifyFunc
	if classify == nil {
		classify = func(error) Classification { return Transient }
	}

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		}

		class := classify(lastErr)
		if class == Permanent {
			logger.Warn("Operation failed permanently, not retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			return lastErr
		}

		if attempt == cfg.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxRetries, lastErr)
		}

		delay := calculateBackoff(cfg, attempt)
		if class == RateLimited && delay < cfg.MinDelay {
			delay = cfg.MinDelay
		}

		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", cfg.MaxRetries),
			zap.Duration("retry_in", delay),
			zap.Bool("rate_limited", class == RateLimited),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return lastErr
}

func calculateBackoff(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))

	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterEnabled && cfg.JitterFraction > 0 {
		frac := cfg.JitterFraction
		delay = delay * (1 + frac*(2*rand.Float64()-1))
	}

	return time.Duration(delay)
}
