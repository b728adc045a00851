package chain

import (
	"errors"
	"fmt"
)

// ErrPermanent marks a Chain Client error as non-retryable (4xx other than 429, §4.1).
var ErrPermanent = errors.New("chain client: permanent error")

// ErrRateLimited marks a Chain Client error as rate-limited (429, §4.1); retried
// with the retry package's minimum-delay floor.
var ErrRateLimited = errors.New("chain client: rate limited")

// TransientError wraps an error that is safe to retry with ordinary backoff
// (timeout, 5xx, connection reset).
type TransientError struct {
	Retryable bool
	Err       error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("chain client: transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status code observed from a chain endpoint to a
// retry.Classification-compatible error, per §4.1's taxonomy.
func classifyStatus(statusCode int, underlying error) error {
	switch {
	case statusCode == 429:
		return fmt.Errorf("%w: http %d: %w", ErrRateLimited, statusCode, underlying)
	case statusCode >= 500:
		return &TransientError{Retryable: true, Err: fmt.Errorf("http %d: %w", statusCode, underlying)}
	case statusCode >= 400:
		return fmt.Errorf("%w: http %d: %w", ErrPermanent, statusCode, underlying)
	default:
		return underlying
	}
}

func isRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }
func isPermanent(err error) bool   { return errors.Is(err, ErrPermanent) }
