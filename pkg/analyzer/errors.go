package analyzer

import (
	"errors"

	"github.com/govsentinel/sentinel/pkg/retry"
)

// ErrPermanent marks a provider call as permanently failed for this attempt:
// providers wrap it on non-retryable HTTP errors, empty responses and missing
// configuration (§4.4).
var ErrPermanent = errors.New("analyzer: permanent error")

// ErrRateLimited marks a provider call as rate-limited.
var ErrRateLimited = errors.New("analyzer: rate limited")

func classify(err error) retry.Classification {
	switch {
	case err == nil:
		return retry.Transient
	case errors.Is(err, ErrRateLimited):
		return retry.RateLimited
	case errors.Is(err, ErrPermanent):
		return retry.Permanent
	default:
		return retry.Transient
	}
}
