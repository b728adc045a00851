// Package delivery implements the Delivery Gate (§4.7): at-most-once
// notification delivery per (chainID, proposalID, subscriberID) across
// restarts and provider retries.
package delivery

import (
	"context"
	"time"
)

// Key identifies one delivery slot.
type Key struct {
	ChainID      string
	ProposalID   uint64
	SubscriberID string
}

// Mark is the idempotency record proving a delivery was accepted (§3).
type Mark struct {
	Key
	SentAt    time.Time
	MessageID string
}

// Outcome classifies a Notifier.Send result.
type Outcome int

const (
	Accepted Outcome = iota
	TransientFailure
	PermanentFailure
)

// Notifier is the small interface the Delivery Gate dispatches through (§4.7.1).
type Notifier interface {
	Send(ctx context.Context, address, subject, body string) (Outcome, string, error)
}
