package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Directory is the external subscription manager's read surface (§6): org/
// subscriber CRUD lives outside this system's scope, so this is a thin seam
// the Matcher calls on a cache miss.
type Directory interface {
	ListForChain(ctx context.Context, chainID string) ([]Subscriber, error)
}

// Cache is the subset of pkg/redisx.Client the Matcher depends on, narrowed to
// an interface so tests can substitute an in-memory double.
type Cache interface {
	SetCache(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetCache(ctx context.Context, key string) ([]byte, error)
}

// Matcher resolves the active subscriber set for a (chainID, proposalID) pair
// (§4.5), caching directory reads for up to 5 minutes keyed by chainID.
type Matcher struct {
	directory Directory
	cache     Cache
	logger    *zap.Logger
	ttl       time.Duration
}

const cacheKeyPrefix = "subscribers:"

// NewMatcher builds a Matcher backed by a Redis read-through cache, following
// the teacher's lazy-init-and-cache shape (e.g. ClientManager.GetChainClient)
// even though the underlying store here is Redis rather than an in-process map.
func NewMatcher(directory Directory, cache Cache, logger *zap.Logger) *Matcher {
	return &Matcher{directory: directory, cache: cache, logger: logger, ttl: 5 * time.Minute}
}

// ListSubscribersFor returns every subscriber watching chainID, active as of
// now, per §4.5's set comprehension. proposalID is accepted for symmetry with
// the spec's (chainID, proposalID) framing but the directory has no per-
// proposal targeting, so only chainID drives the lookup.
func (m *Matcher) ListSubscribersFor(ctx context.Context, chainID string, proposalID uint64, now time.Time) ([]Subscriber, error) {
	all, err := m.listForChain(ctx, chainID)
	if err != nil {
		return nil, err
	}

	eligible := make([]Subscriber, 0, len(all))
	for _, s := range all {
		if s.Watches(chainID) && s.IsEligible(now) {
			eligible = append(eligible, s)
		}
	}
	return eligible, nil
}

func (m *Matcher) listForChain(ctx context.Context, chainID string) ([]Subscriber, error) {
	key := cacheKeyPrefix + chainID

	if raw, err := m.cache.GetCache(ctx, key); err != nil {
		m.logger.Warn("subscriber matcher: cache read failed, falling back to directory", zap.Error(err))
	} else if raw != nil {
		var cached []Subscriber
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		m.logger.Warn("subscriber matcher: cache entry unmarshal failed, refetching", zap.String("key", key))
	}

	fresh, err := m.directory.ListForChain(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("list subscribers for %s: %w", chainID, err)
	}

	if raw, err := json.Marshal(fresh); err == nil {
		if err := m.cache.SetCache(ctx, key, raw, m.ttl); err != nil {
			m.logger.Warn("subscriber matcher: cache write failed", zap.Error(err))
		}
	}

	return fresh, nil
}
