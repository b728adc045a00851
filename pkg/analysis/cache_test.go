package analysis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	entries map[Fingerprint]Analysis
}

func newMemStore() *memStore { return &memStore{entries: map[Fingerprint]Analysis{}} }

func (m *memStore) Get(_ context.Context, fp Fingerprint) (Analysis, bool, error) {
	a, ok := m.entries[fp]
	if !ok || time.Now().After(a.ExpiresAt) {
		return Analysis{}, false, nil
	}
	return a, true, nil
}

func (m *memStore) Put(_ context.Context, a Analysis) error {
	m.entries[a.Fingerprint] = a
	return nil
}

func (m *memStore) PurgeOlderThan(_ context.Context, age time.Duration) (int64, error) {
	var n int64
	for k, v := range m.entries {
		if time.Since(v.CreatedAt) > age {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, zap.NewNop())

	var calls atomic.Int64
	release := make(chan struct{})
	compute := func(ctx context.Context) (Analysis, error) {
		calls.Add(1)
		<-release
		return Analysis{
			Recommendation: RecommendApprove,
			Confidence:     0.9,
			CreatedAt:      time.Now(),
			ExpiresAt:      time.Now().Add(time.Hour),
		}, nil
	}

	const n = 20
	results := make(chan Analysis, n)
	for i := 0; i < n; i++ {
		go func() {
			a, err := cache.GetOrCompute(context.Background(), "fp-1", compute)
			require.NoError(t, err)
			results <- a
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < n; i++ {
		<-results
	}

	assert.Equal(t, int64(1), calls.Load())
}

func TestGetOrComputeReturnsCached(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, zap.NewNop())

	require.NoError(t, store.Put(context.Background(), Analysis{
		Fingerprint: "fp-2",
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	called := false
	a, err := cache.GetOrCompute(context.Background(), "fp-2", func(ctx context.Context) (Analysis, error) {
		called = true
		return Analysis{}, nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, Fingerprint("fp-2"), a.Fingerprint)
}

func TestGetOrComputePropagatesError(t *testing.T) {
	store := newMemStore()
	cache := NewCache(store, zap.NewNop())

	wantErr := assert.AnError
	_, err := cache.GetOrCompute(context.Background(), "fp-3", func(ctx context.Context) (Analysis, error) {
		return Analysis{}, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// No negative entry stored.
	_, ok, _ := store.Get(context.Background(), "fp-3")
	assert.False(t, ok)
}
