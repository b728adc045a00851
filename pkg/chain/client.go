package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/govsentinel/sentinel/pkg/retry"
	"github.com/govsentinel/sentinel/pkg/utils"
)

// HTTPClient is a chain RPC/REST client with a token-bucket rate limiter and a
// per-endpoint circuit breaker, grounded on the teacher's pkg/rpc/httpclient.go.
// Safe for concurrent use; its only state is the endpoint rotation index, the
// rate-limiter tokens and the breaker's per-endpoint failure counts (§4.1).
type HTTPClient struct {
	endpoints []string
	client    *http.Client
	nextIdx   atomic.Uint64

	tokens      int64
	maxTokens   int64
	refillEvery time.Duration
	lastRefill  atomic.Value // time.Time

	mu       sync.Mutex
	failures map[string]int
	opened   map[string]time.Time

	breakerThreshold int
	breakerCooldown  time.Duration
}

// Opts configures a new HTTPClient.
type Opts struct {
	Endpoints       []string
	Timeout         time.Duration // per-attempt request deadline, default 10s (§4.1)
	RPS             int
	Burst           int
	BreakerFailures int
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
}

// NewHTTPClient creates a new HTTPClient with the given options.
func NewHTTPClient(o Opts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 40
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BreakerFailures <= 0 {
		o.BreakerFailures = 3
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 5 * time.Second
	}

	client := o.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	} else if client.Timeout == 0 {
		client.Timeout = o.Timeout
	}

	c := &HTTPClient{
		endpoints:        utils.Dedup(o.Endpoints),
		client:           client,
		maxTokens:        int64(o.Burst),
		refillEvery:      time.Second / time.Duration(o.RPS),
		failures:         map[string]int{},
		opened:           map[string]time.Time{},
		breakerThreshold: o.BreakerFailures,
		breakerCooldown:  o.BreakerCooldown,
	}
	c.tokens = c.maxTokens
	c.lastRefill.Store(time.Now())
	return c
}

func (c *HTTPClient) refill() {
	last := c.lastRefill.Load().(time.Time)
	now := time.Now()
	if now.Sub(last) >= c.refillEvery {
		if atomic.LoadInt64(&c.tokens) < c.maxTokens {
			atomic.AddInt64(&c.tokens, 1)
		}
		c.lastRefill.Store(now)
	}
}

func (c *HTTPClient) acquire() {
	for {
		c.refill()
		if atomic.LoadInt64(&c.tokens) > 0 {
			atomic.AddInt64(&c.tokens, -1)
			return
		}
		time.Sleep(c.refillEvery / 2)
	}
}

func (c *HTTPClient) isOpen(ep string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.opened[ep]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(c.opened, ep)
		c.failures[ep] = 0
		return false
	}
	return true
}

func (c *HTTPClient) noteFailure(ep string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[ep]++
	if c.failures[ep] >= c.breakerThreshold {
		c.opened[ep] = time.Now().Add(c.breakerCooldown)
	}
}

// pickEndpoint cycles endpoints round-robin across calls, skipping any whose
// breaker is open, so a single failing node never monopolizes retries (§4.1).
func (c *HTTPClient) pickEndpoint() (string, bool) {
	n := len(c.endpoints)
	if n == 0 {
		return "", false
	}
	start := c.nextIdx.Add(1) - 1
	for i := 0; i < n; i++ {
		ep := c.endpoints[(int(start)+i)%n]
		if !c.isOpen(ep) {
			return ep, true
		}
	}
	return "", false
}

// doJSON performs one attempt against one endpoint and decodes a JSON response
// into out. It does not retry across endpoints itself — that policy lives in
// retry.WithBackoff driven by the governance operations, cycling endpoints on
// each attempt via pickEndpoint.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, out any) error {
	ep, ok := c.pickEndpoint()
	if !ok {
		return fmt.Errorf("chain client: no available endpoints")
	}

	c.acquire()

	req, err := http.NewRequestWithContext(ctx, method, ep+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.noteFailure(ep)
		return &TransientError{Retryable: true, Err: err}
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	if resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			c.noteFailure(ep)
		}
		return classifyStatus(resp.StatusCode, fmt.Errorf("%s %s", method, ep+path))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransientError{Retryable: true, Err: err}
		}
	}

	return nil
}

// classify adapts this package's error taxonomy to retry.Classification.
func classify(err error) retry.Classification {
	if err == nil {
		return retry.Transient
	}
	switch {
	case isRateLimited(err):
		return retry.RateLimited
	case isPermanent(err):
		return retry.Permanent
	default:
		return retry.Transient
	}
}
