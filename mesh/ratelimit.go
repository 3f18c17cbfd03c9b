package mesh

import "sync"

// fixedWindowLimiter counts ingest calls per peer within a fixed 10 s
// window keyed by the rounded-down epoch nowMs - nowMs%10000, resetting the
// counter when a call falls into a new epoch.
type fixedWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]*windowCounter
}

type windowCounter struct {
	windowStartMs int64
	count         int
}

func newFixedWindowLimiter(limit int) *fixedWindowLimiter {
	if limit <= 0 {
		limit = defaultRatePer10s
	}
	return &fixedWindowLimiter{limit: limit, counts: make(map[string]*windowCounter)}
}

// Allow reports whether peerID may send another message at nowMs, recording
// the attempt regardless of outcome.
func (l *fixedWindowLimiter) Allow(peerID string, nowMs int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStartMs := nowMs - nowMs%rateLimitWindowMs
	c := l.counts[peerID]
	if c == nil || c.windowStartMs != windowStartMs {
		c = &windowCounter{windowStartMs: windowStartMs}
		l.counts[peerID] = c
	}
	c.count++
	return c.count <= l.limit
}
