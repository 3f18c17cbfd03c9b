package agentmesh

import "sync"

// fixedWindowLimiter is the same epoch-reset counter idiom as
// mesh.fixedWindowLimiter, reused here per agent instead of per peer and
// parameterised on an arbitrary window size (10 s for offers/relays, 60 s
// for per-minute tunnel relay caps).
type fixedWindowLimiter struct {
	mu       sync.Mutex
	limit    int
	windowMs int64
	counts   map[string]*windowCounter
}

type windowCounter struct {
	windowStartMs int64
	count         int
}

func newFixedWindowLimiter(limit int, windowMs int64) *fixedWindowLimiter {
	return &fixedWindowLimiter{limit: limit, windowMs: windowMs, counts: make(map[string]*windowCounter)}
}

// Allow reports whether key may proceed at nowMs, recording the attempt
// regardless of outcome.
func (l *fixedWindowLimiter) Allow(key string, nowMs int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStartMs := nowMs - nowMs%l.windowMs
	c := l.counts[key]
	if c == nil || c.windowStartMs != windowStartMs {
		c = &windowCounter{windowStartMs: windowStartMs}
		l.counts[key] = c
	}
	c.count++
	return c.count <= l.limit
}
