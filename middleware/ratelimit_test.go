package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"agent": {RatePerSecond: 1, Burst: 1},
	}, nil)

	handler := limiter.Middleware("agent")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/heartbeat", nil)
	req.Header.Set("x-agent-id", "agent-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRouteKeys(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"agent": {RatePerSecond: 1, Burst: 1},
		"mesh":  {RatePerSecond: 1, Burst: 1},
	}, nil)

	agentHandler := limiter.Middleware("agent")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	meshHandler := limiter.Middleware("mesh")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/pull", nil)
	req.Header.Set("x-agent-id", "agent-1")
	res := httptest.NewRecorder()
	agentHandler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected agent request to succeed, got %d", res.Code)
	}

	meshReq := httptest.NewRequest(http.MethodPost, "/mesh/ingest", nil)
	meshReq.Header.Set("x-peer-id", "peer-1")
	meshRes := httptest.NewRecorder()
	meshHandler.ServeHTTP(meshRes, meshReq)
	if meshRes.Code != http.StatusOK {
		t.Fatalf("expected first mesh request to succeed, got %d", meshRes.Code)
	}

	meshRes = httptest.NewRecorder()
	meshHandler.ServeHTTP(meshRes, meshReq)
	if meshRes.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second mesh request to hit limit, got %d", meshRes.Code)
	}
}

func TestRateLimiterAppliesRouteTokens(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"agent": {
			RatePerSecond: 5,
			Burst:         5,
			DefaultTokens: 1,
			Tokens: map[string]int{
				"POST /submit": 3,
			},
		},
	}, nil)

	handler := limiter.Middleware("agent")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set("x-agent-id", "agent-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first submit to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second submit to consume burst and be rate limited, got %d", res.Code)
	}

	// A different route should still be able to proceed because it only
	// consumes the default token cost of 1.
	statusReq := httptest.NewRequest(http.MethodGet, "/status", nil)
	statusReq.Header.Set("x-agent-id", "agent-1")
	statusRes := httptest.NewRecorder()
	handler.ServeHTTP(statusRes, statusReq)
	if statusRes.Code != http.StatusOK {
		t.Fatalf("expected status route to succeed with default token cost, got %d", statusRes.Code)
	}
}

func TestRateLimiterPrefersAgentIDOverIP(t *testing.T) {
	limiter := NewRateLimiter(map[string]RateLimit{
		"agent": {RatePerSecond: 1, Burst: 1},
	}, nil)

	handler := limiter.Middleware("agent")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqA := httptest.NewRequest(http.MethodPost, "/pull", nil)
	reqA.Header.Set("x-agent-id", "agent-A")
	resA := httptest.NewRecorder()
	handler.ServeHTTP(resA, reqA)
	if resA.Code != http.StatusOK {
		t.Fatalf("expected agent A request to succeed, got %d", resA.Code)
	}

	reqB := httptest.NewRequest(http.MethodPost, "/pull", nil)
	reqB.Header.Set("x-agent-id", "agent-B")
	resB := httptest.NewRecorder()
	handler.ServeHTTP(resB, reqB)
	if resB.Code != http.StatusOK {
		t.Fatalf("expected agent B request to succeed, got %d", resB.Code)
	}
}
