package registry

import (
	"context"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
	"edgecoord/ledger"
)

// PortalClient validates a registration token against the external
// enrollment portal (§4.4). A nil PortalClient disables validation: every
// registration is admitted with reason "portal_validation_disabled".
type PortalClient interface {
	Validate(ctx context.Context, agentID, registrationToken string) (allowed bool, reason string, err error)
}

// BlacklistChecker reports whether an agent is currently blacklisted (§4.6).
type BlacklistChecker interface {
	IsBlacklisted(agentID string) bool
}

// LedgerAppender appends an event to the ordering chain (C3).
type LedgerAppender interface {
	Append(in ledger.AppendInput) (ledger.Record, error)
}

const meshTokenTTL = 24 * time.Hour

// Registry is the coordinator's agent capability table and admission gate.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent

	portal      PortalClient
	blacklist   BlacklistChecker
	chain       LedgerAppender
	tokenSecret []byte
	powerParams PowerPolicyParams
}

// New constructs a registry. portal may be nil to disable external
// validation (dev/test mode).
func New(portal PortalClient, blacklist BlacklistChecker, chain LedgerAppender, tokenSecret []byte, powerParams PowerPolicyParams) *Registry {
	return &Registry{
		agents:      make(map[string]Agent),
		portal:      portal,
		blacklist:   blacklist,
		chain:       chain,
		tokenSecret: tokenSecret,
		powerParams: powerParams,
	}
}

// Register admits (or re-admits) an agent after consulting the blacklist and
// the enrollment portal, appends the resulting ledger event, and — on
// success — issues an opaque mesh-auth token the agent must present on
// subsequent calls.
func (r *Registry) Register(ctx context.Context, agentID, registrationToken string, cap Capability) (Agent, error) {
	if r.blacklist != nil && r.blacklist.IsBlacklisted(agentID) {
		return Agent{}, coordinatorerr.New(coordinatorerr.CodeAgentBlacklisted, agentID)
	}

	now := time.Now()
	allowed := true
	reason := "portal_validation_disabled"
	if r.portal != nil {
		var err error
		allowed, reason, err = r.portal.Validate(ctx, agentID, registrationToken)
		if err != nil {
			return Agent{}, coordinatorerr.Upstreamf(coordinatorerr.CodeNodeNotEnrolled, "portal validation failed: %v", err)
		}
	}

	if !allowed {
		if r.chain != nil {
			_, _ = r.chain.Append(ledger.AppendInput{
				EventType:  ledger.EventNodeValidation,
				ActorID:    agentID,
				IssuedAtMs: now.UnixMilli(),
				Payload:    map[string]any{"allowed": false, "reason": reason},
			})
		}
		return Agent{}, coordinatorerr.New(coordinatorerr.CodeRegistrationTokenBad, reason)
	}

	token, err := r.issueMeshToken(agentID, cap)
	if err != nil {
		return Agent{}, coordinatorerr.Newf(coordinatorerr.CodeValidationError, "issue mesh token: %v", err)
	}

	agent := Agent{
		AgentID:         agentID,
		Capability:      cap,
		LastHeartbeatMs: now.UnixMilli(),
		ConnectedPeers:  make(map[string]struct{}),
		MeshToken:       token,
	}

	r.mu.Lock()
	r.agents[agentID] = agent
	r.mu.Unlock()

	if r.chain != nil {
		_, _ = r.chain.Append(ledger.AppendInput{
			EventType:  ledger.EventNodeApproval,
			ActorID:    agentID,
			IssuedAtMs: now.UnixMilli(),
			Payload:    map[string]any{"reason": reason},
		})
	}

	return agent, nil
}

// ValidateMeshToken checks that token is a currently-valid mesh-auth token
// for agentID.
func (r *Registry) ValidateMeshToken(agentID, token string) error {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return r.tokenSecret, nil
	})
	if err != nil || !parsed.Valid {
		return coordinatorerr.New(coordinatorerr.CodeMeshUnauthorized, "invalid mesh token")
	}
	sub, _ := claims["sub"].(string)
	if sub != agentID {
		return coordinatorerr.New(coordinatorerr.CodeSessionOwnerMismatch, "mesh token does not match agent")
	}
	return nil
}

func (r *Registry) issueMeshToken(agentID string, cap Capability) (string, error) {
	claims := jwt.MapClaims{
		"sub": agentID,
		"cap": crypto.HashSHA256([]byte(cap.OS + "|" + cap.Version + "|" + cap.ClientType)),
		"exp": time.Now().Add(meshTokenTTL).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.tokenSecret)
}

// Heartbeat records liveness for a previously-registered agent, rejecting
// blacklisted agents even if they once held a valid mesh token.
func (r *Registry) Heartbeat(agentID string, telemetry *PowerTelemetry) (Agent, error) {
	if r.blacklist != nil && r.blacklist.IsBlacklisted(agentID) {
		return Agent{}, coordinatorerr.New(coordinatorerr.CodeAgentBlacklisted, agentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return Agent{}, coordinatorerr.New(coordinatorerr.CodeNodeNotActivated, agentID)
	}
	agent.LastHeartbeatMs = time.Now().UnixMilli()
	if telemetry != nil {
		agent.Capability.PowerTelemetry = telemetry
	}
	r.agents[agentID] = agent
	return agent, nil
}

// Get returns the current record for agentID.
func (r *Registry) Get(agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[agentID]
	return agent, ok
}

// EvaluatePull rejects blacklisted agents and otherwise consults the power
// policy before a claim. It does not record an assignment: callers call
// RecordAssignment once they have actually handed the agent a subtask.
func (r *Registry) EvaluatePull(agentID string) (PowerDecision, error) {
	if r.blacklist != nil && r.blacklist.IsBlacklisted(agentID) {
		return PowerDecision{}, coordinatorerr.New(coordinatorerr.CodeAgentBlacklisted, agentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return PowerDecision{}, coordinatorerr.New(coordinatorerr.CodeNodeNotActivated, agentID)
	}
	decision := EvaluatePower(r.powerParams, agent.Capability, agent.LastTaskAssignedMs, time.Now().UnixMilli())
	return decision, nil
}

// RecordAssignment marks that agentID was just handed a subtask, for the
// iOS pull-throttle rule.
func (r *Registry) RecordAssignment(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return
	}
	agent.LastTaskAssignedMs = time.Now().UnixMilli()
	r.agents[agentID] = agent
}

// Count returns the number of currently-registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
