package orchestration

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"

	"edgecoord/coordinatorerr"
)

// Registry holds the staged rollouts for one coordinator process. Cohort
// matching is evaluated top-down, first match wins, mirroring the power
// policy evaluator's rule shape (registry.EvaluatePower).
type Registry struct {
	mu       sync.Mutex
	rollouts []*Rollout // ordered by StageRollout call order
}

// New constructs an empty rollout registry.
func New() *Registry {
	return &Registry{}
}

// StageRollout adds a new rollout to the end of the evaluation order.
func (r *Registry) StageRollout(clientType, resourceClass, requestedModel string, rampPct int, nowMs int64) (Rollout, error) {
	if rampPct < 0 || rampPct > 100 {
		return Rollout{}, coordinatorerr.New(coordinatorerr.CodeValidationError, "rampPct must be within [0, 100]")
	}
	rollout := &Rollout{
		RolloutID:      uuid.NewString(),
		ClientType:     clientType,
		ResourceClass:  resourceClass,
		RequestedModel: requestedModel,
		RampPct:        rampPct,
		CreatedAtMs:    nowMs,
		UpdatedAtMs:    nowMs,
	}
	r.mu.Lock()
	r.rollouts = append(r.rollouts, rollout)
	r.mu.Unlock()
	return *rollout, nil
}

// UpdateRamp adjusts an existing rollout's ramp percentage.
func (r *Registry) UpdateRamp(rolloutID string, rampPct int, nowMs int64) (Rollout, error) {
	if rampPct < 0 || rampPct > 100 {
		return Rollout{}, coordinatorerr.New(coordinatorerr.CodeValidationError, "rampPct must be within [0, 100]")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ro := range r.rollouts {
		if ro.RolloutID == rolloutID {
			ro.RampPct = rampPct
			ro.UpdatedAtMs = nowMs
			return *ro, nil
		}
	}
	return Rollout{}, coordinatorerr.New(coordinatorerr.CodePolicyNotFound, rolloutID)
}

// Decide returns which model, if any, agentID should be told to request
// given its clientType/resourceClass cohort. The ramp decision is a stable
// hash of agentId+rolloutId so the same agent gets a consistent verdict
// across heartbeats instead of flapping on each call.
func (r *Registry) Decide(agentID, clientType, resourceClass string) (Decision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ro := range r.rollouts {
		if ro.ClientType != "" && ro.ClientType != clientType {
			continue
		}
		if ro.ResourceClass != "" && ro.ResourceClass != resourceClass {
			continue
		}
		if !inRamp(agentID, ro.RolloutID, ro.RampPct) {
			continue
		}
		return Decision{RolloutID: ro.RolloutID, RequestedModel: ro.RequestedModel, InRollout: true}, true
	}
	return Decision{}, false
}

// List returns a snapshot of every staged rollout.
func (r *Registry) List() []Rollout {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Rollout, len(r.rollouts))
	for i, ro := range r.rollouts {
		out[i] = *ro
	}
	return out
}

func inRamp(agentID, rolloutID string, rampPct int) bool {
	if rampPct <= 0 {
		return false
	}
	if rampPct >= 100 {
		return true
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(agentID + ":" + rolloutID))
	return int(h.Sum32()%100) < rampPct
}
