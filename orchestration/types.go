// Package orchestration implements the model-rollout coordination surface
// referenced in §3 as an agent's "active orchestration record" and exposed
// at /orchestration/*: an operator stages a requestedModel default for a
// clientType/resourceClass cohort with a percentage ramp, and /heartbeat
// consults it when deciding which model hint to hand an agent.
package orchestration

// Rollout stages a requestedModel default for one cohort.
type Rollout struct {
	RolloutID      string
	ClientType     string // matches Agent.CapabilityRecord.ClientType, "" matches any
	ResourceClass  string // "cpu" or "gpu", "" matches any
	RequestedModel string
	RampPct        int // 0-100, percentage of matching agents that receive RequestedModel
	CreatedAtMs    int64
	UpdatedAtMs    int64
}

// Decision is the outcome of consulting the registry for a given agent.
type Decision struct {
	RolloutID      string
	RequestedModel string
	InRollout      bool
}
