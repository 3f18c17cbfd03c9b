// Package queue implements the subtask queue and dispatch subsystem (§4.3,
// C4): a FIFO of unclaimed subtasks with per-agent claim state, fair-share
// selection across projects, a dependency tracker releasing dependents once
// their inputs are satisfied, and remote-claim deduplication for gossiped
// peer claims.
package queue

import "time"

// ResourceClass is the compute class a subtask requires.
type ResourceClass string

const (
	ResourceCPU ResourceClass = "cpu"
	ResourceGPU ResourceClass = "gpu"
)

// Subtask is the atomic unit of inference work claimed by one agent (§3).
type Subtask struct {
	SubtaskID        string
	TaskID           string
	Input            string
	Language         string
	TimeoutMs        int64
	ProjectID        string
	TenantID         string
	ResourceClass    ResourceClass
	Priority         int
	RequestedModel   string
	DependsOn        []string
	ClaimableAfterMs int64

	ClaimedBy   string
	ClaimedAtMs int64

	EnqueuedAtMs int64
}

// EnqueueOptions customises enqueue behaviour.
type EnqueueOptions struct {
	ClaimDelayMs int64
}

// Result is the outcome an agent reports for a completed subtask.
type Result struct {
	SubtaskID   string
	TaskID      string
	AgentID     string
	OK          bool
	Output      string
	Error       string
	CompletedAtMs int64
}

// Status is the snapshot returned by Queue.Status for capacity endpoints.
type Status struct {
	Queued  int
	Agents  int
	Results int
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
