// Package ledger implements the append-only, hash-linked, signed ordering
// chain (§4.2, C3): every queue/economy event a coordinator produces is
// appended as a LedgerRecord whose hash commits to its predecessor's hash,
// giving a tamper-evident audit trail any party can verify against the
// producing coordinator's public key.
package ledger

import (
	"encoding/json"
)

// EventType enumerates the kinds of events the ordering chain records (§3).
type EventType string

const (
	EventNodeApproval              EventType = "node_approval"
	EventNodeValidation             EventType = "node_validation"
	EventTaskEnqueue                EventType = "task_enqueue"
	EventTaskClaim                  EventType = "task_claim"
	EventTaskComplete                EventType = "task_complete"
	EventEarningsAccrual             EventType = "earnings_accrual"
	EventStatsCheckpointSignature     EventType = "stats_checkpoint_signature"
	EventStatsCheckpointCommit        EventType = "stats_checkpoint_commit"
	EventTreasuryPolicyUpdate         EventType = "treasury_policy_update"
	EventKeyCustodyRotation           EventType = "key_custody_rotation"
	EventKeyCustodySignerChange       EventType = "key_custody_signer_change"
)

// GenesisHash is the literal sentinel used as PrevHash for the first record
// appended by a freshly-initialised chain.
const GenesisHash = "GENESIS"

// Record is a single entry in a coordinator's ordering chain.
type Record struct {
	ID                string          `json:"id"`
	EventType         EventType       `json:"eventType"`
	TaskID            string          `json:"taskId,omitempty"`
	SubtaskID         string          `json:"subtaskId,omitempty"`
	ActorID           string          `json:"actorId,omitempty"`
	Sequence          uint64          `json:"sequence"`
	IssuedAtMs        int64           `json:"issuedAtMs"`
	PrevHash          string          `json:"prevHash"`
	CoordinatorID     string          `json:"coordinatorId"`
	CheckpointHeight  *uint64         `json:"checkpointHeight,omitempty"`
	CheckpointHash    string          `json:"checkpointHash,omitempty"`
	PayloadJSON       json.RawMessage `json:"payloadJson,omitempty"`
	Hash              string          `json:"hash"`
	Signature         string          `json:"signature"`
}

// canonicalFields is the struct whose JSON encoding both Hash and Signature
// commit to — every field of Record except Hash and Signature.
type canonicalFields struct {
	ID               string          `json:"id"`
	EventType        EventType       `json:"eventType"`
	TaskID           string          `json:"taskId,omitempty"`
	SubtaskID        string          `json:"subtaskId,omitempty"`
	ActorID          string          `json:"actorId,omitempty"`
	Sequence         uint64          `json:"sequence"`
	IssuedAtMs       int64           `json:"issuedAtMs"`
	PrevHash         string          `json:"prevHash"`
	CoordinatorID    string          `json:"coordinatorId"`
	CheckpointHeight *uint64         `json:"checkpointHeight,omitempty"`
	CheckpointHash   string          `json:"checkpointHash,omitempty"`
	PayloadJSON      json.RawMessage `json:"payloadJson,omitempty"`
}

func (r *Record) canonicalBytes() ([]byte, error) {
	return json.Marshal(canonicalFields{
		ID:               r.ID,
		EventType:        r.EventType,
		TaskID:           r.TaskID,
		SubtaskID:        r.SubtaskID,
		ActorID:          r.ActorID,
		Sequence:         r.Sequence,
		IssuedAtMs:       r.IssuedAtMs,
		PrevHash:         r.PrevHash,
		CoordinatorID:    r.CoordinatorID,
		CheckpointHeight: r.CheckpointHeight,
		CheckpointHash:   r.CheckpointHash,
		PayloadJSON:      r.PayloadJSON,
	})
}
