// Package offline implements the BLE offline-ledger reconciliation path
// (§9 Open Questions, SUPPLEMENTED FEATURES): a batch of agent-signed
// receipts collected while an agent was disconnected, relayed later by any
// peer device, and replayed through the same completion path as an online
// result.
package offline

import (
	"edgecoord/coordinatorerr"
)

// Receipt is one agent-signed completion collected while offline.
type Receipt struct {
	SubtaskID     string
	ResultHash    string
	CompletedAtMs int64
	AgentID       string
	Output        string
	Signature     string
}

// Completer is the subset of queue.Queue this reconciler drives.
type Completer interface {
	Complete(result CompletionInput) error
}

// CompletionInput mirrors queue.Result's fields without importing queue
// directly, so this package can be driven by any completer with the same
// shape (keeps the dependency direction one-way: queue never imports this
// package).
type CompletionInput struct {
	SubtaskID     string
	TaskID        string
	AgentID       string
	OK            bool
	Output        string
	CompletedAtMs int64
}

// SignatureVerifier checks a receipt's signature over its canonical bytes.
type SignatureVerifier interface {
	VerifyReceipt(r Receipt) bool
}

// Reconciler replays a batch of offline receipts, rejecting any whose
// subtask is unknown or already completed and deduplicating by subtaskID
// across calls within the same process lifetime — the same
// processed-map idempotency shape as the payments reconciliation tick,
// applied to a batch of receipts instead of a single tx-ref.
type Reconciler struct {
	completer Completer
	verifier  SignatureVerifier
	seen      map[string]struct{}
}

// New constructs a Reconciler bound to the given completer and verifier.
func New(completer Completer, verifier SignatureVerifier) *Reconciler {
	return &Reconciler{completer: completer, verifier: verifier, seen: make(map[string]struct{})}
}

// ReplayResult reports the outcome for one receipt in a batch.
type ReplayResult struct {
	SubtaskID string
	Accepted  bool
	Reason    string
}

// Replay processes a batch of receipts in order, returning a per-receipt
// outcome. A receipt whose subtaskID has already been replayed in this
// process (or fails signature verification) is rejected without touching
// the completer.
func (r *Reconciler) Replay(receipts []Receipt) []ReplayResult {
	results := make([]ReplayResult, 0, len(receipts))
	for _, rec := range receipts {
		if rec.SubtaskID == "" {
			results = append(results, ReplayResult{SubtaskID: rec.SubtaskID, Reason: "missing_subtask_id"})
			continue
		}
		if _, dup := r.seen[rec.SubtaskID]; dup {
			results = append(results, ReplayResult{SubtaskID: rec.SubtaskID, Reason: "already_completed"})
			continue
		}
		if r.verifier != nil && !r.verifier.VerifyReceipt(rec) {
			results = append(results, ReplayResult{SubtaskID: rec.SubtaskID, Reason: "bad_signature"})
			continue
		}

		err := r.completer.Complete(CompletionInput{
			SubtaskID:     rec.SubtaskID,
			AgentID:       rec.AgentID,
			OK:            true,
			Output:        rec.Output,
			CompletedAtMs: rec.CompletedAtMs,
		})
		if err != nil {
			if ce, ok := coordinatorerr.As(err); ok && ce.Code == coordinatorerr.CodeTaskNotFound {
				results = append(results, ReplayResult{SubtaskID: rec.SubtaskID, Reason: "unknown_subtask"})
				continue
			}
			results = append(results, ReplayResult{SubtaskID: rec.SubtaskID, Reason: "completion_failed"})
			continue
		}

		r.seen[rec.SubtaskID] = struct{}{}
		results = append(results, ReplayResult{SubtaskID: rec.SubtaskID, Accepted: true})
	}
	return results
}
