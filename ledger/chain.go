package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"edgecoord/crypto"
)

// AppendInput bundles the caller-supplied fields for a new record; Sequence,
// PrevHash, Hash, and Signature are computed by the chain.
type AppendInput struct {
	EventType        EventType
	TaskID           string
	SubtaskID        string
	ActorID          string
	IssuedAtMs       int64
	CheckpointHeight *uint64
	CheckpointHash   string
	Payload          any
}

// Chain is a single coordinator's append-only ordering chain. All mutation
// goes through Append, which holds the chain's lock only for the in-memory
// commit — any I/O (persistence) must happen outside the lock per the
// read-release-I/O-reacquire-commit discipline (§5).
type Chain struct {
	mu            sync.Mutex
	coordinatorID string
	signer        *crypto.SigningKey
	records       []Record
}

// New constructs a chain for the given coordinator identity. If seed is
// non-empty it is treated as previously-persisted history to replay on
// startup (§9 init).
func New(coordinatorID string, signer *crypto.SigningKey, seed []Record) *Chain {
	c := &Chain{coordinatorID: coordinatorID, signer: signer}
	c.records = append(c.records, seed...)
	return c
}

// Append commits a new signed record to the chain and returns it. The
// returned copy is safe to persist or broadcast without holding the lock.
func (c *Chain) Append(in AppendInput) (Record, error) {
	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("ledger: marshal payload: %w", err)
	}
	if in.Payload == nil {
		payload = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prevHash := GenesisHash
	var sequence uint64 = 1
	if n := len(c.records); n > 0 {
		prevHash = c.records[n-1].Hash
		sequence = c.records[n-1].Sequence + 1
	}

	rec := Record{
		ID:               uuid.NewString(),
		EventType:        in.EventType,
		TaskID:           in.TaskID,
		SubtaskID:        in.SubtaskID,
		ActorID:          in.ActorID,
		Sequence:         sequence,
		IssuedAtMs:       in.IssuedAtMs,
		PrevHash:         prevHash,
		CoordinatorID:    c.coordinatorID,
		CheckpointHeight: in.CheckpointHeight,
		CheckpointHash:   in.CheckpointHash,
		PayloadJSON:      payload,
	}

	canon, err := rec.canonicalBytes()
	if err != nil {
		return Record{}, fmt.Errorf("ledger: canonicalise record: %w", err)
	}
	rec.Hash = crypto.HashSHA256(canon)
	rec.Signature = hex.EncodeToString(c.signer.Sign([]byte(rec.Hash)))

	c.records = append(c.records, rec)
	return rec, nil
}

// Snapshot returns a defensive copy of the full chain.
func (c *Chain) Snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the current chain length.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
