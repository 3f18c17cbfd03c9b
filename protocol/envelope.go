// Package protocol implements the inter-coordinator signed-message envelope
// (§4.1): canonical serialisation, signing, and the validation sequence
// peer_unknown → bad_signature → message_expired → duplicate_message.
package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
)

// MessageType enumerates the gossip envelope payload kinds (§6).
type MessageType string

const (
	MessagePeerAnnounce      MessageType = "peer_announce"
	MessageQueueSummary      MessageType = "queue_summary"
	MessageTaskOffer         MessageType = "task_offer"
	MessageTaskClaim         MessageType = "task_claim"
	MessageResultAnnounce    MessageType = "result_announce"
	MessageOrderingSnapshot  MessageType = "ordering_snapshot"
	MessageBlacklistUpdate   MessageType = "blacklist_update"
	MessageIssuanceProposal  MessageType = "issuance_proposal"
	MessageIssuanceVote      MessageType = "issuance_vote"
	MessageIssuanceCommit    MessageType = "issuance_commit"
	MessageIssuanceCheckpoint MessageType = "issuance_checkpoint"
)

// Envelope is the wire shape of every inter-coordinator gossip message.
type Envelope struct {
	ID         string          `json:"id"`
	Type       MessageType     `json:"type"`
	FromPeerID string          `json:"fromPeerId"`
	IssuedAtMs int64           `json:"issuedAtMs"`
	TTLMs      int64           `json:"ttlMs"`
	Payload    json.RawMessage `json:"payload"`
	Signature  string          `json:"signature"`
}

// canonicalFields is the struct whose JSON encoding the signature covers —
// every field of Envelope except Signature itself, serialised in the field
// order declared here (not sorted by key) so the bytes are reproducible
// across coordinator builds.
type canonicalFields struct {
	ID         string          `json:"id"`
	Type       MessageType     `json:"type"`
	FromPeerID string          `json:"fromPeerId"`
	IssuedAtMs int64           `json:"issuedAtMs"`
	TTLMs      int64           `json:"ttlMs"`
	Payload    json.RawMessage `json:"payload"`
}

// CanonicalBytes returns the deterministic byte sequence the signature is
// computed over.
func (e *Envelope) CanonicalBytes() ([]byte, error) {
	return json.Marshal(canonicalFields{
		ID:         e.ID,
		Type:       e.Type,
		FromPeerID: e.FromPeerID,
		IssuedAtMs: e.IssuedAtMs,
		TTLMs:      e.TTLMs,
		Payload:    e.Payload,
	})
}

// Sign computes and stores the envelope's signature under key, whose public
// key must match FromPeerID's registered identity.
func (e *Envelope) Sign(key *crypto.SigningKey) error {
	canon, err := e.CanonicalBytes()
	if err != nil {
		return fmt.Errorf("protocol: canonicalise envelope: %w", err)
	}
	e.Signature = hex.EncodeToString(key.Sign(canon))
	return nil
}

// PeerKeyLookup resolves a peer id's registered Ed25519 public key. Returns
// ok=false if the peer is unknown.
type PeerKeyLookup func(peerID string) (publicKeyHex string, ok bool)

// Validate runs the §4.1 validation sequence against the envelope and
// returns the first taxonomy error encountered, or nil if the message is
// admitted. nowMs is the validator's current time; window is consulted for
// at-most-once delivery and is updated with e.ID only on success.
func Validate(e *Envelope, lookupPeer PeerKeyLookup, window *DedupWindow, nowMs int64) error {
	pubKeyHex, ok := lookupPeer(e.FromPeerID)
	if !ok {
		return coordinatorerr.New(coordinatorerr.CodePeerUnknown, "unknown peer: "+e.FromPeerID)
	}

	canon, err := e.CanonicalBytes()
	if err != nil {
		return coordinatorerr.Newf(coordinatorerr.CodeBadSignature, "canonicalise envelope: %v", err)
	}
	sigBytes, err := hex.DecodeString(e.Signature)
	if err != nil {
		return coordinatorerr.New(coordinatorerr.CodeBadSignature, "malformed signature encoding")
	}
	if err := crypto.VerifySignature(pubKeyHex, canon, sigBytes); err != nil {
		return coordinatorerr.New(coordinatorerr.CodeBadSignature, err.Error())
	}

	if nowMs > e.IssuedAtMs+e.TTLMs {
		return coordinatorerr.New(coordinatorerr.CodeMessageExpired, "envelope ttl elapsed")
	}

	if window.Seen(e.ID) {
		return coordinatorerr.New(coordinatorerr.CodeDuplicateMessage, "message id already processed: "+e.ID)
	}
	window.Record(e.ID)
	return nil
}
