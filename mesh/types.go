// Package mesh implements the inter-coordinator gossip layer (§4.5, C6):
// peer bootstrap/discovery, signed fire-and-forget broadcast, rate-limited
// and reputation-scored ingest, and dispatch of queue/blacklist/issuance
// message types to their owning subsystems.
package mesh

import "edgecoord/protocol"

const (
	// ReputationMin and ReputationMax bound a peer's score (§4.5).
	ReputationMin  = 0
	ReputationMax  = 200
	reputationSeed = 100

	rateLimitWindowMs = 10_000
	defaultRatePer10s = 50

	reputationRateLimitPenalty    = -10
	reputationBadSignaturePenalty = -5
	reputationSuccessReward       = 1
)

// PeerIdentity is what a coordinator learns about another coordinator during
// bootstrap (§4.5): `GET /identity` returns exactly these fields.
type PeerIdentity struct {
	PeerID      string `json:"peerId"`
	PublicKey   string `json:"publicKey"`
	URL         string `json:"url"`
	NetworkMode string `json:"networkMode"`
}

// Peer is a coordinator's view of one peer in its mesh: identity plus the
// mutable reputation and approval state ingest and registration maintain.
type Peer struct {
	Identity   PeerIdentity
	Reputation int
	Approved   bool
}

// Handler dispatches an admitted gossip envelope to the subsystem that owns
// its message type. Implementations should be cheap; ingest already holds no
// lock by the time Handler runs.
type Handler func(peerID string, env *protocol.Envelope) error
