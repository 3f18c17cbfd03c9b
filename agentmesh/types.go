// Package agentmesh implements the peer-direct work subsystem (§3
// Tunnel & DirectWorkOffer, SUPPLEMENTED FEATURES): short-lived relay
// tunnels between two agents and the direct work offers they carry,
// rate-limited and garbage-collected on TUNNEL_IDLE_TTL_MS.
package agentmesh

// Tunnel mediates a relay between two agents that have agreed, via a
// DirectWorkOffer, to execute a subtask peer-to-peer instead of through the
// coordinator.
type Tunnel struct {
	TunnelID     string
	FromAgentID  string
	ToAgentID    string
	CreatedAtMs  int64
	LastRelayMs  int64
	RelayCount   int
}

// OfferStatus is a DirectWorkOffer's lifecycle state.
type OfferStatus string

const (
	OfferStatusOpen     OfferStatus = "open"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusExpired  OfferStatus = "expired"
)

// DirectWorkOffer invites a nearby agent, discovered via the coordinator's
// /heartbeat response, to execute a subtask the offering agent already
// claimed (§4.4 allowPeerDirectWork).
type DirectWorkOffer struct {
	OfferID     string
	FromAgentID string
	SubtaskID   string
	Status      OfferStatus
	CreatedAtMs int64
	AcceptedBy  string
	TunnelID    string
}
