package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
	"edgecoord/protocol"
)

const broadcastTimeout = 5 * time.Second

// Mesh is a coordinator's gossip endpoint: it owns the peer table, the
// per-peer rate limiter, and the at-most-once dedup window, and dispatches
// admitted messages to whatever subsystem registered for their type.
type Mesh struct {
	selfID     string
	signer     *crypto.SigningKey
	table      *peerTable
	limiter    *fixedWindowLimiter
	dedup      *protocol.DedupWindow
	dedupStore *protocol.DedupStore
	client     *http.Client
	log        *slog.Logger

	handlers map[protocol.MessageType]Handler
}

// Config carries the tunables for a Mesh instance.
type Config struct {
	RatePer10s      int
	DedupWindowSize int

	// DedupStorePath, if set, mirrors accepted message ids to LevelDB so the
	// dedup window survives a coordinator restart instead of readmitting a
	// message gossiped again just before the process went down.
	DedupStorePath string
}

// New constructs a Mesh for the coordinator identified by selfID, signing
// outbound envelopes with signer. When cfg.DedupStorePath is set, the dedup
// window is rehydrated from the on-disk mirror before New returns.
func New(selfID string, signer *crypto.SigningKey, cfg Config, log *slog.Logger) (*Mesh, error) {
	if cfg.DedupWindowSize <= 0 {
		cfg.DedupWindowSize = 4096
	}
	if log == nil {
		log = slog.Default()
	}
	window := protocol.NewDedupWindow(cfg.DedupWindowSize)

	var store *protocol.DedupStore
	if cfg.DedupStorePath != "" {
		s, err := protocol.OpenDedupStore(cfg.DedupStorePath)
		if err != nil {
			return nil, err
		}
		if err := s.Rehydrate(window); err != nil {
			_ = s.Close()
			return nil, err
		}
		store = s
	}

	return &Mesh{
		selfID:     selfID,
		signer:     signer,
		table:      newPeerTable(),
		limiter:    newFixedWindowLimiter(cfg.RatePer10s),
		dedup:      window,
		dedupStore: store,
		client:     &http.Client{Timeout: broadcastTimeout},
		log:        log,
		handlers:   make(map[protocol.MessageType]Handler),
	}, nil
}

// Close releases the dedup store's on-disk handle, if one was opened.
func (m *Mesh) Close() error {
	if m.dedupStore == nil {
		return nil
	}
	return m.dedupStore.Close()
}

// OnMessage registers the handler invoked for admitted envelopes of type t.
// Registering twice for the same type replaces the previous handler.
func (m *Mesh) OnMessage(t protocol.MessageType, h Handler) {
	m.handlers[t] = h
}

// AddPeer registers or refreshes a peer learned via bootstrap or
// register-peer.
func (m *Mesh) AddPeer(identity PeerIdentity, approved bool) Peer {
	return m.table.Add(identity, approved)
}

// ApprovePeer marks a peer eligible for economy quorum participation.
func (m *Mesh) ApprovePeer(peerID string) {
	m.table.Approve(peerID)
}

// ListPeers returns every known peer and its current reputation.
func (m *Mesh) ListPeers() []Peer {
	return m.table.List()
}

// Peer returns a single peer's state.
func (m *Mesh) Peer(peerID string) (Peer, bool) {
	return m.table.Get(peerID)
}

// Sign signs env as this coordinator, setting FromPeerID and Signature.
func (m *Mesh) Sign(env *protocol.Envelope) error {
	env.FromPeerID = m.selfID
	return env.Sign(m.signer)
}

// Broadcast delivers env to every known peer, fire-and-forget: a failed
// delivery decays nothing locally (the remote side decays our reputation on
// its end) and never blocks the caller.
func (m *Mesh) Broadcast(env *protocol.Envelope) {
	peers := m.table.List()
	for _, peer := range peers {
		go m.deliver(peer, env)
	}
}

func (m *Mesh) deliver(peer Peer, env *protocol.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()

	body, err := json.Marshal(env)
	if err != nil {
		m.log.Warn("mesh: marshal envelope for broadcast failed", "peer", peer.Identity.PeerID, "err", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.Identity.URL+"/mesh/ingest", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		m.log.Warn("mesh: broadcast delivery failed", "peer", peer.Identity.PeerID, "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		m.log.Warn("mesh: broadcast rejected", "peer", peer.Identity.PeerID, "status", resp.StatusCode)
	}
}

// Ingest validates an inbound envelope (§4.1), applies the per-peer fixed
// 10 s rate limit, adjusts reputation, and — on admission — dispatches to
// the registered handler for its message type.
func (m *Mesh) Ingest(env *protocol.Envelope, nowMs int64) error {
	err := protocol.Validate(env, m.table.PublicKey, m.dedup, nowMs)
	if err != nil {
		if taxErr, ok := coordinatorerr.As(err); ok && taxErr.Code == coordinatorerr.CodeBadSignature {
			m.table.AdjustReputation(env.FromPeerID, reputationBadSignaturePenalty)
		}
		return err
	}
	if m.dedupStore != nil {
		m.dedupStore.Persist(env.ID)
	}

	if !m.limiter.Allow(env.FromPeerID, nowMs) {
		m.table.AdjustReputation(env.FromPeerID, reputationRateLimitPenalty)
		return coordinatorerr.New(coordinatorerr.CodePeerRateLimited, fmt.Sprintf("peer %s exceeded mesh rate limit", env.FromPeerID))
	}

	m.table.AdjustReputation(env.FromPeerID, reputationSuccessReward)

	handler, ok := m.handlers[env.Type]
	if !ok {
		return nil
	}
	return handler(env.FromPeerID, env)
}
