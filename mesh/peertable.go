package mesh

import "sync"

// peerTable is the single owning map for peer identity and reputation (§9
// "shared-reference / multi-owner structures" — looked up by peer id, every
// other component holds only ids).
type peerTable struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

func newPeerTable() *peerTable {
	return &peerTable{peers: make(map[string]*Peer)}
}

// Add registers or refreshes a peer's identity, seeding reputation at 100 on
// first sight and leaving an existing score untouched on re-announce.
func (t *peerTable) Add(identity PeerIdentity, approved bool) Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.peers[identity.PeerID]
	if !ok {
		peer := &Peer{Identity: identity, Reputation: reputationSeed, Approved: approved}
		t.peers[identity.PeerID] = peer
		return *peer
	}
	existing.Identity = identity
	if approved {
		existing.Approved = true
	}
	return *existing
}

// Get returns the peer's current state.
func (t *peerTable) Get(peerID string) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// PublicKey resolves a peer's Ed25519 public key hex, satisfying
// protocol.PeerKeyLookup.
func (t *peerTable) PublicKey(peerID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[peerID]
	if !ok {
		return "", false
	}
	return p.Identity.PublicKey, true
}

// List returns a snapshot of every known peer.
func (t *peerTable) List() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// AdjustReputation applies delta, clamped to [ReputationMin, ReputationMax],
// and returns the resulting score. Unknown peers are a no-op returning 0.
func (t *peerTable) AdjustReputation(peerID string, delta int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[peerID]
	if !ok {
		return 0
	}
	p.Reputation += delta
	if p.Reputation < ReputationMin {
		p.Reputation = ReputationMin
	}
	if p.Reputation > ReputationMax {
		p.Reputation = ReputationMax
	}
	return p.Reputation
}

// Approve marks a peer as economy-quorum eligible (coordinator_not_approved
// gate for /economy/* endpoints).
func (t *peerTable) Approve(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[peerID]; ok {
		p.Approved = true
	}
}
