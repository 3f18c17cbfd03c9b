package agentmesh

import (
	"sync"

	"github.com/google/uuid"

	"edgecoord/coordinatorerr"
)

const (
	defaultOfferRatePer10s  = 5
	offerRateWindowMs       = 10_000
	relayRateWindowMs       = 10_000
	defaultRelayRatePer10s  = 20
	minuteWindowMs          = 60_000
)

// Config carries the environment knobs that govern tunnel lifetime and rate
// limiting (§6 environment knobs).
type Config struct {
	IdleTTLMs       int64
	MaxRelaysPerMin int
}

func (c Config) withDefaults() Config {
	if c.IdleTTLMs <= 0 {
		c.IdleTTLMs = 5 * 60_000
	}
	if c.MaxRelaysPerMin <= 0 {
		c.MaxRelaysPerMin = 30
	}
	return c
}

// Manager owns every open Tunnel and DirectWorkOffer for one coordinator
// process. All mutation is guarded by a single mutex, following the
// coordinator-wide per-data-structure exclusion discipline (§5).
type Manager struct {
	mu sync.Mutex

	cfg Config

	tunnels map[string]*Tunnel
	offers  map[string]*DirectWorkOffer

	offerLimiter  *fixedWindowLimiter // per fromAgentID, 10 s window
	minuteLimiter *fixedWindowLimiter // per tunnelID, 60 s window
	relayLimiter  *fixedWindowLimiter // per tunnelID, 10 s window
}

// New constructs an empty Manager.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:           cfg,
		tunnels:       make(map[string]*Tunnel),
		offers:        make(map[string]*DirectWorkOffer),
		offerLimiter:  newFixedWindowLimiter(defaultOfferRatePer10s, offerRateWindowMs),
		minuteLimiter: newFixedWindowLimiter(cfg.MaxRelaysPerMin, minuteWindowMs),
		relayLimiter:  newFixedWindowLimiter(defaultRelayRatePer10s, relayRateWindowMs),
	}
}

// PublishOffer records a new open DirectWorkOffer from fromAgentID for a
// subtask it already claimed, subject to the per-agent 10 s rate window.
func (m *Manager) PublishOffer(fromAgentID, subtaskID string, nowMs int64) (DirectWorkOffer, error) {
	if !m.offerLimiter.Allow(fromAgentID, nowMs) {
		return DirectWorkOffer{}, coordinatorerr.New(coordinatorerr.CodeDirectWorkOfferRateLimited, fromAgentID)
	}

	offer := &DirectWorkOffer{
		OfferID:     uuid.NewString(),
		FromAgentID: fromAgentID,
		SubtaskID:   subtaskID,
		Status:      OfferStatusOpen,
		CreatedAtMs: nowMs,
	}

	m.mu.Lock()
	m.offers[offer.OfferID] = offer
	m.mu.Unlock()

	return *offer, nil
}

// AcceptOffer accepts an open offer on behalf of toAgentID, opening a Tunnel
// between the two agents for the subsequent relay.
func (m *Manager) AcceptOffer(offerID, toAgentID string, nowMs int64) (Tunnel, error) {
	m.mu.Lock()
	offer, ok := m.offers[offerID]
	if !ok || offer.Status != OfferStatusOpen {
		m.mu.Unlock()
		return Tunnel{}, coordinatorerr.New(coordinatorerr.CodeOfferNotAvailable, offerID)
	}

	tunnel := &Tunnel{
		TunnelID:    uuid.NewString(),
		FromAgentID: offer.FromAgentID,
		ToAgentID:   toAgentID,
		CreatedAtMs: nowMs,
		LastRelayMs: nowMs,
	}
	m.tunnels[tunnel.TunnelID] = tunnel

	offer.Status = OfferStatusAccepted
	offer.AcceptedBy = toAgentID
	offer.TunnelID = tunnel.TunnelID
	m.mu.Unlock()

	return *tunnel, nil
}

// Relay records a relay through an existing tunnel, enforcing both the
// per-10-second and per-minute rate windows (§5).
func (m *Manager) Relay(tunnelID string, nowMs int64) error {
	m.mu.Lock()
	tunnel, ok := m.tunnels[tunnelID]
	m.mu.Unlock()
	if !ok {
		return coordinatorerr.New(coordinatorerr.CodeTunnelNotFound, tunnelID)
	}

	if !m.relayLimiter.Allow(tunnelID, nowMs) {
		return coordinatorerr.New(coordinatorerr.CodeRelayRateLimited, tunnelID)
	}
	if !m.minuteLimiter.Allow(tunnelID, nowMs) {
		return coordinatorerr.New(coordinatorerr.CodeTunnelRelayCapReached, tunnelID)
	}

	m.mu.Lock()
	tunnel.LastRelayMs = nowMs
	tunnel.RelayCount++
	m.mu.Unlock()
	return nil
}

// GC removes tunnels idle for longer than IdleTTLMs and returns how many
// were removed. Expired open offers are dropped in the same pass.
func (m *Manager) GC(nowMs int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, t := range m.tunnels {
		if nowMs-t.LastRelayMs > m.cfg.IdleTTLMs {
			delete(m.tunnels, id)
			removed++
		}
	}
	for id, o := range m.offers {
		if o.Status == OfferStatusOpen && nowMs-o.CreatedAtMs > m.cfg.IdleTTLMs {
			o.Status = OfferStatusExpired
			delete(m.offers, id)
		}
	}
	return removed
}

// Tunnel returns a snapshot of a tunnel by id.
func (m *Manager) Tunnel(tunnelID string) (Tunnel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tunnels[tunnelID]
	if !ok {
		return Tunnel{}, false
	}
	return *t, true
}

// Offer returns a snapshot of an offer by id.
func (m *Manager) Offer(offerID string) (DirectWorkOffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok {
		return DirectWorkOffer{}, false
	}
	return *o, true
}

// OpenTunnelCount reports the number of live tunnels, for capacity endpoints.
func (m *Manager) OpenTunnelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tunnels)
}
