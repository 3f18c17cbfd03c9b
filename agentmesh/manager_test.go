package agentmesh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishOfferThenAcceptOpensTunnel(t *testing.T) {
	m := New(Config{})
	offer, err := m.PublishOffer("agent-a", "subtask-1", 1000)
	require.NoError(t, err)
	require.Equal(t, OfferStatusOpen, offer.Status)

	tunnel, err := m.AcceptOffer(offer.OfferID, "agent-b", 1100)
	require.NoError(t, err)
	require.Equal(t, "agent-a", tunnel.FromAgentID)
	require.Equal(t, "agent-b", tunnel.ToAgentID)

	stored, ok := m.Offer(offer.OfferID)
	require.True(t, ok)
	require.Equal(t, OfferStatusAccepted, stored.Status)
	require.Equal(t, tunnel.TunnelID, stored.TunnelID)
}

func TestAcceptOfferRejectsUnknownOrAlreadyAccepted(t *testing.T) {
	m := New(Config{})
	_, err := m.AcceptOffer("missing", "agent-b", 1000)
	require.Error(t, err)

	offer, err := m.PublishOffer("agent-a", "subtask-1", 1000)
	require.NoError(t, err)
	_, err = m.AcceptOffer(offer.OfferID, "agent-b", 1100)
	require.NoError(t, err)

	_, err = m.AcceptOffer(offer.OfferID, "agent-c", 1200)
	require.Error(t, err)
}

func TestPublishOfferRateLimited(t *testing.T) {
	m := New(Config{})
	var lastErr error
	for i := 0; i < defaultOfferRatePer10s+1; i++ {
		_, lastErr = m.PublishOffer("agent-a", "subtask-1", 1000)
	}
	require.Error(t, lastErr)
}

func TestRelayEnforcesPerMinuteCap(t *testing.T) {
	m := New(Config{MaxRelaysPerMin: 2})
	offer, err := m.PublishOffer("agent-a", "subtask-1", 1000)
	require.NoError(t, err)
	tunnel, err := m.AcceptOffer(offer.OfferID, "agent-b", 1000)
	require.NoError(t, err)

	require.NoError(t, m.Relay(tunnel.TunnelID, 1000))
	require.NoError(t, m.Relay(tunnel.TunnelID, 1000))
	require.Error(t, m.Relay(tunnel.TunnelID, 1000))
}

func TestGCRemovesIdleTunnels(t *testing.T) {
	m := New(Config{IdleTTLMs: 1000})
	offer, err := m.PublishOffer("agent-a", "subtask-1", 0)
	require.NoError(t, err)
	tunnel, err := m.AcceptOffer(offer.OfferID, "agent-b", 0)
	require.NoError(t, err)

	removed := m.GC(2000)
	require.Equal(t, 1, removed)
	_, ok := m.Tunnel(tunnel.TunnelID)
	require.False(t, ok)
}
