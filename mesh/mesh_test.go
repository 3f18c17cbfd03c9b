package mesh

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
	"edgecoord/protocol"
)

func signedEnvelope(t *testing.T, key *crypto.SigningKey, fromPeerID string, id string, issuedAtMs, ttlMs int64) *protocol.Envelope {
	t.Helper()
	env := &protocol.Envelope{
		ID:         id,
		Type:       protocol.MessageQueueSummary,
		FromPeerID: fromPeerID,
		IssuedAtMs: issuedAtMs,
		TTLMs:      ttlMs,
		Payload:    json.RawMessage(`{"queued":3}`),
	}
	require.NoError(t, env.Sign(key))
	return env
}

func TestIngestAcceptsValidSignedEnvelopeAndRewardsReputation(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	peerKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	m, err := New("coord-self", selfKey, Config{}, nil)
	require.NoError(t, err)
	m.AddPeer(PeerIdentity{PeerID: "coord-peer", PublicKey: peerKey.PublicKeyHex(), URL: "http://peer"}, true)

	env := signedEnvelope(t, peerKey, "coord-peer", "msg-1", 1000, 30000)
	require.NoError(t, m.Ingest(env, 1000))

	peer, ok := m.Peer("coord-peer")
	require.True(t, ok)
	require.Equal(t, reputationSeed+reputationSuccessReward, peer.Reputation)
}

func TestIngestRejectsUnknownPeer(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	peerKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	m, err := New("coord-self", selfKey, Config{}, nil)
	require.NoError(t, err)
	env := signedEnvelope(t, peerKey, "coord-peer", "msg-1", 1000, 30000)

	err = m.Ingest(env, 1000)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodePeerUnknown, taxErr.Code)
}

func TestIngestPenalizesBadSignature(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	peerKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	otherKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	m, err := New("coord-self", selfKey, Config{}, nil)
	require.NoError(t, err)
	m.AddPeer(PeerIdentity{PeerID: "coord-peer", PublicKey: peerKey.PublicKeyHex(), URL: "http://peer"}, true)

	env := signedEnvelope(t, otherKey, "coord-peer", "msg-1", 1000, 30000)
	err = m.Ingest(env, 1000)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeBadSignature, taxErr.Code)

	peer, ok := m.Peer("coord-peer")
	require.True(t, ok)
	require.Equal(t, reputationSeed+reputationBadSignaturePenalty, peer.Reputation)
}

func TestIngestDuplicateMessageDoesNotDecayReputation(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	peerKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	m, err := New("coord-self", selfKey, Config{}, nil)
	require.NoError(t, err)
	m.AddPeer(PeerIdentity{PeerID: "coord-peer", PublicKey: peerKey.PublicKeyHex(), URL: "http://peer"}, true)

	env := signedEnvelope(t, peerKey, "coord-peer", "msg-1", 1000, 30000)
	require.NoError(t, m.Ingest(env, 1000))
	afterFirst, _ := m.Peer("coord-peer")

	dup := signedEnvelope(t, peerKey, "coord-peer", "msg-1", 1000, 30000)
	err = m.Ingest(dup, 1001)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeDuplicateMessage, taxErr.Code)

	afterDup, _ := m.Peer("coord-peer")
	require.Equal(t, afterFirst.Reputation, afterDup.Reputation)
}

func TestIngestRateLimitPenalizesAndRejects(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	peerKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	m, err := New("coord-self", selfKey, Config{RatePer10s: 1}, nil)
	require.NoError(t, err)
	m.AddPeer(PeerIdentity{PeerID: "coord-peer", PublicKey: peerKey.PublicKeyHex(), URL: "http://peer"}, true)

	first := signedEnvelope(t, peerKey, "coord-peer", "msg-1", 1000, 30000)
	require.NoError(t, m.Ingest(first, 1000))

	second := signedEnvelope(t, peerKey, "coord-peer", "msg-2", 1000, 30000)
	err = m.Ingest(second, 1001)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodePeerRateLimited, taxErr.Code)

	peer, ok := m.Peer("coord-peer")
	require.True(t, ok)
	require.Equal(t, reputationSeed+reputationSuccessReward+reputationRateLimitPenalty, peer.Reputation)
}

func TestIngestDispatchesToRegisteredHandler(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	peerKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	m, err := New("coord-self", selfKey, Config{}, nil)
	require.NoError(t, err)
	m.AddPeer(PeerIdentity{PeerID: "coord-peer", PublicKey: peerKey.PublicKeyHex(), URL: "http://peer"}, true)

	var gotType protocol.MessageType
	m.OnMessage(protocol.MessageQueueSummary, func(peerID string, env *protocol.Envelope) error {
		gotType = env.Type
		return nil
	})

	env := signedEnvelope(t, peerKey, "coord-peer", "msg-1", 1000, 30000)
	require.NoError(t, m.Ingest(env, 1000))
	require.Equal(t, protocol.MessageQueueSummary, gotType)
}

func TestReputationClampedToBounds(t *testing.T) {
	selfKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	m, err := New("coord-self", selfKey, Config{}, nil)
	require.NoError(t, err)
	m.AddPeer(PeerIdentity{PeerID: "p1", PublicKey: "deadbeef"}, true)

	for i := 0; i < 50; i++ {
		m.table.AdjustReputation("p1", -10)
	}
	peer, _ := m.Peer("p1")
	require.Equal(t, ReputationMin, peer.Reputation)

	for i := 0; i < 50; i++ {
		m.table.AdjustReputation("p1", 10)
	}
	peer, _ = m.Peer("p1")
	require.Equal(t, ReputationMax, peer.Reputation)
}
