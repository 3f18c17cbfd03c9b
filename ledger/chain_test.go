package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/crypto"
)

func newTestChain(t *testing.T) (*Chain, *crypto.SigningKey) {
	t.Helper()
	key, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	return New("coord-1", key, nil), key
}

func TestAppendLinksHashes(t *testing.T) {
	chain, _ := newTestChain(t)

	first, err := chain.Append(AppendInput{EventType: EventTaskEnqueue, TaskID: "T1", IssuedAtMs: 1})
	require.NoError(t, err)
	require.Equal(t, GenesisHash, first.PrevHash)
	require.Equal(t, uint64(1), first.Sequence)

	second, err := chain.Append(AppendInput{EventType: EventTaskClaim, TaskID: "T1", IssuedAtMs: 2})
	require.NoError(t, err)
	require.Equal(t, first.Hash, second.PrevHash)
	require.Equal(t, uint64(2), second.Sequence)
}

func TestVerifyAcceptsValidChain(t *testing.T) {
	chain, key := newTestChain(t)
	_, err := chain.Append(AppendInput{EventType: EventTaskEnqueue, TaskID: "T1", IssuedAtMs: 1})
	require.NoError(t, err)
	_, err = chain.Append(AppendInput{EventType: EventTaskComplete, TaskID: "T1", IssuedAtMs: 2})
	require.NoError(t, err)

	result := Verify(chain.Snapshot(), key.PublicKeyHex())
	require.True(t, result.OK)
}

func TestVerifyDetectsTamperedField(t *testing.T) {
	chain, key := newTestChain(t)
	_, err := chain.Append(AppendInput{EventType: EventTaskEnqueue, TaskID: "T1", IssuedAtMs: 1})
	require.NoError(t, err)

	snapshot := chain.Snapshot()
	snapshot[0].ActorID = "attacker"

	result := Verify(snapshot, key.PublicKeyHex())
	require.False(t, result.OK)
	require.Equal(t, ReasonHashMismatch, result.Reason)
	require.Equal(t, 0, result.OffendingIndex)
}

func TestVerifyDetectsBrokenLink(t *testing.T) {
	chain, key := newTestChain(t)
	_, err := chain.Append(AppendInput{EventType: EventTaskEnqueue, TaskID: "T1", IssuedAtMs: 1})
	require.NoError(t, err)
	_, err = chain.Append(AppendInput{EventType: EventTaskComplete, TaskID: "T1", IssuedAtMs: 2})
	require.NoError(t, err)

	snapshot := chain.Snapshot()
	snapshot[1].PrevHash = "not-the-real-hash"

	result := Verify(snapshot, key.PublicKeyHex())
	require.False(t, result.OK)
	require.Equal(t, ReasonPrevHashMismatch, result.Reason)
	require.Equal(t, 1, result.OffendingIndex)
}

func TestVerifyRequiresGenesisSentinel(t *testing.T) {
	chain, key := newTestChain(t)
	_, err := chain.Append(AppendInput{EventType: EventTaskEnqueue, TaskID: "T1", IssuedAtMs: 1})
	require.NoError(t, err)

	snapshot := chain.Snapshot()
	snapshot[0].PrevHash = "SOMETHING_ELSE"

	result := Verify(snapshot, key.PublicKeyHex())
	require.False(t, result.OK)
	require.Equal(t, ReasonGenesisMismatch, result.Reason)
}
