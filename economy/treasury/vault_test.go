package treasury

import (
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/ledger"
)

type fakeChain struct{ records []ledger.Record }

func (c *fakeChain) Append(in ledger.AppendInput) (ledger.Record, error) {
	rec := ledger.Record{EventType: in.EventType, ActorID: in.ActorID, IssuedAtMs: in.IssuedAtMs}
	c.records = append(c.records, rec)
	return rec, nil
}

func TestSetPolicyClampsSharesAndChainsUpdate(t *testing.T) {
	chain := &fakeChain{}
	v := New(chain, Policy{}, 0)

	committed, err := v.SetPolicy(Policy{CoordinatorFeeBpsMax: 900, CoordinatorShareMax: 0.9, ReserveShareMax: 0.9}, "admin-1", 1000)
	require.NoError(t, err)
	require.Equal(t, 0.5, committed.CoordinatorShareMax)
	require.Equal(t, 0.5, committed.ReserveShareMax)
	require.Len(t, chain.records, 1)
	require.Equal(t, ledger.EventTreasuryPolicyUpdate, chain.records[0].EventType)
}

func TestValidatePayoutRejectsFeeAboveMax(t *testing.T) {
	v := New(&fakeChain{}, DefaultPolicy(), 0)
	err := v.ValidatePayout(600, 0.2, 0.1, 100)
	require.Error(t, err)
}

func TestValidatePayoutRejectsReserveFloorBreach(t *testing.T) {
	v := New(&fakeChain{}, Policy{CoordinatorFeeBpsMax: 500, CoordinatorShareMax: 0.3, ReserveShareMax: 0.2, ReserveFloorSats: 1000}, 1000)
	err := v.ValidatePayout(100, 0.2, 0.1, -500)
	require.Error(t, err)
}

func TestValidatePayoutAllowsWithinBounds(t *testing.T) {
	v := New(&fakeChain{}, DefaultPolicy(), 1000)
	require.NoError(t, v.ValidatePayout(100, 0.2, 0.1, 50))
}

// custodyKeyAddr is a valid bech32 nhb1... address standing in for a
// treasury signing key under custody.
const custodyKeyAddr = "nhb1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqmswawu"

func TestRecordCustodyEventChainsByType(t *testing.T) {
	chain := &fakeChain{}
	v := New(chain, DefaultPolicy(), 0)

	_, err := v.RecordCustodyEvent(CustodyEvent{EventType: CustodyEventKeyRotation, KeyID: custodyKeyAddr, ActorID: "admin-1", OccurredAtMs: 1})
	require.NoError(t, err)
	_, err = v.RecordCustodyEvent(CustodyEvent{EventType: CustodyEventSignerChange, KeyID: custodyKeyAddr, OldSignerID: "s1", NewSignerID: "s2", ActorID: "admin-1", OccurredAtMs: 2})
	require.NoError(t, err)

	require.Len(t, chain.records, 2)
	require.Equal(t, ledger.EventKeyCustodyRotation, chain.records[0].EventType)
	require.Equal(t, ledger.EventKeyCustodySignerChange, chain.records[1].EventType)
}

func TestRecordCustodyEventRejectsMalformedKeyID(t *testing.T) {
	v := New(&fakeChain{}, DefaultPolicy(), 0)
	_, err := v.RecordCustodyEvent(CustodyEvent{EventType: CustodyEventKeyRotation, KeyID: "not-an-address", ActorID: "admin-1", OccurredAtMs: 1})
	require.Error(t, err)
}
