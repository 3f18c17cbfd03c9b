package issuance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/ledger"
)

type fakeWindow struct{ samples []ContributionSample }

func (w fakeWindow) Samples(startMs, endMs int64) ([]ContributionSample, error) {
	return w.samples, nil
}

type fakeSignals struct{ signals LoadSignals }

func (s fakeSignals) LoadSignals() LoadSignals { return s.signals }

type fakeQuorum struct{ n int }

func (q fakeQuorum) ApprovedCount() int { return q.n }

type fakeChain struct{ records []ledger.Record }

func (c *fakeChain) Append(in ledger.AppendInput) (ledger.Record, error) {
	rec := ledger.Record{EventType: in.EventType, ActorID: in.ActorID, IssuedAtMs: in.IssuedAtMs}
	c.records = append(c.records, rec)
	return rec, nil
}

func TestAllocateSplitsByWeightedShare(t *testing.T) {
	hourly, allocations, total := Allocate(240, []ContributionSample{
		{AccountID: "a", WeightedContribution: 3},
		{AccountID: "b", WeightedContribution: 1},
	})
	require.Equal(t, 10.0, hourly)
	require.Equal(t, 4.0, total)
	require.Equal(t, 7.5, allocations[0].IssuedTokens)
	require.Equal(t, 2.5, allocations[1].IssuedTokens)
}

func TestProposeFinalizesOnSingleCoordinatorQuorum(t *testing.T) {
	chain := &fakeChain{}
	e := New("coord-1", fakeWindow{samples: []ContributionSample{{AccountID: "a", WeightedContribution: 1}}},
		fakeSignals{signals: LoadSignals{Queued: 5, ActiveAgents: 2}}, fakeQuorum{n: 1}, chain, nil, Config{})

	epoch, err := e.Propose(1_000_000)
	require.NoError(t, err)
	require.True(t, epoch.Finalized, "threshold of floor(1/2)+1=1 is met by the proposer's own vote")

	finalized, ok := e.LatestFinalized()
	require.True(t, ok)
	require.Equal(t, epoch.IssuanceEpochID, finalized.IssuanceEpochID)
	require.Len(t, chain.records, 1)
	require.Equal(t, ledger.EventStatsCheckpointCommit, chain.records[0].EventType)
}

func TestProposeWaitsForQuorumThreshold(t *testing.T) {
	chain := &fakeChain{}
	e := New("coord-1", fakeWindow{}, fakeSignals{}, fakeQuorum{n: 5}, chain, nil, Config{})

	epoch, err := e.Propose(1_000_000)
	require.NoError(t, err)
	require.False(t, epoch.Finalized, "one vote out of threshold 3 is not enough")

	require.NoError(t, e.RecordVote(Vote{IssuanceEpochID: epoch.IssuanceEpochID, CoordinatorID: "coord-2", Approve: true, CastAtMs: 2_000_000}))
	require.NoError(t, e.RecordVote(Vote{IssuanceEpochID: epoch.IssuanceEpochID, CoordinatorID: "coord-3", Approve: true, CastAtMs: 3_000_000}))

	finalized, ok := e.LatestFinalized()
	require.True(t, ok)
	require.Equal(t, epoch.IssuanceEpochID, finalized.IssuanceEpochID)
}

func TestAnchorRequiresFinalizedEpoch(t *testing.T) {
	e := New("coord-1", fakeWindow{}, fakeSignals{}, fakeQuorum{n: 1}, &fakeChain{}, nil, Config{})
	_, err := e.Anchor(1000)
	require.Error(t, err)
}
