package pricing

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/crypto"
)

func TestQuoteRisesWithQueueDepthAndFallsWithCapacity(t *testing.T) {
	idle := Quote("cpu", CapacitySignals{QueuedTasks: 0, ActiveAgents: 5, CPUCapacity: 10})
	busy := Quote("cpu", CapacitySignals{QueuedTasks: 100, ActiveAgents: 5, CPUCapacity: 10})
	require.Greater(t, busy, idle)

	scarce := Quote("cpu", CapacitySignals{QueuedTasks: 10, ActiveAgents: 1})
	abundant := Quote("cpu", CapacitySignals{QueuedTasks: 10, ActiveAgents: 50})
	require.Greater(t, scarce, abundant)
}

func TestWeightedMedianClampsWeightsAndWalksCumulative(t *testing.T) {
	quotes := []PeerQuote{
		{CoordinatorID: "a", Price: 1.0, ReputationWeight: 0},   // clamps to 1
		{CoordinatorID: "b", Price: 2.0, ReputationWeight: 600}, // clamps to 500
		{CoordinatorID: "c", Price: 3.0, ReputationWeight: 100},
	}
	median, ok := WeightedMedian(quotes)
	require.True(t, ok)
	require.Equal(t, 2.0, median, "b's clamped weight of 500 dominates the cumulative walk")
}

func TestWeightedMedianEmptyReturnsFalse(t *testing.T) {
	_, ok := WeightedMedian(nil)
	require.False(t, ok)
}

func TestStoreSetAndGet(t *testing.T) {
	store := NewStore()
	store.Set(PriceEpoch{ResourceClass: "gpu", PricePerComputeUnitSats: 4.5, CreatedAtMs: 1000})

	epoch, ok := store.Get("gpu")
	require.True(t, ok)
	require.Equal(t, 4.5, epoch.PricePerComputeUnitSats)

	_, ok = store.Get("cpu")
	require.False(t, ok)
}

func TestSupplyDemandTracksCapacityAndQueueScarcity(t *testing.T) {
	supply, demand := SupplyDemand(CapacitySignals{CPUCapacity: 4, GPUCapacity: 2, QueuedTasks: 10, ActiveAgents: 5})
	require.Equal(t, 6.0, supply)
	require.Equal(t, 12.0, demand) // 10 queued + 10/5 scarcity term

	supply, demand = SupplyDemand(CapacitySignals{})
	require.Equal(t, 0.0, supply)
	require.Equal(t, 0.0, demand)
}

func TestPriceEpochSignRoundTrips(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)

	epoch := PriceEpoch{EpochID: "e1", CoordinatorID: "coord-a", ResourceClass: "cpu", PricePerComputeUnitSats: 1.5, CreatedAtMs: 1000}
	require.NoError(t, epoch.Sign(signer))
	require.NotEmpty(t, epoch.Signature)

	canon, err := epoch.canonicalBytes()
	require.NoError(t, err)
	sig, err := hex.DecodeString(epoch.Signature)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(signer.PublicKey(), canon, sig))
}
