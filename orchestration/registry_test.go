package orchestration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideMatchesCohortAndRamp(t *testing.T) {
	r := New()
	_, err := r.StageRollout("phone", "cpu", "llama-3-8b", 100, 1000)
	require.NoError(t, err)

	decision, ok := r.Decide("agent-1", "phone", "cpu")
	require.True(t, ok)
	require.Equal(t, "llama-3-8b", decision.RequestedModel)

	_, ok = r.Decide("agent-1", "laptop", "cpu")
	require.False(t, ok)
}

func TestDecideIsStablePerAgent(t *testing.T) {
	r := New()
	_, err := r.StageRollout("", "", "new-model", 50, 1000)
	require.NoError(t, err)

	first, firstOK := r.Decide("agent-xyz", "phone", "cpu")
	for i := 0; i < 5; i++ {
		again, ok := r.Decide("agent-xyz", "phone", "cpu")
		require.Equal(t, firstOK, ok)
		require.Equal(t, first, again)
	}
}

func TestUpdateRampRejectsOutOfRange(t *testing.T) {
	r := New()
	ro, err := r.StageRollout("phone", "cpu", "m1", 10, 1000)
	require.NoError(t, err)

	_, err = r.UpdateRamp(ro.RolloutID, 150, 2000)
	require.Error(t, err)

	updated, err := r.UpdateRamp(ro.RolloutID, 75, 2000)
	require.NoError(t, err)
	require.Equal(t, 75, updated.RampPct)
}

func TestUpdateRampUnknownRolloutErrors(t *testing.T) {
	r := New()
	_, err := r.UpdateRamp("missing", 50, 1000)
	require.Error(t, err)
}
