package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueIsIdempotentBySubtaskID(t *testing.T) {
	q := New()
	sub := Subtask{SubtaskID: "s1", TaskID: "T1", ProjectID: "P1"}
	q.Enqueue(sub, EnqueueOptions{})
	q.Enqueue(sub, EnqueueOptions{})
	require.Equal(t, 1, q.Status().Queued)
}

func TestSecondClaimFailsOnceSubtaskIsClaimed(t *testing.T) {
	q := New()
	q.Enqueue(Subtask{SubtaskID: "s1", TaskID: "T1", ProjectID: "P1"}, EnqueueOptions{})

	first, ok1 := q.Claim("agentA", "")
	_, ok2 := q.Claim("agentB", "")
	require.True(t, ok1)
	require.False(t, ok2)
	require.Equal(t, "agentA", first.ClaimedBy)
}

func TestCompleteRemovesAndRecordsResult(t *testing.T) {
	q := New()
	q.Enqueue(Subtask{SubtaskID: "s1", TaskID: "T1", ProjectID: "P1"}, EnqueueOptions{})
	_, _ = q.Claim("agentA", "")

	_, err := q.Complete(Result{SubtaskID: "s1", TaskID: "T1", AgentID: "agentA", OK: true})
	require.NoError(t, err)

	status := q.Status()
	require.Equal(t, 0, status.Queued)
	require.Equal(t, 1, status.Results)
}

func TestFairSharePrefersLeastCompletedProject(t *testing.T) {
	q := New()
	q.Enqueue(Subtask{SubtaskID: "p1-a", TaskID: "T1", ProjectID: "P1", Priority: 60}, EnqueueOptions{})
	q.Enqueue(Subtask{SubtaskID: "p2-a", TaskID: "T2", ProjectID: "P2", Priority: 80}, EnqueueOptions{})

	first, ok := q.Claim("agentA", "")
	require.True(t, ok)
	require.Equal(t, "p2-a", first.SubtaskID, "higher priority wins when completion counts are tied")

	_, err := q.Complete(Result{SubtaskID: "p2-a", TaskID: "T2", AgentID: "agentA", OK: true})
	require.NoError(t, err)

	q.Enqueue(Subtask{SubtaskID: "p2-b", TaskID: "T2", ProjectID: "P2", Priority: 80}, EnqueueOptions{})

	second, ok := q.Claim("agentB", "")
	require.True(t, ok)
	require.Equal(t, "p1-a", second.SubtaskID, "P1 has fewer completions so it wins fair-share even with lower priority")
}

func TestRequeueStaleResetsClaim(t *testing.T) {
	q := New()
	q.Enqueue(Subtask{SubtaskID: "s1", TaskID: "T1", ProjectID: "P1"}, EnqueueOptions{})
	claimed, _ := q.Claim("agentA", "")
	q.unclaimed[claimed.SubtaskID] = Subtask{
		SubtaskID: claimed.SubtaskID, TaskID: claimed.TaskID, ProjectID: claimed.ProjectID,
		ClaimedBy: "agentA", ClaimedAtMs: nowMs() - 100000,
	}

	n := q.RequeueStale(1000)
	require.Equal(t, 1, n)

	again, ok := q.Claim("agentB", "")
	require.True(t, ok)
	require.Equal(t, "agentB", again.ClaimedBy)
}

func TestDependencyContextInjectionOrderAndFormat(t *testing.T) {
	q := New()
	q.Enqueue(Subtask{SubtaskID: "root", TaskID: "T1", ProjectID: "P1"}, EnqueueOptions{})
	q.Enqueue(Subtask{
		SubtaskID: "dependent", TaskID: "T1", ProjectID: "P1",
		Input: "do the final step", DependsOn: []string{"root"},
	}, EnqueueOptions{})

	require.Equal(t, 1, q.Status().Queued, "dependent subtask is held, not queued")

	_, _ = q.Claim("agentA", "")
	released, err := q.Complete(Result{SubtaskID: "root", TaskID: "T1", AgentID: "agentA", OK: true, Output: "42"})
	require.NoError(t, err)
	require.Len(t, released, 1)
	require.Equal(t,
		"[Context from previous subtasks]\nSubtask 1 result: 42\n\n[Your task]\ndo the final step",
		released[0].Input,
	)

	require.Equal(t, 1, q.Status().Queued, "dependent is now claimable")
}

func TestDetectCycleRejectsSelfLoopAndMultiNodeCycle(t *testing.T) {
	selfLoop := []Subtask{{SubtaskID: "a", DependsOn: []string{"a"}}}
	require.ElementsMatch(t, []string{"a"}, DetectCycle(selfLoop))

	cycle := []Subtask{
		{SubtaskID: "a", DependsOn: []string{"b"}},
		{SubtaskID: "b", DependsOn: []string{"c"}},
		{SubtaskID: "c", DependsOn: []string{"a"}},
	}
	offending := DetectCycle(cycle)
	require.ElementsMatch(t, []string{"a", "b", "c"}, offending)

	acyclic := []Subtask{
		{SubtaskID: "a", DependsOn: nil},
		{SubtaskID: "b", DependsOn: []string{"a"}},
	}
	require.Empty(t, DetectCycle(acyclic))
}

func TestMarkRemoteClaimedRemovesUnclaimedTask(t *testing.T) {
	q := New()
	q.Enqueue(Subtask{SubtaskID: "s1", TaskID: "T1", ProjectID: "P1"}, EnqueueOptions{})

	require.True(t, q.MarkRemoteClaimed("s1"))
	require.False(t, q.MarkRemoteClaimed("s1"))
	require.Equal(t, 0, q.Status().Queued)
}
