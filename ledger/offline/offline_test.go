package offline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/coordinatorerr"
)

type fakeCompleter struct {
	completed map[string]bool
	unknown   map[string]bool
}

func (f *fakeCompleter) Complete(in CompletionInput) error {
	if f.unknown[in.SubtaskID] {
		return coordinatorerr.New(coordinatorerr.CodeTaskNotFound, in.SubtaskID)
	}
	f.completed[in.SubtaskID] = true
	return nil
}

type alwaysValid struct{}

func (alwaysValid) VerifyReceipt(Receipt) bool { return true }

type alwaysInvalid struct{}

func (alwaysInvalid) VerifyReceipt(Receipt) bool { return false }

func TestReplayAcceptsNewReceipts(t *testing.T) {
	completer := &fakeCompleter{completed: map[string]bool{}, unknown: map[string]bool{}}
	r := New(completer, alwaysValid{})

	results := r.Replay([]Receipt{
		{SubtaskID: "s1", AgentID: "a1", Output: "ok", CompletedAtMs: 1000},
		{SubtaskID: "s2", AgentID: "a1", Output: "ok", CompletedAtMs: 1001},
	})

	require.Len(t, results, 2)
	require.True(t, results[0].Accepted)
	require.True(t, results[1].Accepted)
	require.True(t, completer.completed["s1"])
	require.True(t, completer.completed["s2"])
}

func TestReplayRejectsDuplicateWithinBatchLifetime(t *testing.T) {
	completer := &fakeCompleter{completed: map[string]bool{}, unknown: map[string]bool{}}
	r := New(completer, alwaysValid{})

	r.Replay([]Receipt{{SubtaskID: "s1", CompletedAtMs: 1000}})
	results := r.Replay([]Receipt{{SubtaskID: "s1", CompletedAtMs: 1000}})

	require.False(t, results[0].Accepted)
	require.Equal(t, "already_completed", results[0].Reason)
}

func TestReplayRejectsUnknownSubtask(t *testing.T) {
	completer := &fakeCompleter{completed: map[string]bool{}, unknown: map[string]bool{"s9": true}}
	r := New(completer, alwaysValid{})

	results := r.Replay([]Receipt{{SubtaskID: "s9", CompletedAtMs: 1000}})
	require.False(t, results[0].Accepted)
	require.Equal(t, "unknown_subtask", results[0].Reason)
}

func TestReplayRejectsBadSignature(t *testing.T) {
	completer := &fakeCompleter{completed: map[string]bool{}, unknown: map[string]bool{}}
	r := New(completer, alwaysInvalid{})

	results := r.Replay([]Receipt{{SubtaskID: "s1", CompletedAtMs: 1000}})
	require.False(t, results[0].Accepted)
	require.Equal(t, "bad_signature", results[0].Reason)
	require.False(t, completer.completed["s1"])
}
