package queue

import (
	"sync"
	"time"

	"edgecoord/coordinatorerr"
	"edgecoord/observability"
)

// Queue is a single coordinator's subtask FIFO plus claim state. All public
// methods are safe for concurrent use; claim() is atomic with respect to
// other claim() calls (invariant 5 of §5).
type Queue struct {
	mu sync.Mutex

	unclaimedOrder []string
	unclaimed      map[string]Subtask

	projectCompleted map[string]int
	knownAgents      map[string]struct{}
	results          []Result

	tracker *DependencyTracker
	metrics *observability.QueueMetrics
}

// New constructs an empty queue.
func New() *Queue {
	return &Queue{
		unclaimed:        make(map[string]Subtask),
		projectCompleted: make(map[string]int),
		knownAgents:      make(map[string]struct{}),
		tracker:          NewDependencyTracker(),
		metrics:          observability.Queue(),
	}
}

// Enqueue admits a subtask. It is idempotent by SubtaskID — a duplicate id
// is silently dropped and the existing subtask is returned. If the subtask
// has unsatisfied dependencies it is parked in the dependency tracker
// instead of becoming claimable.
func (q *Queue) Enqueue(sub Subtask, opts EnqueueOptions) Subtask {
	if sub.EnqueuedAtMs == 0 {
		sub.EnqueuedAtMs = nowMs()
	}
	if opts.ClaimDelayMs > 0 {
		sub.ClaimableAfterMs = sub.EnqueuedAtMs + opts.ClaimDelayMs
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.unclaimed[sub.SubtaskID]; exists {
		return q.unclaimed[sub.SubtaskID]
	}

	if len(sub.DependsOn) > 0 && !q.tracker.Satisfied(sub.DependsOn) {
		q.tracker.Hold(sub)
		return sub
	}

	q.insertLocked(sub)
	return sub
}

func (q *Queue) insertLocked(sub Subtask) {
	q.unclaimed[sub.SubtaskID] = sub
	q.unclaimedOrder = append(q.unclaimedOrder, sub.SubtaskID)
	if q.metrics != nil {
		q.metrics.SetQueued(len(q.unclaimed))
	}
}

// MarkRemoteClaimed removes an unclaimed subtask that a peer coordinator
// announced via gossip as claimed elsewhere. Returns whether a subtask was
// actually removed.
func (q *Queue) MarkRemoteClaimed(subtaskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.unclaimed[subtaskID]; !ok {
		return false
	}
	q.removeUnclaimedLocked(subtaskID)
	return true
}

func (q *Queue) removeUnclaimedLocked(subtaskID string) {
	delete(q.unclaimed, subtaskID)
	for i, id := range q.unclaimedOrder {
		if id == subtaskID {
			q.unclaimedOrder = append(q.unclaimedOrder[:i], q.unclaimedOrder[i+1:]...)
			break
		}
	}
	if q.metrics != nil {
		q.metrics.SetQueued(len(q.unclaimed))
	}
}

// Claim atomically selects and marks claimed the best candidate subtask for
// agentID per the §4.3 fair-share algorithm. Returns ok=false if no
// claimable subtask exists.
func (q *Queue) Claim(agentID, activeModel string) (Subtask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := nowMs()
	candidate, ok := selectCandidate(q.unclaimed, q.unclaimedOrder, q.projectCompleted, activeModel, now)
	if !ok {
		return Subtask{}, false
	}

	candidate.ClaimedBy = agentID
	candidate.ClaimedAtMs = now
	q.unclaimed[candidate.SubtaskID] = candidate
	q.knownAgents[agentID] = struct{}{}

	if q.metrics != nil {
		wait := time.Duration(now-candidate.EnqueuedAtMs) * time.Millisecond
		q.metrics.RecordClaim(candidate.ProjectID, wait)
	}
	return candidate, true
}

// Complete removes a claimed subtask, records the result, increments the
// project's completed count, and releases any dependent subtasks whose
// dependencies are now all satisfied.
func (q *Queue) Complete(result Result) ([]Subtask, error) {
	q.mu.Lock()
	sub, ok := q.unclaimed[result.SubtaskID]
	if !ok {
		q.mu.Unlock()
		return nil, coordinatorerr.New(coordinatorerr.CodeTaskNotFound, "subtask not found: "+result.SubtaskID)
	}
	q.removeUnclaimedLocked(result.SubtaskID)
	q.projectCompleted[sub.ProjectID]++
	q.results = append(q.results, result)
	if q.metrics != nil {
		q.metrics.RecordComplete(sub.ProjectID)
	}
	q.mu.Unlock()

	released := q.tracker.Complete(result.SubtaskID, result.Output)
	for _, r := range released {
		q.Enqueue(r, EnqueueOptions{})
	}
	return released, nil
}

// RequeueStale resets ClaimedBy/ClaimedAt for every subtask claimed longer
// than timeoutMs ago, returning the count reset.
func (q *Queue) RequeueStale(timeoutMs int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := nowMs()
	n := 0
	for id, sub := range q.unclaimed {
		if sub.ClaimedBy == "" {
			continue
		}
		if now-sub.ClaimedAtMs > timeoutMs {
			sub.ClaimedBy = ""
			sub.ClaimedAtMs = 0
			q.unclaimed[id] = sub
			n++
		}
	}
	if q.metrics != nil {
		q.metrics.RecordRequeue(n)
	}
	return n
}

// Requeue explicitly resets a single subtask's claim state.
func (q *Queue) Requeue(subtaskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	sub, ok := q.unclaimed[subtaskID]
	if !ok || sub.ClaimedBy == "" {
		return false
	}
	sub.ClaimedBy = ""
	sub.ClaimedAtMs = 0
	q.unclaimed[subtaskID] = sub
	return true
}

// Status returns the current capacity snapshot.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Queued:  len(q.unclaimed),
		Agents:  len(q.knownAgents),
		Results: len(q.results),
	}
}

// ProjectCompletedCounts returns a defensive copy of the fair-share
// completion counters.
func (q *Queue) ProjectCompletedCounts() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]int, len(q.projectCompleted))
	for k, v := range q.projectCompleted {
		out[k] = v
	}
	return out
}
