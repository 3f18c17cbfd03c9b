package queue

import (
	"fmt"
	"strings"
	"sync"
)

const (
	contextHeader = "[Context from previous subtasks]\n"
	contextFooter = "\n[Your task]\n"
)

// DependencyTracker holds subtasks whose dependsOn list is not yet fully
// satisfied and releases them once every dependency has a recorded output
// (§4.3 dependency tracker, invariant 7).
type DependencyTracker struct {
	mu               sync.Mutex
	pendingDependents map[string]Subtask
	completedOutputs  map[string]string
}

// NewDependencyTracker constructs an empty tracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{
		pendingDependents: make(map[string]Subtask),
		completedOutputs:  make(map[string]string),
	}
}

// Hold parks a subtask until all of its dependencies have recorded outputs.
func (t *DependencyTracker) Hold(sub Subtask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingDependents[sub.SubtaskID] = sub
}

// Satisfied reports whether every id in deps has a recorded output.
func (t *DependencyTracker) Satisfied(deps []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.satisfiedLocked(deps)
}

func (t *DependencyTracker) satisfiedLocked(deps []string) bool {
	for _, dep := range deps {
		if _, ok := t.completedOutputs[dep]; !ok {
			return false
		}
	}
	return true
}

// Complete records subtaskID's output and returns every pending dependent
// subtask whose dependsOn list is now fully satisfied, with its input
// rewritten to carry the §4.3 context block. Callers must enqueue the
// returned subtasks.
func (t *DependencyTracker) Complete(subtaskID, output string) []Subtask {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.completedOutputs[subtaskID] = output

	var released []Subtask
	for id, pending := range t.pendingDependents {
		if !t.satisfiedLocked(pending.DependsOn) {
			continue
		}
		pending.Input = injectContext(pending.Input, pending.DependsOn, t.completedOutputs)
		released = append(released, pending)
		delete(t.pendingDependents, id)
	}
	return released
}

func injectContext(input string, deps []string, outputs map[string]string) string {
	var b strings.Builder
	b.WriteString(contextHeader)
	for i, dep := range deps {
		fmt.Fprintf(&b, "Subtask %d result: %s\n", i+1, outputs[dep])
	}
	b.WriteString(contextFooter)
	b.WriteString(input)
	return b.String()
}

// DetectCycle reports the ids of submitted subtasks from which a dependsOn
// path leads into a cycle, considering only the batch being submitted
// together (§4.3 cycle detection, invariant 8): every subtask on a cycle,
// and also every subtask that depends on one directly or transitively even
// though it cannot reach itself. An empty result means the batch is
// acyclic. A self-loop (subtask depending on itself) is a cycle of length
// one.
func DetectCycle(batch []Subtask) []string {
	edges := make(map[string][]string, len(batch))
	for _, s := range batch {
		edges[s.SubtaskID] = s.DependsOn
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(batch))
	var offending []string

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return true
		case done:
			return false
		}
		state[id] = visiting
		for _, dep := range edges[id] {
			if _, known := edges[dep]; known && visit(dep) {
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, s := range batch {
		if visit(s.SubtaskID) {
			offending = append(offending, s.SubtaskID)
		}
	}
	return offending
}
