package queue

// selectCandidate implements the §4.3 fair-share claim algorithm: among
// unclaimed subtasks whose ClaimableAfterMs has elapsed, prefer those whose
// RequestedModel matches activeModel (if any such subtask exists); within
// that pool, choose the subtask from the project with the fewest completed
// results, breaking ties by highest Priority, then by insertion order
// (order gives the earliest-enqueued candidate of a tie).
func selectCandidate(unclaimed map[string]Subtask, order []string, projectCompleted map[string]int, activeModel string, nowMs int64) (Subtask, bool) {
	eligible := make([]Subtask, 0, len(order))
	for _, id := range order {
		sub, ok := unclaimed[id]
		if !ok || sub.ClaimedBy != "" {
			continue
		}
		if sub.ClaimableAfterMs > nowMs {
			continue
		}
		eligible = append(eligible, sub)
	}
	if len(eligible) == 0 {
		return Subtask{}, false
	}

	pool := eligible
	if activeModel != "" {
		var modelMatched []Subtask
		for _, sub := range eligible {
			if sub.RequestedModel == activeModel {
				modelMatched = append(modelMatched, sub)
			}
		}
		if len(modelMatched) > 0 {
			pool = modelMatched
		}
	}

	best := pool[0]
	bestCompleted := projectCompleted[best.ProjectID]
	for _, sub := range pool[1:] {
		completed := projectCompleted[sub.ProjectID]
		switch {
		case completed < bestCompleted:
			best, bestCompleted = sub, completed
		case completed == bestCompleted && sub.Priority > best.Priority:
			best, bestCompleted = sub, completed
		}
	}
	return best, true
}
