package coordinator

import (
	"gorm.io/gorm"

	"edgecoord/economy/issuance"
	"edgecoord/economy/pricing"
	"edgecoord/mesh"
	"edgecoord/queue"
	"edgecoord/registry"
	"edgecoord/storage"
)

// gormContributionWindow implements economy/issuance.ContributionWindow by
// reading storage.ContributionSampleRow directly — the rolling window is
// never held in memory, matching §9's "persistent store is the source of
// truth for durable history" split from in-memory dispatch state.
type gormContributionWindow struct {
	db *gorm.DB
}

func (w *gormContributionWindow) Samples(windowStartMs, windowEndMs int64) ([]issuance.ContributionSample, error) {
	var rows []storage.ContributionSampleRow
	if err := w.db.Where("observed_at_ms BETWEEN ? AND ?", windowStartMs, windowEndMs).Find(&rows).Error; err != nil {
		return nil, err
	}
	samples := make([]issuance.ContributionSample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, issuance.ContributionSample{
			AccountID:            r.AccountID,
			WeightedContribution: r.WeightedContribution,
			ObservedAtMs:         r.ObservedAtMs,
		})
	}
	return samples, nil
}

// queueRegistryLoadSignals implements economy/issuance.LoadSignalSource and
// economy/pricing's CapacitySignals input from the queue/registry's live
// in-memory state — the same two collaborators the pricing quote endpoint
// consults (§4.7/§4.8 share the same raw signals by design).
type queueRegistryLoadSignals struct {
	queue    *queue.Queue
	registry *registry.Registry
}

func (s *queueRegistryLoadSignals) capacitySignals() pricing.CapacitySignals {
	status := s.queue.Status()
	return pricing.CapacitySignals{
		CPUCapacity:  float64(status.Agents),
		GPUCapacity:  0,
		QueuedTasks:  status.Queued,
		ActiveAgents: status.Agents,
	}
}

func (s *queueRegistryLoadSignals) LoadSignals() issuance.LoadSignals {
	status := s.queue.Status()
	return issuance.LoadSignals{
		Queued:       status.Queued,
		ActiveAgents: status.Agents,
		CPUCapacity:  float64(status.Agents),
		GPUCapacity:  0,
	}
}

// meshQuorumMembership implements economy/issuance.QuorumMembership by
// counting approved peers in the gossip mesh's peer table (§4.8 Quorum:
// "approved coordinators form the quorum set").
type meshQuorumMembership struct {
	mesh *mesh.Mesh
}

func (q *meshQuorumMembership) ApprovedCount() int {
	count := 1 // this coordinator counts toward its own quorum set
	for _, peer := range q.mesh.ListPeers() {
		if peer.Approved {
			count++
		}
	}
	return count
}

// blacklistCheckerAdapter narrows *blacklist.Chain's IsBlacklistedNow method
// to the single-argument shape registry.BlacklistChecker expects.
type blacklistCheckerAdapter struct {
	isBlacklistedNow func(agentID string) bool
}

func (a blacklistCheckerAdapter) IsBlacklisted(agentID string) bool {
	return a.isBlacklistedNow(agentID)
}

// pricingSource implements economy/payments.PriceSource against the live
// economy/pricing.Store, the same price consensus the /economy/pricing
// endpoints read and write.
type pricingSource struct {
	store *pricing.Store
}

func (s *pricingSource) CurrentPriceSats(resourceClass string) (float64, bool) {
	epoch, ok := s.store.Get(pricing.ResourceClass(resourceClass))
	if !ok {
		return 0, false
	}
	return epoch.PricePerComputeUnitSats, true
}
