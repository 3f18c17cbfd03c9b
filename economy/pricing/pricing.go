// Package pricing implements the §4.7 resource pricing subsystem (C8): a
// locally-computed quote, peer-consensus weighted-median aggregation, and
// persisted PriceEpoch history per resource class.
package pricing

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"edgecoord/crypto"
)

// ResourceClass mirrors queue.ResourceClass without importing queue, keeping
// pricing decoupled from dispatch.
type ResourceClass string

// CapacitySignals is the abstract input to the local quote function (§4.7).
type CapacitySignals struct {
	CPUCapacity  float64
	GPUCapacity  float64
	QueuedTasks  int
	ActiveAgents int
}

// PeerQuote is one peer's contribution to a consensus round.
type PeerQuote struct {
	CoordinatorID    string
	Price            float64
	ReputationWeight int
}

// PriceEpoch is the persisted, broadcastable outcome of a pricing round
// (§3): either this coordinator's own locally-observed quote (returned from
// GET /economy/pricing/{resourceClass} for peers to collect), or the final
// weighted-median consensus result a RunConsensus round produces.
type PriceEpoch struct {
	EpochID                 string
	CoordinatorID           string
	ResourceClass           ResourceClass
	PricePerComputeUnitSats float64
	SupplyIndex             float64
	DemandIndex             float64
	NegotiatedWith          []string
	Signature               string
	CreatedAtMs             int64
}

// canonicalEpoch is the subset of PriceEpoch fields a signature covers —
// every field but Signature itself, mirroring ledger.Record's
// canonicalise-then-sign shape (§4.2).
type canonicalEpoch struct {
	EpochID                 string
	CoordinatorID           string
	ResourceClass           ResourceClass
	PricePerComputeUnitSats float64
	SupplyIndex             float64
	DemandIndex             float64
	NegotiatedWith          []string
	CreatedAtMs             int64
}

func (e PriceEpoch) canonicalBytes() ([]byte, error) {
	return json.Marshal(canonicalEpoch{
		EpochID:                 e.EpochID,
		CoordinatorID:           e.CoordinatorID,
		ResourceClass:           e.ResourceClass,
		PricePerComputeUnitSats: e.PricePerComputeUnitSats,
		SupplyIndex:             e.SupplyIndex,
		DemandIndex:             e.DemandIndex,
		NegotiatedWith:          e.NegotiatedWith,
		CreatedAtMs:             e.CreatedAtMs,
	})
}

// Sign computes and sets e.Signature over every other field, the same
// detached-Ed25519-over-canonical-JSON scheme ledger.Chain.Append uses.
func (e *PriceEpoch) Sign(signer *crypto.SigningKey) error {
	canon, err := e.canonicalBytes()
	if err != nil {
		return fmt.Errorf("pricing: canonicalise epoch: %w", err)
	}
	e.Signature = hex.EncodeToString(signer.Sign(canon))
	return nil
}

// SupplyDemand derives the §3 supplyIndex/demandIndex pair from the same
// capacity signals Quote consumes, so a PriceEpoch's recorded indices
// always match the quote that produced it: supply is raw compute capacity,
// demand is queue depth plus queue depth per active agent (scarcity).
func SupplyDemand(signals CapacitySignals) (supplyIndex, demandIndex float64) {
	supplyIndex = signals.CPUCapacity + signals.GPUCapacity
	demandIndex = float64(signals.QueuedTasks)
	if signals.ActiveAgents > 0 {
		demandIndex += float64(signals.QueuedTasks) / float64(signals.ActiveAgents)
	}
	return supplyIndex, demandIndex
}

const (
	minWeight = 1
	maxWeight = 500

	basePrice             = 1.0
	queueLoadPriceWeight  = 0.02
	agentScarcityWeight   = 0.1
	capacityDiscountFloor = 0.25
)

// Quote computes a locally-observed price for resourceClass from capacity
// signals: busier queues and scarcer agents push price up; abundant
// CPU/GPU capacity pulls it back down, floored so price never collapses to
// zero.
func Quote(resourceClass ResourceClass, signals CapacitySignals) float64 {
	price := basePrice
	price += float64(signals.QueuedTasks) * queueLoadPriceWeight

	if signals.ActiveAgents > 0 {
		price += agentScarcityWeight / float64(signals.ActiveAgents)
	} else if signals.QueuedTasks > 0 {
		price += agentScarcityWeight
	}

	capacity := signals.CPUCapacity + signals.GPUCapacity
	if capacity > 0 {
		discount := 1.0 / (1.0 + capacity)
		if discount < capacityDiscountFloor {
			discount = capacityDiscountFloor
		}
		price *= discount
	}

	if price < capacityDiscountFloor {
		price = capacityDiscountFloor
	}
	return price
}

func clampWeight(w int) int {
	if w < minWeight {
		return minWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}

// WeightedMedian implements the §4.7 consensus price: sort quotes ascending
// by price, clamp each weight to [1, 500], then walk cumulative weight until
// it reaches at least half the total weight.
func WeightedMedian(quotes []PeerQuote) (float64, bool) {
	if len(quotes) == 0 {
		return 0, false
	}

	sorted := make([]PeerQuote, len(quotes))
	copy(sorted, quotes)
	for i := range sorted {
		sorted[i].ReputationWeight = clampWeight(sorted[i].ReputationWeight)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	var totalWeight int
	for _, q := range sorted {
		totalWeight += q.ReputationWeight
	}
	if totalWeight == 0 {
		return 0, false
	}

	var cumulative int
	for _, q := range sorted {
		cumulative += q.ReputationWeight
		if float64(cumulative) >= float64(totalWeight)/2 {
			return q.Price, true
		}
	}
	return sorted[len(sorted)-1].Price, true
}

// Store persists the latest PriceEpoch per resource class, guarded by a
// single mutex per the coordinator-wide locking discipline (§5).
type Store struct {
	mu     sync.Mutex
	epochs map[ResourceClass]PriceEpoch
}

// NewStore constructs an empty price epoch store.
func NewStore() *Store {
	return &Store{epochs: make(map[ResourceClass]PriceEpoch)}
}

// Set records epoch as the current price for its resource class.
func (s *Store) Set(epoch PriceEpoch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[epoch.ResourceClass] = epoch
}

// Get returns the current epoch for resourceClass, if any.
func (s *Store) Get(resourceClass ResourceClass) (PriceEpoch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	epoch, ok := s.epochs[resourceClass]
	return epoch, ok
}

// Snapshot returns every currently-known epoch.
func (s *Store) Snapshot() map[ResourceClass]PriceEpoch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ResourceClass]PriceEpoch, len(s.epochs))
	for k, v := range s.epochs {
		out[k] = v
	}
	return out
}
