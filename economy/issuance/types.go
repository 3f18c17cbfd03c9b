// Package issuance implements the §4.8 token-issuance subsystem (C9): a
// smoothed daily pool sized from a rolling contribution window, hourly
// weighted allocation across accounts, quorum-finalized epochs, and
// periodic anchoring to an external immutable store.
package issuance

// ContributionSample is one account's weighted contribution observed inside
// a rolling window (§4.8 step 1). The coordinator reads these from the
// persistent store; how contribution weight is computed upstream (task
// completions, uptime, etc.) is outside this package's concern.
type ContributionSample struct {
	AccountID            string
	WeightedContribution float64
	ObservedAtMs         int64
}

// LoadSignals is the raw input to the §4.8 step 2 load index.
type LoadSignals struct {
	Queued       int
	ActiveAgents int
	CPUCapacity  float64
	GPUCapacity  float64
}

// Allocation is one account's share of an hourly issuance (§3).
type Allocation struct {
	AccountID            string
	WeightedContribution float64
	AllocationShare      float64
	IssuedTokens         float64
}

// Epoch is a proposed or finalized issuance window (§3 IssuanceEpoch).
type Epoch struct {
	IssuanceEpochID          string
	WindowStartMs            int64
	WindowEndMs              int64
	LoadIndex                float64
	DailyPoolTokens          float64
	HourlyTokens             float64
	TotalWeightedContribution float64
	ContributionCount        int
	Finalized                bool
	Allocations              []Allocation
}

// Vote is a single coordinator's stance on an issuance epoch proposal (§4.8
// Quorum).
type Vote struct {
	IssuanceEpochID string
	CoordinatorID   string
	Approve         bool
	CastAtMs        int64
}

// Checkpoint is the §4.8 anchor record: a hash of a finalized epoch plus its
// allocations, committed to an external immutable store.
type Checkpoint struct {
	IssuanceEpochID string
	Hash            string
	AnchoredAtMs    int64
	ExternalRef     string
}

// CurveParams bounds the monotonic daily-pool-sizing curve (§4.8 step 4).
type CurveParams struct {
	MinDailyPoolTokens float64
	MaxDailyPoolTokens float64
	// Slope controls how steeply the pool scales with the smoothed load
	// index; the curve is MinDailyPoolTokens + Slope*smoothed, clamped to
	// [Min, Max].
	Slope float64
}

// DefaultCurveParams returns reasonable defaults for a coordinator that has
// not been given operator-tuned bounds.
func DefaultCurveParams() CurveParams {
	return CurveParams{MinDailyPoolTokens: 1000, MaxDailyPoolTokens: 100000, Slope: 500}
}

// DefaultAlpha is the §4.8 step 3 smoothing factor.
const DefaultAlpha = 0.35
