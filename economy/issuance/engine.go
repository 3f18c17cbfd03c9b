package issuance

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
	"edgecoord/ledger"
	"edgecoord/observability"
)

// ContributionWindow reads the rolling contribution samples the engine
// allocates against (§4.8 step 1). Backed by the persistent store; the
// engine never queries storage directly.
type ContributionWindow interface {
	Samples(windowStartMs, windowEndMs int64) ([]ContributionSample, error)
}

// LoadSignalSource reports current capacity signals for the raw load index.
type LoadSignalSource interface {
	LoadSignals() LoadSignals
}

// Anchorer commits a checkpoint hash to the external immutable store (§4.8,
// §9 Anchor). The coordinator's caller passes in whatever client talks to
// that external service; this package only computes what must be anchored.
type Anchorer interface {
	Anchor(checkpoint Checkpoint) (externalRef string, err error)
}

// QuorumMembership resolves how many approved peer coordinators currently
// participate in quorum, for the §4.8 threshold calculation.
type QuorumMembership interface {
	ApprovedCount() int
}

// LedgerAppender appends an event to the ordering chain (C3), used for
// issuance_commit and issuance_checkpoint records.
type LedgerAppender interface {
	Append(in ledger.AppendInput) (ledger.Record, error)
}

// Engine is the coordinator's issuance subsystem: it proposes epochs on a
// timer, tallies quorum votes, finalizes once threshold is reached, and
// anchors the latest finalized epoch on a slower timer.
type Engine struct {
	mu            sync.Mutex
	coordinatorID string
	window        ContributionWindow
	signals       LoadSignalSource
	quorum        QuorumMembership
	chain         LedgerAppender
	anchorer      Anchorer
	alpha         float64
	curve         CurveParams
	windowMs      int64

	prevSmoothed    float64
	epochs          map[string]*Epoch
	votes           map[string]map[string]bool // epochId -> coordinatorId -> approve
	latestFinalized string
	metrics         *observability.IssuanceMetrics
}

// Config carries the tunables read from environment knobs at start (§6).
type Config struct {
	WindowMs   int64 // ISSUANCE_WINDOW_MS, default 24h in ms
	Alpha      float64
	Curve      CurveParams
}

// New constructs an issuance engine for coordinatorID.
func New(coordinatorID string, window ContributionWindow, signals LoadSignalSource, quorum QuorumMembership, chain LedgerAppender, anchorer Anchorer, cfg Config) *Engine {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = 24 * 60 * 60 * 1000
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = DefaultAlpha
	}
	if cfg.Curve.MaxDailyPoolTokens <= 0 {
		cfg.Curve = DefaultCurveParams()
	}
	return &Engine{
		coordinatorID: coordinatorID,
		window:        window,
		signals:       signals,
		quorum:        quorum,
		chain:         chain,
		anchorer:      anchorer,
		alpha:         cfg.Alpha,
		curve:         cfg.Curve,
		windowMs:      cfg.WindowMs,
		epochs:        make(map[string]*Epoch),
		votes:         make(map[string]map[string]bool),
		metrics:       observability.Issuance(),
	}
}

// Propose runs the §4.8 recalculation: reads the rolling window, computes
// and smooths the load index, derives the daily pool and hourly
// allocations, and casts this coordinator's own approve vote. Returns the
// proposed (not yet necessarily finalized) epoch.
func (e *Engine) Propose(nowMs int64) (Epoch, error) {
	samples, err := e.window.Samples(nowMs-e.windowMs, nowMs)
	if err != nil {
		return Epoch{}, coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "issuance: read contribution window: %v", err)
	}

	raw := RawLoadIndex(e.signals.LoadSignals())

	e.mu.Lock()
	smoothed := Smooth(e.alpha, raw, e.prevSmoothed)
	e.prevSmoothed = smoothed
	e.mu.Unlock()

	dailyPool := DailyPool(e.curve, smoothed)
	hourly, allocations, totalWeighted := Allocate(dailyPool, samples)

	epoch := Epoch{
		IssuanceEpochID:           uuid.NewString(),
		WindowStartMs:             nowMs - e.windowMs,
		WindowEndMs:               nowMs,
		LoadIndex:                 smoothed,
		DailyPoolTokens:           dailyPool,
		HourlyTokens:              hourly,
		TotalWeightedContribution: totalWeighted,
		ContributionCount:         len(samples),
		Allocations:               allocations,
	}

	e.mu.Lock()
	e.epochs[epoch.IssuanceEpochID] = &epoch
	e.votes[epoch.IssuanceEpochID] = map[string]bool{e.coordinatorID: true}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SetLoadIndex(smoothed)
		e.metrics.SetDailyPool(dailyPool)
		e.metrics.RecordVote("approve")
	}

	e.tryFinalize(epoch.IssuanceEpochID, nowMs)
	return epoch, nil
}

// RecordVote registers a peer coordinator's vote on an epoch proposal and
// attempts finalization.
func (e *Engine) RecordVote(v Vote) error {
	e.mu.Lock()
	if _, ok := e.epochs[v.IssuanceEpochID]; !ok {
		e.mu.Unlock()
		return coordinatorerr.New(coordinatorerr.CodePolicyNotFound, "unknown issuance epoch: "+v.IssuanceEpochID)
	}
	ballot, ok := e.votes[v.IssuanceEpochID]
	if !ok {
		ballot = make(map[string]bool)
		e.votes[v.IssuanceEpochID] = ballot
	}
	ballot[v.CoordinatorID] = v.Approve
	e.mu.Unlock()

	if e.metrics != nil {
		if v.Approve {
			e.metrics.RecordVote("approve")
		} else {
			e.metrics.RecordVote("reject")
		}
	}

	e.tryFinalize(v.IssuanceEpochID, v.CastAtMs)
	return nil
}

// threshold implements §4.8 Quorum: floor(|approved set|/2) + 1.
func (e *Engine) threshold() int {
	n := e.quorum.ApprovedCount()
	return n/2 + 1
}

func (e *Engine) tryFinalize(epochID string, nowMs int64) {
	e.mu.Lock()
	epoch, ok := e.epochs[epochID]
	if !ok || epoch.Finalized {
		e.mu.Unlock()
		return
	}
	approvals := 0
	for _, approve := range e.votes[epochID] {
		if approve {
			approvals++
		}
	}
	threshold := e.threshold()
	if approvals < threshold {
		e.mu.Unlock()
		return
	}
	epoch.Finalized = true
	e.latestFinalized = epochID
	snapshot := *epoch
	e.mu.Unlock()

	if e.chain != nil {
		_, _ = e.chain.Append(ledger.AppendInput{
			EventType:  ledger.EventStatsCheckpointCommit,
			ActorID:    e.coordinatorID,
			IssuedAtMs: nowMs,
			Payload: map[string]any{
				"issuanceEpochId": snapshot.IssuanceEpochID,
				"dailyPoolTokens": snapshot.DailyPoolTokens,
				"approvals":       approvals,
				"threshold":       threshold,
			},
		})
	}
}

// LatestFinalized returns the most recently finalized epoch, if any.
func (e *Engine) LatestFinalized() (Epoch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latestFinalized == "" {
		return Epoch{}, false
	}
	epoch, ok := e.epochs[e.latestFinalized]
	if !ok {
		return Epoch{}, false
	}
	return *epoch, true
}

// Anchor implements §4.8's periodic anchor tick: hash the latest finalized
// epoch and its allocations canonically, append an issuance_checkpoint
// ledger record, and hand the hash to the external anchorer.
func (e *Engine) Anchor(nowMs int64) (Checkpoint, error) {
	epoch, ok := e.LatestFinalized()
	if !ok {
		return Checkpoint{}, coordinatorerr.New(coordinatorerr.CodePolicyNotFound, "no finalized issuance epoch to anchor")
	}

	hash := hashEpoch(epoch)
	checkpoint := Checkpoint{IssuanceEpochID: epoch.IssuanceEpochID, Hash: hash, AnchoredAtMs: nowMs}

	if e.anchorer != nil {
		ref, err := e.anchorer.Anchor(checkpoint)
		if err != nil {
			return Checkpoint{}, coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "issuance: anchor commit: %v", err)
		}
		checkpoint.ExternalRef = ref
	}

	if e.chain != nil {
		height := uint64(len(epoch.Allocations))
		_, _ = e.chain.Append(ledger.AppendInput{
			EventType:        ledger.EventStatsCheckpointSignature,
			ActorID:          e.coordinatorID,
			IssuedAtMs:       nowMs,
			CheckpointHeight: &height,
			CheckpointHash:   hash,
			Payload:          map[string]any{"issuanceEpochId": epoch.IssuanceEpochID, "externalRef": checkpoint.ExternalRef},
		})
	}

	if e.metrics != nil {
		e.metrics.RecordAnchor()
	}
	return checkpoint, nil
}

func hashEpoch(epoch Epoch) string {
	type canonAlloc struct {
		AccountID    string  `json:"accountId"`
		IssuedTokens float64 `json:"issuedTokens"`
	}
	type canon struct {
		IssuanceEpochID string       `json:"issuanceEpochId"`
		DailyPoolTokens float64      `json:"dailyPoolTokens"`
		Allocations     []canonAlloc `json:"allocations"`
	}
	allocs := make([]canonAlloc, 0, len(epoch.Allocations))
	for _, a := range epoch.Allocations {
		allocs = append(allocs, canonAlloc{AccountID: a.AccountID, IssuedTokens: a.IssuedTokens})
	}
	payload := canon{IssuanceEpochID: epoch.IssuanceEpochID, DailyPoolTokens: epoch.DailyPoolTokens, Allocations: allocs}
	raw, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return crypto.HashSHA256(raw)
}
