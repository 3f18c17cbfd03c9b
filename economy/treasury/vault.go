package treasury

import (
	"sync"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
	"edgecoord/ledger"
)

// LedgerAppender is the subset of *ledger.Chain the vault writes through.
type LedgerAppender interface {
	Append(ledger.AppendInput) (ledger.Record, error)
}

// Vault is the coordinator's single treasury policy + custody-audit
// collaborator: it holds the live Policy, validates proposed payout
// economics against it, tracks the reserve balance, and chains every policy
// change and custody event through the ordering ledger (grounded on the
// teacher's services/payoutd.PolicyEnforcer cap-tracking shape).
type Vault struct {
	mu      sync.Mutex
	policy  Policy
	reserve int64
	chain   LedgerAppender
}

// New constructs a Vault seeded with the given policy (or DefaultPolicy if
// the zero value is passed) and reserve balance.
func New(chain LedgerAppender, seed Policy, reserveSats int64) *Vault {
	if seed.CoordinatorFeeBpsMax == 0 && seed.CoordinatorShareMax == 0 {
		seed = DefaultPolicy()
	}
	return &Vault{policy: seed.clamped(), reserve: reserveSats, chain: chain}
}

// Policy returns the vault's current policy.
func (v *Vault) Policy() Policy {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.policy
}

// SetPolicy replaces the vault's policy, signs the change into the ordering
// ledger as EventTreasuryPolicyUpdate, and returns the committed policy.
func (v *Vault) SetPolicy(next Policy, actorID string, nowMs int64) (Policy, error) {
	next = next.clamped()
	next.UpdatedAtMs = nowMs
	next.UpdatedBy = actorID

	v.mu.Lock()
	v.policy = next
	v.mu.Unlock()

	if v.chain != nil {
		if _, err := v.chain.Append(ledger.AppendInput{
			EventType:  ledger.EventTreasuryPolicyUpdate,
			ActorID:    actorID,
			IssuedAtMs: nowMs,
			Payload:    next,
		}); err != nil {
			return Policy{}, coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "treasury: append policy update: %v", err)
		}
	}
	return next, nil
}

// ValidatePayout checks a proposed settlement's fee/split economics and
// reserve impact against the current policy before payments.Settle commits.
func (v *Vault) ValidatePayout(feeBps int, coordinatorShare, reserveShare float64, reserveDeltaSats int64) error {
	v.mu.Lock()
	policy := v.policy
	projectedReserve := v.reserve + reserveDeltaSats
	v.mu.Unlock()

	if feeBps > policy.CoordinatorFeeBpsMax {
		return coordinatorerr.Newf(coordinatorerr.CodeTreasuryPolicyViolation, "coordinator fee %d bps exceeds policy max %d", feeBps, policy.CoordinatorFeeBpsMax)
	}
	if coordinatorShare > policy.CoordinatorShareMax {
		return coordinatorerr.Newf(coordinatorerr.CodeTreasuryPolicyViolation, "coordinator share %.4f exceeds policy max %.4f", coordinatorShare, policy.CoordinatorShareMax)
	}
	if reserveShare > policy.ReserveShareMax {
		return coordinatorerr.Newf(coordinatorerr.CodeTreasuryPolicyViolation, "reserve share %.4f exceeds policy max %.4f", reserveShare, policy.ReserveShareMax)
	}
	if projectedReserve < policy.ReserveFloorSats {
		return coordinatorerr.Newf(coordinatorerr.CodeReserveFloorBreached, "payout would leave reserve at %d, below floor %d", projectedReserve, policy.ReserveFloorSats)
	}
	return nil
}

// ApplyReserveDelta commits a reserve balance change once a payout it was
// validated against has actually settled.
func (v *Vault) ApplyReserveDelta(deltaSats int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reserve += deltaSats
	return v.reserve
}

// ReserveBalance returns the current tracked reserve.
func (v *Vault) ReserveBalance() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reserve
}

// RecordCustodyEvent appends a key-custody audit event (rotation or signer
// change) to the ordering ledger. event.KeyID must be the bech32 address of
// the treasury key under custody; it is rejected otherwise, since an
// unparsable KeyID would make the audit trail useless for reconciling which
// on-chain signer actually changed hands.
func (v *Vault) RecordCustodyEvent(event CustodyEvent) (ledger.Record, error) {
	eventType := ledger.EventKeyCustodyRotation
	if event.EventType == CustodyEventSignerChange {
		eventType = ledger.EventKeyCustodySignerChange
	}
	if _, err := crypto.DecodeAddress(event.KeyID); err != nil {
		return ledger.Record{}, coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "treasury: keyId is not a valid address: %v", err)
	}
	if v.chain == nil {
		return ledger.Record{}, coordinatorerr.New(coordinatorerr.CodeValidationError, "treasury: no ledger configured")
	}
	return v.chain.Append(ledger.AppendInput{
		EventType:  eventType,
		ActorID:    event.ActorID,
		IssuedAtMs: event.OccurredAtMs,
		Payload:    event,
	})
}
