// Package treasury implements the C11 treasury & custody subsystem: signed
// fee-split/reserve-floor policy records and a key-custody audit trail
// (rotations, signer changes), both chained through the C3 ordering ledger.
package treasury

// Policy bounds the coordinator's payout economics (§4.9 PayoutSplit) and the
// minimum reserve balance it must retain before new payouts are authorised.
type Policy struct {
	CoordinatorFeeBpsMax int     // upper bound on COORDINATOR_FEE_BPS
	CoordinatorShareMax  float64 // upper bound on PayoutSplit.CoordinatorShare
	ReserveShareMax      float64 // upper bound on PayoutSplit.ReserveShare
	ReserveFloorSats     int64   // minimum reserve balance before payouts are blocked
	UpdatedAtMs          int64
	UpdatedBy            string // admin principal from the bearer token
}

// clamped enforces the §4.9 per-share ceilings against the policy itself.
func (p Policy) clamped() Policy {
	if p.CoordinatorShareMax > 0.5 {
		p.CoordinatorShareMax = 0.5
	}
	if p.ReserveShareMax > 0.5 {
		p.ReserveShareMax = 0.5
	}
	if p.CoordinatorFeeBpsMax <= 0 {
		p.CoordinatorFeeBpsMax = 1000
	}
	return p
}

// DefaultPolicy matches the payments package's DefaultPayoutSplit ceilings.
func DefaultPolicy() Policy {
	return Policy{
		CoordinatorFeeBpsMax: 500,
		CoordinatorShareMax:  0.3,
		ReserveShareMax:      0.2,
		ReserveFloorSats:     0,
	}
}

// CustodyEventType enumerates the key-custody audit events this coordinator
// records (§3 persisted state layout: "key-custody events").
type CustodyEventType string

const (
	CustodyEventKeyRotation   CustodyEventType = "key_rotation"
	CustodyEventSignerChange  CustodyEventType = "signer_change"
)

// CustodyEvent is one entry in the key-custody audit trail. KeyID is the
// bech32 nhb1.../znhb1... address (§4 C10/C11 account addressing) of the
// treasury signing key under custody, as printed by
// `coordinatorctl keystore-address`.
type CustodyEvent struct {
	EventType    CustodyEventType
	KeyID        string
	OldSignerID  string
	NewSignerID  string
	ActorID      string // admin principal that initiated the event
	OccurredAtMs int64
	Reason       string
}
