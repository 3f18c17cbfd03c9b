// Package payments implements the §4.9 payment-intent subsystem (C10):
// invoice creation via an abstract provider, an intent state machine,
// idempotent tx-ref settlement, payout distribution, and the
// contribute-first submission gate.
package payments

// Status is a payment intent's lifecycle state (§3 PaymentIntent).
type Status string

const (
	StatusCreated Status = "created"
	StatusSettled Status = "settled"
	StatusExpired Status = "expired"
)

// Intent is a purchase of credits backed by an external invoice (§3).
type Intent struct {
	IntentID         string
	AccountID        string
	CoordinatorID    string
	WalletType       string
	Network          string
	InvoiceRef       string
	AmountSats       int64
	CoordinatorFeeBps int
	CoordinatorFeeSats int64
	NetSats          int64
	QuotedCredits    float64
	Status           Status
	CreatedAtMs      int64
	SettledAtMs      int64
	TxRef            string
}

// CoordinatorFeeEvent records the fee a coordinator retained from a
// settlement, emitted alongside every successful Settle call.
type CoordinatorFeeEvent struct {
	IntentID    string
	FeeSats     int64
	SettledAtMs int64
}

// PayoutEvent records one account's slice of the §4.9 issuance payout split
// following a settlement.
type PayoutEvent struct {
	IntentID         string
	AccountID        string
	ContributorSats  int64
	CoordinatorSats  int64
	ReserveSats      int64
	SettledAtMs      int64
}

// PayoutSplit is the §4.9 three-way split applied to a settlement's net
// amount; shares must sum to 1, and CoordinatorShare/ReserveShare are
// clamped to at most 0.5 each.
type PayoutSplit struct {
	ContributorShare float64
	CoordinatorShare float64
	ReserveShare     float64
}

// DefaultPayoutSplit is a conservative default favouring contributors.
func DefaultPayoutSplit() PayoutSplit {
	return PayoutSplit{ContributorShare: 0.7, CoordinatorShare: 0.2, ReserveShare: 0.1}
}

func (s PayoutSplit) clamped() PayoutSplit {
	if s.CoordinatorShare > 0.5 {
		s.CoordinatorShare = 0.5
	}
	if s.ReserveShare > 0.5 {
		s.ReserveShare = 0.5
	}
	s.ContributorShare = 1 - s.CoordinatorShare - s.ReserveShare
	if s.ContributorShare < 0 {
		s.ContributorShare = 0
	}
	return s
}

// InvoiceProvider is the abstract Lightning/payment-rail collaborator (§1
// Out of scope): the coordinator only consumes invoice creation and
// settlement polling.
type InvoiceProvider interface {
	CreateInvoice(accountID string, amountSats int64) (invoiceRef string, err error)
	PollSettlement(invoiceRef string) (settled bool, txRef string, err error)
}

// AccountLedger credits/debits account balances and reports the
// earned/spent ratio the contribute-first policy consults.
type AccountLedger interface {
	Balance(accountID string) (credits float64, err error)
	Credit(accountID string, credits float64) error
	Debit(accountID string, credits float64) error
	EarnedSpentRatio(accountID string) (ratio float64, err error)
}
