package payments

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
	"edgecoord/observability"
)

// anonymousAccountID is the sentinel accepted in place of a real address by
// the contribute-first policy (§4.9 Open Question) for submitters who never
// created an account.
const anonymousAccountID = "anonymous"

// canonicalAccountID validates a non-anonymous accountID as a bech32
// nhb1.../znhb1... address (§4 C10/C11 account addressing) and returns its
// canonical encoding, so two differently-cased or re-encoded spellings of the
// same address always collide on the same AccountLedger/Intent key.
func canonicalAccountID(accountID string) (string, error) {
	if accountID == "" || accountID == anonymousAccountID {
		return accountID, nil
	}
	addr, err := crypto.DecodeAddress(accountID)
	if err != nil {
		return "", coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "payments: accountId is not a valid address: %v", err)
	}
	return addr.String(), nil
}

// PriceSource resolves the current cpu price-per-compute-unit used to quote
// credits for a settlement (§4.9 createIntent).
type PriceSource interface {
	CurrentPriceSats(resourceClass string) (float64, bool)
}

// Option customises a Processor instance, following the teacher's
// functional-options idiom (services/payoutd.Processor).
type Option func(*Processor)

// WithClock overrides the processor's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithFeeBps overrides COORDINATOR_FEE_BPS (default 150).
func WithFeeBps(bps int) Option {
	return func(p *Processor) { p.feeBps = bps }
}

// WithIntentTTL overrides PAYMENT_INTENT_TTL_MS (default 900000).
func WithIntentTTL(ttl time.Duration) Option {
	return func(p *Processor) { p.intentTTL = ttl }
}

// WithPayoutSplit overrides the default issuance payout split.
func WithPayoutSplit(split PayoutSplit) Option {
	return func(p *Processor) { p.split = split.clamped() }
}

// WithContributeFirst overrides the contribute-first policy thresholds.
func WithContributeFirst(burstCredits, minRatio float64) Option {
	return func(p *Processor) {
		p.contributionBurstCredits = burstCredits
		p.minContributionRatio = minRatio
	}
}

const (
	defaultFeeBps               = 150
	defaultIntentTTL            = 15 * time.Minute
	defaultContributionBurst    = 5
	defaultMinContributionRatio = 0.5
	satsPerCreditFloor          = 1.0
)

// Processor is the coordinator's payment subsystem: it creates invoice-backed
// intents, settles them idempotently by tx-ref, and evaluates the
// contribute-first submission gate.
type Processor struct {
	provider InvoiceProvider
	accounts AccountLedger
	prices   PriceSource
	now      func() time.Time

	feeBps                   int
	intentTTL                time.Duration
	split                    PayoutSplit
	contributionBurstCredits float64
	minContributionRatio     float64

	mu       sync.Mutex
	intents  map[string]*Intent
	settled  map[string]struct{} // tx-ref dedup set, process-wide
	metrics  *observability.PaymentsMetrics
}

// NewProcessor constructs a payments processor for the given collaborators.
func NewProcessor(provider InvoiceProvider, accounts AccountLedger, prices PriceSource, opts ...Option) *Processor {
	p := &Processor{
		provider:                 provider,
		accounts:                 accounts,
		prices:                   prices,
		now:                      time.Now,
		feeBps:                   defaultFeeBps,
		intentTTL:                defaultIntentTTL,
		split:                    DefaultPayoutSplit(),
		contributionBurstCredits: defaultContributionBurst,
		minContributionRatio:     defaultMinContributionRatio,
		intents:                  make(map[string]*Intent),
		settled:                  make(map[string]struct{}),
		metrics:                  observability.Payments(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.split = p.split.clamped()
	return p
}

// CreateIntent implements §4.9 createIntent: computes the coordinator fee,
// quotes credits at the current cpu price (or a floor if no epoch exists
// yet), requests an invoice from the provider, and persists the intent as
// "created".
func (p *Processor) CreateIntent(accountID, coordinatorID, walletType, network string, amountSats int64) (Intent, error) {
	if amountSats <= 0 {
		return Intent{}, coordinatorerr.New(coordinatorerr.CodeValidationError, "amountSats must be positive")
	}
	accountID, err := canonicalAccountID(accountID)
	if err != nil {
		return Intent{}, err
	}

	feeSats := amountSats * int64(p.feeBps) / 10000
	netSats := amountSats - feeSats

	priceSats := satsPerCreditFloor
	if p.prices != nil {
		if v, ok := p.prices.CurrentPriceSats("cpu"); ok && v > 0 {
			priceSats = v
		}
	}
	quotedCredits := float64(netSats) / priceSats

	invoiceRef, err := p.provider.CreateInvoice(accountID, amountSats)
	if err != nil {
		return Intent{}, coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "payments: create invoice: %v", err)
	}

	intent := Intent{
		IntentID:           uuid.NewString(),
		AccountID:          accountID,
		CoordinatorID:      coordinatorID,
		WalletType:         walletType,
		Network:            network,
		InvoiceRef:         invoiceRef,
		AmountSats:         amountSats,
		CoordinatorFeeBps:  p.feeBps,
		CoordinatorFeeSats: feeSats,
		NetSats:            netSats,
		QuotedCredits:      quotedCredits,
		Status:             StatusCreated,
		CreatedAtMs:        p.now().UnixMilli(),
	}

	p.mu.Lock()
	p.intents[intent.IntentID] = &intent
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.RecordIntent(walletType)
	}
	return intent, nil
}

// PayoutSplit returns the processor's current three-way payout split,
// consulted by the HTTP boundary to pre-validate a pending settlement's
// reserve impact against treasury policy before calling Settle.
func (p *Processor) PayoutSplit() PayoutSplit {
	return p.split
}

// Get returns the current state of an intent.
func (p *Processor) Get(intentID string) (Intent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	intent, ok := p.intents[intentID]
	if !ok {
		return Intent{}, false
	}
	return *intent, true
}

// EvaluateContributeFirst implements the §4.9 contribute-first policy: for
// non-anonymous submitters, a balance below CONTRIBUTION_BURST_CREDITS
// requires earned/spent ≥ MIN_CONTRIBUTION_RATIO; a balance at or above the
// threshold bypasses the ratio check entirely (§9 Open Question, the
// conservative reading this coordinator adopts).
func (p *Processor) EvaluateContributeFirst(accountID string) error {
	if accountID == "" || accountID == anonymousAccountID {
		return nil
	}
	balance, err := p.accounts.Balance(accountID)
	if err != nil {
		return coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "payments: read balance: %v", err)
	}
	if balance >= p.contributionBurstCredits {
		return nil
	}
	ratio, err := p.accounts.EarnedSpentRatio(accountID)
	if err != nil {
		return coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "payments: read earned/spent ratio: %v", err)
	}
	if ratio < p.minContributionRatio {
		return coordinatorerr.New(coordinatorerr.CodeContributeFirstRequired, accountID)
	}
	return nil
}

// DebitSubmission debits the flat 1-credit submission cost charged once
// EvaluateContributeFirst allows a submission through.
func (p *Processor) DebitSubmission(accountID string) error {
	if accountID == "" || accountID == anonymousAccountID {
		return nil
	}
	return p.accounts.Debit(accountID, 1)
}
