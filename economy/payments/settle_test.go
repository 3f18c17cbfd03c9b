package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	invoiceRef string
	settled    bool
	txRef      string
}

func (f *fakeProvider) CreateInvoice(accountID string, amountSats int64) (string, error) {
	return f.invoiceRef, nil
}

func (f *fakeProvider) PollSettlement(invoiceRef string) (bool, string, error) {
	return f.settled, f.txRef, nil
}

type fakeAccounts struct {
	balances map[string]float64
	ratios   map[string]float64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{balances: map[string]float64{}, ratios: map[string]float64{}}
}

func (a *fakeAccounts) Balance(accountID string) (float64, error) { return a.balances[accountID], nil }
func (a *fakeAccounts) Credit(accountID string, credits float64) error {
	a.balances[accountID] += credits
	return nil
}
func (a *fakeAccounts) Debit(accountID string, credits float64) error {
	a.balances[accountID] -= credits
	return nil
}
func (a *fakeAccounts) EarnedSpentRatio(accountID string) (float64, error) { return a.ratios[accountID], nil }

type fixedPrice struct{ price float64 }

func (f fixedPrice) CurrentPriceSats(resourceClass string) (float64, bool) { return f.price, true }

// aliceAddr and bobAddr are valid bech32 nhb1... addresses (all-zero and
// all-zero-but-last-byte 20-byte payloads), so CreateIntent's address
// validation accepts them the same way it would a real account.
const (
	aliceAddr = "nhb1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqmswawu"
	bobAddr   = "nhb1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqpxx6gnw"
)

func TestCreateIntentComputesFeeAndNetSats(t *testing.T) {
	accounts := newFakeAccounts()
	p := NewProcessor(&fakeProvider{invoiceRef: "inv1"}, accounts, fixedPrice{price: 1}, WithFeeBps(150))

	intent, err := p.CreateIntent(aliceAddr, "coord-1", "lightning", "mainnet", 10000)
	require.NoError(t, err)
	require.Equal(t, int64(150), intent.CoordinatorFeeSats)
	require.Equal(t, int64(9850), intent.NetSats)
}

func TestCreateIntentRejectsMalformedAccountID(t *testing.T) {
	accounts := newFakeAccounts()
	p := NewProcessor(&fakeProvider{invoiceRef: "inv1"}, accounts, fixedPrice{price: 1}, WithFeeBps(150))

	_, err := p.CreateIntent("not-an-address", "coord-1", "lightning", "mainnet", 10000)
	require.Error(t, err)
}

func TestCreateIntentAllowsAnonymousAccountID(t *testing.T) {
	accounts := newFakeAccounts()
	p := NewProcessor(&fakeProvider{invoiceRef: "inv1"}, accounts, fixedPrice{price: 1}, WithFeeBps(150))

	intent, err := p.CreateIntent("anonymous", "coord-1", "lightning", "mainnet", 10000)
	require.NoError(t, err)
	require.Equal(t, "anonymous", intent.AccountID)
}

func TestSettleIsIdempotentByTxRef(t *testing.T) {
	accounts := newFakeAccounts()
	p := NewProcessor(&fakeProvider{invoiceRef: "inv1"}, accounts, fixedPrice{price: 1}, WithFeeBps(150))
	intent, err := p.CreateIntent(aliceAddr, "coord-1", "lightning", "mainnet", 10000)
	require.NoError(t, err)

	_, _, _, err = p.Settle(intent.IntentID, "abc")
	require.NoError(t, err)
	balanceAfterFirst := accounts.balances[intent.AccountID]
	require.Equal(t, 9850.0, balanceAfterFirst)

	_, _, _, err = p.Settle(intent.IntentID, "abc")
	require.Error(t, err)
	require.Equal(t, balanceAfterFirst, accounts.balances[intent.AccountID], "second settle with same txRef must not double-credit")
}

func TestReconcileExpiresStaleIntents(t *testing.T) {
	accounts := newFakeAccounts()
	now := time.Unix(1_700_000_000, 0)
	p := NewProcessor(&fakeProvider{invoiceRef: "inv1", settled: false}, accounts, fixedPrice{price: 1},
		WithClock(func() time.Time { return now }), WithIntentTTL(time.Minute))
	intent, err := p.CreateIntent(aliceAddr, "coord-1", "lightning", "mainnet", 1000)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	expired, settled := p.Reconcile()
	require.Contains(t, expired, intent.IntentID)
	require.Empty(t, settled)
}

func TestEvaluateContributeFirstAllowsAboveBurstThreshold(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.balances[aliceAddr] = 10
	accounts.ratios[aliceAddr] = 0 // would fail the ratio check, but balance bypasses it
	p := NewProcessor(&fakeProvider{}, accounts, fixedPrice{price: 1}, WithContributeFirst(5, 0.5))
	require.NoError(t, p.EvaluateContributeFirst(aliceAddr))
}

func TestEvaluateContributeFirstRejectsBelowThresholdWithLowRatio(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.balances[bobAddr] = 1
	accounts.ratios[bobAddr] = 0.1
	p := NewProcessor(&fakeProvider{}, accounts, fixedPrice{price: 1}, WithContributeFirst(5, 0.5))
	require.Error(t, p.EvaluateContributeFirst(bobAddr))
}
