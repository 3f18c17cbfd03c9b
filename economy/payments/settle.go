package payments

import (
	"edgecoord/coordinatorerr"
)

// Settle implements §4.9 settle: idempotent by txRef across the entire
// process (invariant 4, §8). A second call with an already-seen txRef fails
// with duplicate_tx_ref_rejected and makes no further balance change,
// regardless of which intent it targets.
func (p *Processor) Settle(intentID, txRef string) (Intent, CoordinatorFeeEvent, PayoutEvent, error) {
	p.mu.Lock()
	if _, seen := p.settled[txRef]; seen {
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.RecordRejected("duplicate_tx_ref")
		}
		return Intent{}, CoordinatorFeeEvent{}, PayoutEvent{}, coordinatorerr.New(coordinatorerr.CodeDuplicateTxRefRejected, txRef)
	}
	intent, ok := p.intents[intentID]
	if !ok {
		p.mu.Unlock()
		return Intent{}, CoordinatorFeeEvent{}, PayoutEvent{}, coordinatorerr.New(coordinatorerr.CodeIntentNotFound, intentID)
	}
	if intent.Status == StatusExpired {
		p.mu.Unlock()
		return Intent{}, CoordinatorFeeEvent{}, PayoutEvent{}, coordinatorerr.New(coordinatorerr.CodeIntentExpired, intentID)
	}
	// Reserve the tx-ref under the lock before any I/O, so two concurrent
	// Settle calls for the same txRef cannot both pass the dedup check.
	p.settled[txRef] = struct{}{}
	now := p.now().UnixMilli()
	intent.Status = StatusSettled
	intent.SettledAtMs = now
	intent.TxRef = txRef
	snapshot := *intent
	p.mu.Unlock()

	if err := p.accounts.Credit(snapshot.AccountID, snapshot.QuotedCredits); err != nil {
		p.mu.Lock()
		delete(p.settled, txRef)
		intent.Status = StatusCreated
		intent.SettledAtMs = 0
		intent.TxRef = ""
		p.mu.Unlock()
		return Intent{}, CoordinatorFeeEvent{}, PayoutEvent{}, coordinatorerr.Upstreamf(coordinatorerr.CodeValidationError, "payments: credit account: %v", err)
	}

	feeEvent := CoordinatorFeeEvent{IntentID: snapshot.IntentID, FeeSats: snapshot.CoordinatorFeeSats, SettledAtMs: now}
	payout := PayoutEvent{
		IntentID:        snapshot.IntentID,
		AccountID:       snapshot.AccountID,
		ContributorSats: int64(p.split.ContributorShare * float64(snapshot.NetSats)),
		CoordinatorSats: int64(p.split.CoordinatorShare * float64(snapshot.NetSats)),
		ReserveSats:     int64(p.split.ReserveShare * float64(snapshot.NetSats)),
		SettledAtMs:     now,
	}

	if p.metrics != nil {
		p.metrics.RecordSettled(snapshot.WalletType)
	}
	return snapshot, feeEvent, payout, nil
}

// Reconcile runs the §4.9 30-second reconciliation tick: every pending
// ("created") intent is expired if its TTL has elapsed, otherwise polled for
// settlement via the provider. Returns the intent ids that were expired or
// newly settled, so the caller can append the corresponding ledger records.
func (p *Processor) Reconcile() (expired []string, settledRefs map[string]string) {
	now := p.now().UnixMilli()
	settledRefs = make(map[string]string)

	p.mu.Lock()
	pending := make([]*Intent, 0)
	for _, intent := range p.intents {
		if intent.Status == StatusCreated {
			pending = append(pending, intent)
		}
	}
	p.mu.Unlock()

	for _, intent := range pending {
		if now-intent.CreatedAtMs > p.intentTTL.Milliseconds() {
			p.mu.Lock()
			if intent.Status == StatusCreated {
				intent.Status = StatusExpired
			}
			p.mu.Unlock()
			expired = append(expired, intent.IntentID)
			continue
		}

		settledNow, txRef, err := p.provider.PollSettlement(intent.InvoiceRef)
		if err != nil || !settledNow {
			continue
		}
		if _, _, _, err := p.Settle(intent.IntentID, txRef); err == nil {
			settledRefs[intent.IntentID] = txRef
		}
	}
	return expired, settledRefs
}
