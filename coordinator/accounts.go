package coordinator

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"edgecoord/storage"
)

// gormAccountLedger implements economy/payments.AccountLedger against the
// storage.AccountRecord table: account credit balances and earned/spent
// totals live nowhere in memory, so every call is a direct gorm round trip,
// following the teacher's services/otc-gateway read-through-store idiom.
type gormAccountLedger struct {
	db *gorm.DB
}

func newGormAccountLedger(db *gorm.DB) *gormAccountLedger {
	return &gormAccountLedger{db: db}
}

func (l *gormAccountLedger) getOrCreate(accountID string) (storage.AccountRecord, error) {
	var rec storage.AccountRecord
	err := l.db.First(&rec, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = storage.AccountRecord{AccountID: accountID, UpdatedAtMs: time.Now().UnixMilli()}
		if createErr := l.db.Create(&rec).Error; createErr != nil {
			return storage.AccountRecord{}, createErr
		}
		return rec, nil
	}
	if err != nil {
		return storage.AccountRecord{}, err
	}
	return rec, nil
}

func (l *gormAccountLedger) Balance(accountID string) (float64, error) {
	rec, err := l.getOrCreate(accountID)
	if err != nil {
		return 0, err
	}
	return rec.CreditBalance, nil
}

func (l *gormAccountLedger) Credit(accountID string, credits float64) error {
	rec, err := l.getOrCreate(accountID)
	if err != nil {
		return err
	}
	rec.CreditBalance += credits
	rec.EarnedCredits += credits
	rec.UpdatedAtMs = time.Now().UnixMilli()
	return l.db.Save(&rec).Error
}

func (l *gormAccountLedger) Debit(accountID string, credits float64) error {
	rec, err := l.getOrCreate(accountID)
	if err != nil {
		return err
	}
	rec.CreditBalance -= credits
	rec.SpentCredits += credits
	rec.UpdatedAtMs = time.Now().UnixMilli()
	return l.db.Save(&rec).Error
}

func (l *gormAccountLedger) EarnedSpentRatio(accountID string) (float64, error) {
	rec, err := l.getOrCreate(accountID)
	if err != nil {
		return 0, err
	}
	if rec.SpentCredits <= 0 {
		if rec.EarnedCredits > 0 {
			return rec.EarnedCredits, nil
		}
		return 0, nil
	}
	return rec.EarnedCredits / rec.SpentCredits, nil
}

// RecordContribution appends a weighted-contribution sample for accountID,
// consumed by the issuance engine's rolling window at its next recalc tick
// (§4.8 step 1). Called once per completed subtask, crediting the agent's
// own account id as its contribution identity. Satisfies httpapi's
// ContributionRecorder.
func (l *gormAccountLedger) RecordContribution(accountID string, weight float64, nowMs int64) error {
	return l.db.Create(&storage.ContributionSampleRow{
		AccountID:            accountID,
		WeightedContribution: weight,
		ObservedAtMs:         nowMs,
	}).Error
}
