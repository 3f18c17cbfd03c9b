// Package storage implements the coordinator's persistence layer (§3
// "Persisted state layout"): gorm models for every durable entity, with
// sqlite for dev and postgres for prod, following the teacher's
// services/otc-gateway/models.go shape (uuid primary keys, indexed foreign
// keys, AutoMigrate). Two structures live outside gorm: the dedup window is
// mirrored in LevelDB by protocol's DedupStore, and the peer cache is a JSON
// file written by mesh's bootstrap.
package storage

import (
	"time"

	"gorm.io/gorm"
)

// AgentRecord mirrors registry.Registry's in-memory agent table (§3 Agent).
type AgentRecord struct {
	AgentID              string `gorm:"primaryKey;size:128"`
	OS                   string `gorm:"size:32"`
	Version              string `gorm:"size:32"`
	Mode                 string `gorm:"size:32"`
	ClientType           string `gorm:"size:32;index"`
	LocalModelProvider   string `gorm:"size:64"`
	LocalModelCatalog    string `gorm:"size:1024"`
	MaxConcurrentTasks   int
	OwnerEmail           string `gorm:"size:255"`
	SourceIP             string `gorm:"size:64"`
	LastHeartbeatMs      int64  `gorm:"index"`
	LastTaskAssignedAtMs int64
	Blacklisted          bool `gorm:"index"`
	UpdatedAtMs          int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SubtaskRecord mirrors queue.Subtask for durable replay on restart.
type SubtaskRecord struct {
	SubtaskID        string `gorm:"primaryKey;size:128"`
	TaskID           string `gorm:"index;size:128"`
	Input            string `gorm:"type:text"`
	Language         string `gorm:"size:16"`
	TimeoutMs        int64
	ProjectID        string `gorm:"index;size:128"`
	TenantID         string `gorm:"size:128"`
	ResourceClass    string `gorm:"size:8"`
	Priority         int
	RequestedModel   string `gorm:"size:128"`
	DependsOnJSON    string `gorm:"type:text"`
	ClaimableAfterMs int64
	ClaimedBy        string `gorm:"size:128;index"`
	ClaimedAtMs      int64
	EnqueuedAtMs     int64
	UpdatedAtMs      int64
}

// ResultRecord mirrors queue.Result, retained for audit and offline replay.
type ResultRecord struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	SubtaskID     string `gorm:"index;size:128"`
	TaskID        string `gorm:"index;size:128"`
	AgentID       string `gorm:"index;size:128"`
	OK            bool
	Output        string `gorm:"type:text"`
	Error         string `gorm:"type:text"`
	CompletedAtMs int64
	UpdatedAtMs   int64
}

// LedgerRecordRow mirrors ledger.Record for cross-restart chain replay.
type LedgerRecordRow struct {
	ID               string `gorm:"primaryKey;size:64"`
	EventType        string `gorm:"size:64;index"`
	TaskID           string `gorm:"size:128;index"`
	SubtaskID        string `gorm:"size:128;index"`
	ActorID          string `gorm:"size:128;index"`
	Sequence         uint64 `gorm:"index"`
	IssuedAtMs       int64
	PrevHash         string `gorm:"size:64"`
	CoordinatorID    string `gorm:"size:128;index"`
	CheckpointHeight *uint64
	CheckpointHash   string `gorm:"size:64"`
	PayloadJSON      []byte `gorm:"type:jsonb"`
	Hash             string `gorm:"size:64;uniqueIndex"`
	Signature        string `gorm:"type:text"`
	UpdatedAtMs      int64
}

// BlacklistEventRow mirrors blacklist.Record for durable chain replay.
type BlacklistEventRow struct {
	EventID                  string `gorm:"primaryKey;size:64"`
	AgentID                  string `gorm:"size:128;index"`
	ReasonCode               string `gorm:"size:64"`
	Reason                   string `gorm:"type:text"`
	EvidenceHashSha256       string `gorm:"size:64"`
	ReporterID               string `gorm:"size:128"`
	ReporterPublicKey        string `gorm:"type:text"`
	ReporterSignature        string `gorm:"type:text"`
	EvidenceSignatureVerified bool
	SourceCoordinatorID      string `gorm:"size:128;index"`
	TimestampMs              int64
	ExpiresAtMs              int64
	PrevEventHash            string `gorm:"size:64"`
	EventHash                string `gorm:"size:64;uniqueIndex"`
	CoordinatorSignature     string `gorm:"type:text"`
	UpdatedAtMs              int64
}

// PriceEpochRow mirrors economy/pricing.PriceEpoch.
type PriceEpochRow struct {
	EpochID                 string `gorm:"primaryKey;size:64"`
	CoordinatorID           string `gorm:"size:128;index"`
	ResourceClass           string `gorm:"size:8;index"`
	PricePerComputeUnitSats float64
	SupplyIndex             float64
	DemandIndex             float64
	NegotiatedWithJSON      string `gorm:"type:text"`
	Signature               string `gorm:"type:text"`
	CreatedAtMs             int64
	UpdatedAtMs             int64
}

// PaymentIntentRow mirrors economy/payments.Intent.
type PaymentIntentRow struct {
	IntentID           string `gorm:"primaryKey;size:64"`
	AccountID          string `gorm:"size:128;index"`
	CoordinatorID      string `gorm:"size:128;index"`
	WalletType         string `gorm:"size:32"`
	Network            string `gorm:"size:32"`
	InvoiceRef         string `gorm:"size:128;index"`
	AmountSats         int64
	CoordinatorFeeBps  int
	CoordinatorFeeSats int64
	NetSats            int64
	QuotedCredits      float64
	Status             string `gorm:"size:16;index"`
	CreatedAtMs        int64
	SettledAtMs        int64
	TxRef              string `gorm:"size:128;uniqueIndex:idx_payment_txref,where:tx_ref <> ''"`
	UpdatedAtMs        int64
}

// IssuanceEpochRow mirrors economy/issuance.Epoch.
type IssuanceEpochRow struct {
	IssuanceEpochID          string `gorm:"primaryKey;size:64"`
	WindowStartMs            int64
	WindowEndMs              int64
	LoadIndex                float64
	DailyPoolTokens          float64
	HourlyTokens             float64
	TotalWeightedContribution float64
	ContributionCount        int
	Finalized                bool `gorm:"index"`
	UpdatedAtMs              int64
}

// AllocationRow mirrors one economy/issuance.Allocation row within an epoch.
type AllocationRow struct {
	ID                   uint    `gorm:"primaryKey;autoIncrement"`
	IssuanceEpochID      string  `gorm:"index;size:64"`
	AccountID            string  `gorm:"index;size:128"`
	WeightedContribution float64
	AllocationShare      float64
	IssuedTokens         float64
	UpdatedAtMs          int64
}

// PayoutEventRow mirrors economy/payments.PayoutEvent.
type PayoutEventRow struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	IntentID        string `gorm:"index;size:64"`
	AccountID       string `gorm:"index;size:128"`
	ContributorSats int64
	CoordinatorSats int64
	ReserveSats     int64
	SettledAtMs     int64
}

// QuorumVoteRow mirrors economy/issuance.Vote for the quorum ledger.
type QuorumVoteRow struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	IssuanceEpochID string `gorm:"index;size:64"`
	CoordinatorID   string `gorm:"index;size:128"`
	Approve         bool
	CastAtMs        int64
}

// AnchorRow mirrors economy/issuance.Checkpoint, the periodic external
// anchor commit.
type AnchorRow struct {
	IssuanceEpochID string `gorm:"primaryKey;size:64"`
	CheckpointHash  string `gorm:"size:64"`
	AnchoredAtMs    int64
	UpdatedAtMs     int64
}

// TreasuryPolicyRow mirrors economy/treasury.Policy; single current row,
// history retained via ledger.Record (EventTreasuryPolicyUpdate).
type TreasuryPolicyRow struct {
	ID                   uint `gorm:"primaryKey;autoIncrement"`
	CoordinatorFeeBpsMax int
	CoordinatorShareMax  float64
	ReserveShareMax      float64
	ReserveFloorSats     int64
	UpdatedAtMs          int64
	UpdatedBy            string `gorm:"size:128"`
}

// KeyCustodyEventRow mirrors economy/treasury.CustodyEvent, retained for
// audit in addition to its ledger.Record chain entry.
type KeyCustodyEventRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	EventType    string `gorm:"size:32;index"`
	KeyID        string `gorm:"size:128"`
	OldSignerID  string `gorm:"size:128"`
	NewSignerID  string `gorm:"size:128"`
	ActorID      string `gorm:"size:128;index"`
	OccurredAtMs int64
	Reason       string `gorm:"type:text"`
}

// OrchestrationRolloutRow mirrors orchestration.Rollout.
type OrchestrationRolloutRow struct {
	RolloutID      string `gorm:"primaryKey;size:64"`
	ClientType     string `gorm:"size:32;index"`
	ResourceClass  string `gorm:"size:8;index"`
	RequestedModel string `gorm:"size:128"`
	RampPct        int
	CreatedAtMs    int64
	UpdatedAtMs    int64
}

// AccountRecord mirrors the credit balance and earned/spent totals the
// payments.AccountLedger and contribute-first policy consult (§4.9). There
// is no in-memory owner for this table — it is the account ledger's system
// of record, queried and updated directly through gorm.
type AccountRecord struct {
	AccountID     string `gorm:"primaryKey;size:128"`
	CreditBalance float64
	EarnedCredits float64
	SpentCredits  float64
	UpdatedAtMs   int64
}

// ContributionSampleRow mirrors one issuance.ContributionSample observed
// when an agent's completed subtask is credited, feeding the rolling
// window issuance.Engine reads from at each recalculation tick (§4.8 step
// 1).
type ContributionSampleRow struct {
	ID                   uint   `gorm:"primaryKey;autoIncrement"`
	AccountID            string `gorm:"index;size:128"`
	WeightedContribution float64
	ObservedAtMs         int64 `gorm:"index"`
}

// AutoMigrate runs schema migration for every persisted entity in §3.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&AgentRecord{},
		&SubtaskRecord{},
		&ResultRecord{},
		&LedgerRecordRow{},
		&BlacklistEventRow{},
		&PriceEpochRow{},
		&PaymentIntentRow{},
		&IssuanceEpochRow{},
		&AllocationRow{},
		&PayoutEventRow{},
		&QuorumVoteRow{},
		&AnchorRow{},
		&TreasuryPolicyRow{},
		&KeyCustodyEventRow{},
		&OrchestrationRolloutRow{},
		&AccountRecord{},
		&ContributionSampleRow{},
	)
}
