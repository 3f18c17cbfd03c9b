package blacklist

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
)

// NewInput bundles the caller-supplied fields for a locally-originated
// record; EventHash, PrevEventHash and CoordinatorSignature are computed by
// the chain.
type NewInput struct {
	EventID                   string
	AgentID                   string
	ReasonCode                ReasonCode
	Reason                    string
	EvidenceHashSha256        string
	ReporterID                string
	ReporterPublicKey         string
	ReporterSignature         string
	EvidenceSignatureVerified bool
	TimestampMs               int64
	ExpiresAtMs               *int64
}

// Chain is a single coordinator's blacklist hash chain: the canonical
// in-memory state, an append-only audit log mirror, and the by-agent index
// IsBlacklisted consults.
type Chain struct {
	mu            sync.Mutex
	coordinatorID string
	signer        *crypto.SigningKey
	records       []Record
	byAgent       map[string][]int // agentId -> indices into records, latest last
	byEventID     map[string]int   // eventId -> index into records
	audit         io.Writer
}

// New constructs a chain for coordinatorID. auditPath, if non-empty, opens a
// rotated JSON-lines audit log at that path via lumberjack.
func New(coordinatorID string, signer *crypto.SigningKey, seed []Record, auditPath string) *Chain {
	c := &Chain{
		coordinatorID: coordinatorID,
		signer:        signer,
		byAgent:       make(map[string][]int),
		byEventID:     make(map[string]int),
	}
	if auditPath != "" {
		c.audit = &lumberjack.Logger{
			Filename:   auditPath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     90,
			Compress:   true,
		}
	}
	for _, rec := range seed {
		c.records = append(c.records, rec)
		c.indexLocked(rec)
	}
	return c
}

// Local appends a record this coordinator originated itself — reporter
// fields are taken verbatim from in (the coordinator vouches for its own
// observation).
func (c *Chain) Local(in NewInput) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := Record{
		EventID:                   in.EventID,
		AgentID:                   in.AgentID,
		ReasonCode:                in.ReasonCode,
		Reason:                    in.Reason,
		EvidenceHashSha256:        in.EvidenceHashSha256,
		ReporterID:                in.ReporterID,
		ReporterPublicKey:         in.ReporterPublicKey,
		ReporterSignature:         in.ReporterSignature,
		EvidenceSignatureVerified: in.EvidenceSignatureVerified,
		SourceCoordinatorID:       c.coordinatorID,
		TimestampMs:               in.TimestampMs,
		ExpiresAtMs:               in.ExpiresAtMs,
	}
	return c.appendLocked(rec)
}

// Merge admits a record received from a peer via `blacklist_update` gossip.
// It re-validates the record independently (§4.6), returns the stored record
// unchanged when the same eventId with identical evidence was already
// merged, and otherwise appends it. The incoming timestampMs is not compared
// against any earlier record for the same agent or event: a record older
// than the current head is appended like any other.
func (c *Chain) Merge(rec Record) (Record, error) {
	if err := ValidateInbound(rec); err != nil {
		return Record{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, seen := c.byEventID[rec.EventID]; seen {
		existing := c.records[idx]
		existingEvidence, err := existing.EvidenceBytes()
		if err != nil {
			return Record{}, fmt.Errorf("blacklist: canonicalise existing evidence: %w", err)
		}
		incomingEvidence, err := rec.EvidenceBytes()
		if err != nil {
			return Record{}, fmt.Errorf("blacklist: canonicalise incoming evidence: %w", err)
		}
		if !bytes.Equal(existingEvidence, incomingEvidence) {
			return Record{}, coordinatorerr.New(coordinatorerr.CodeInvalidBlacklistPayload, "eventId already recorded with different content: "+rec.EventID)
		}
		return existing, nil
	}

	return c.appendLocked(rec)
}

func (c *Chain) appendLocked(rec Record) (Record, error) {
	prevHash := GenesisHash
	if n := len(c.records); n > 0 {
		prevHash = c.records[n-1].EventHash
	}
	rec.PrevEventHash = prevHash

	canon, err := rec.ChainBytes()
	if err != nil {
		return Record{}, fmt.Errorf("blacklist: canonicalise record: %w", err)
	}
	rec.EventHash = crypto.HashSHA256(canon)
	rec.CoordinatorSignature = hex.EncodeToString(c.signer.Sign([]byte(rec.EventHash)))

	c.records = append(c.records, rec)
	c.indexLocked(rec)
	c.writeAuditLocked(rec)
	return rec, nil
}

func (c *Chain) indexLocked(rec Record) {
	idx := len(c.records) - 1
	if idx < 0 {
		idx = 0
	}
	c.byAgent[rec.AgentID] = append(c.byAgent[rec.AgentID], idx)
	c.byEventID[rec.EventID] = idx
}

func (c *Chain) writeAuditLocked(rec Record) {
	if c.audit == nil {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	line = append(line, '\n')
	_, _ = c.audit.Write(line)
}

// IsBlacklisted reports whether agentID has an active (unexpired) blacklist
// record as of nowMs.
func (c *Chain) IsBlacklisted(agentID string, nowMs int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	indices := c.byAgent[agentID]
	for i := len(indices) - 1; i >= 0; i-- {
		rec := c.records[indices[i]]
		if rec.Active(nowMs) {
			return true
		}
	}
	return false
}

// IsBlacklistedNow satisfies registry.BlacklistChecker, evaluated against
// wall-clock time.
func (c *Chain) IsBlacklistedNow(agentID string) bool {
	return c.IsBlacklisted(agentID, time.Now().UnixMilli())
}

// RecordsFor returns every record ever appended for agentID, oldest first.
func (c *Chain) RecordsFor(agentID string) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	indices := c.byAgent[agentID]
	out := make([]Record, 0, len(indices))
	for _, i := range indices {
		out = append(out, c.records[i])
	}
	return out
}

// Snapshot returns a defensive copy of the full chain.
func (c *Chain) Snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// ActiveSnapshot returns only the records currently in force (unexpired),
// for the `GET /security/blacklist` summary view; `/security/blacklist/audit`
// exposes the full history including expired records.
func (c *Chain) ActiveSnapshot(nowMs int64) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, 0, len(c.records))
	for _, rec := range c.records {
		if rec.Active(nowMs) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the current chain length.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
