// Package blacklist implements the reason-coded, evidence-hashed,
// reporter-signed hash chain of agent blacklist events (§4.6, C7). Every
// coordinator keeps its own chain; peers merge each other's records via
// gossip `blacklist_update` messages after independent validation.
package blacklist

import "encoding/json"

// ReasonCode enumerates why an agent was blacklisted (§3 BlacklistRecord).
type ReasonCode string

const (
	ReasonAbuseSpam       ReasonCode = "abuse_spam"
	ReasonAbuseMalware    ReasonCode = "abuse_malware"
	ReasonPolicyViolation ReasonCode = "policy_violation"
	ReasonCredentialAbuse ReasonCode = "credential_abuse"
	ReasonDosBehavior     ReasonCode = "dos_behavior"
	ReasonForgedResults   ReasonCode = "forged_results"
	ReasonManualReview    ReasonCode = "manual_review"
)

// ValidReasonCode reports whether code is one of the §3 enum values.
func ValidReasonCode(code ReasonCode) bool {
	switch code {
	case ReasonAbuseSpam, ReasonAbuseMalware, ReasonPolicyViolation, ReasonCredentialAbuse,
		ReasonDosBehavior, ReasonForgedResults, ReasonManualReview:
		return true
	default:
		return false
	}
}

// GenesisHash is the literal sentinel used as PrevEventHash for the first
// record a coordinator ever appends to its blacklist chain.
const GenesisHash = "BLACKLIST_GENESIS"

// Record is a single entry in the blacklist hash chain (§3).
type Record struct {
	EventID                   string     `json:"eventId"`
	AgentID                   string     `json:"agentId"`
	ReasonCode                ReasonCode `json:"reasonCode"`
	Reason                    string     `json:"reason"`
	EvidenceHashSha256        string     `json:"evidenceHashSha256"`
	ReporterID                string     `json:"reporterId"`
	ReporterPublicKey         string     `json:"reporterPublicKey,omitempty"`
	ReporterSignature         string     `json:"reporterSignature,omitempty"`
	EvidenceSignatureVerified bool       `json:"evidenceSignatureVerified"`
	SourceCoordinatorID       string     `json:"sourceCoordinatorId"`
	TimestampMs               int64      `json:"timestampMs"`
	ExpiresAtMs               *int64     `json:"expiresAtMs,omitempty"`
	PrevEventHash             string     `json:"prevEventHash"`
	EventHash                 string     `json:"eventHash"`
	CoordinatorSignature      string     `json:"coordinatorSignature"`
}

// evidenceFields is what a reporter's signature commits to — the content a
// third party attests happened, independent of which coordinator chain the
// record ends up appended to.
type evidenceFields struct {
	EventID            string     `json:"eventId"`
	AgentID            string     `json:"agentId"`
	ReasonCode         ReasonCode `json:"reasonCode"`
	Reason             string     `json:"reason"`
	EvidenceHashSha256 string     `json:"evidenceHashSha256"`
	TimestampMs        int64      `json:"timestampMs"`
}

// EvidenceBytes returns the canonical bytes a reporter signs over.
func (r *Record) EvidenceBytes() ([]byte, error) {
	return json.Marshal(evidenceFields{
		EventID:            r.EventID,
		AgentID:            r.AgentID,
		ReasonCode:         r.ReasonCode,
		Reason:             r.Reason,
		EvidenceHashSha256: r.EvidenceHashSha256,
		TimestampMs:        r.TimestampMs,
	})
}

// chainFields is what the per-coordinator hash commits to — every field
// except EventHash and CoordinatorSignature themselves.
type chainFields struct {
	EventID                   string     `json:"eventId"`
	AgentID                   string     `json:"agentId"`
	ReasonCode                ReasonCode `json:"reasonCode"`
	Reason                    string     `json:"reason"`
	EvidenceHashSha256        string     `json:"evidenceHashSha256"`
	ReporterID                string     `json:"reporterId"`
	ReporterPublicKey         string     `json:"reporterPublicKey,omitempty"`
	ReporterSignature         string     `json:"reporterSignature,omitempty"`
	EvidenceSignatureVerified bool       `json:"evidenceSignatureVerified"`
	SourceCoordinatorID       string     `json:"sourceCoordinatorId"`
	TimestampMs               int64      `json:"timestampMs"`
	ExpiresAtMs               *int64     `json:"expiresAtMs,omitempty"`
	PrevEventHash             string     `json:"prevEventHash"`
}

// ChainBytes returns the canonical bytes eventHash commits to.
func (r *Record) ChainBytes() ([]byte, error) {
	return json.Marshal(chainFields{
		EventID:                   r.EventID,
		AgentID:                   r.AgentID,
		ReasonCode:                r.ReasonCode,
		Reason:                    r.Reason,
		EvidenceHashSha256:        r.EvidenceHashSha256,
		ReporterID:                r.ReporterID,
		ReporterPublicKey:         r.ReporterPublicKey,
		ReporterSignature:         r.ReporterSignature,
		EvidenceSignatureVerified: r.EvidenceSignatureVerified,
		SourceCoordinatorID:       r.SourceCoordinatorID,
		TimestampMs:               r.TimestampMs,
		ExpiresAtMs:               r.ExpiresAtMs,
		PrevEventHash:             r.PrevEventHash,
	})
}

// Active reports whether the record is still in force at nowMs — unexpired
// records, or records with no expiry, are active.
func (r *Record) Active(nowMs int64) bool {
	return r.ExpiresAtMs == nil || nowMs <= *r.ExpiresAtMs
}
