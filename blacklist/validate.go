package blacklist

import (
	"encoding/hex"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
)

const evidenceHashHexLen = 64 // sha256 hex digest length

// ValidateInbound runs the §4.6 checks applied to a blacklist record
// arriving from a peer before it is appended to the local chain: (a)
// reasonCode is a known enum value; (b) evidenceHashSha256 is 64 hex chars;
// (c) if a reporter key and signature are present, they verify over the
// canonical evidence struct — required for every reason code except
// manual_review; (d) eventHash matches the recomputed canonical hash.
func ValidateInbound(rec Record) error {
	if !ValidReasonCode(rec.ReasonCode) {
		return coordinatorerr.New(coordinatorerr.CodeInvalidBlacklistPayload, "unknown reasonCode: "+string(rec.ReasonCode))
	}

	if len(rec.EvidenceHashSha256) != evidenceHashHexLen {
		return coordinatorerr.New(coordinatorerr.CodeInvalidBlacklistPayload, "evidenceHashSha256 must be 64 hex characters")
	}
	if _, err := hex.DecodeString(rec.EvidenceHashSha256); err != nil {
		return coordinatorerr.New(coordinatorerr.CodeInvalidBlacklistPayload, "evidenceHashSha256 must be hex-encoded")
	}

	if rec.ReporterPublicKey != "" || rec.ReporterSignature != "" {
		evidence, err := rec.EvidenceBytes()
		if err != nil {
			return coordinatorerr.Newf(coordinatorerr.CodeInvalidBlacklistPayload, "canonicalise evidence: %v", err)
		}
		sig, err := hex.DecodeString(rec.ReporterSignature)
		if err != nil {
			return coordinatorerr.New(coordinatorerr.CodeReporterSignatureInvalidForReason, "malformed reporter signature encoding")
		}
		if err := crypto.VerifySignature(rec.ReporterPublicKey, evidence, sig); err != nil {
			return coordinatorerr.New(coordinatorerr.CodeReporterSignatureInvalidForReason, err.Error())
		}
	} else if rec.ReasonCode != ReasonManualReview {
		return coordinatorerr.New(coordinatorerr.CodeReporterSignatureInvalidForReason, "reporter signature required for reasonCode "+string(rec.ReasonCode))
	}

	canon, err := rec.ChainBytes()
	if err != nil {
		return coordinatorerr.Newf(coordinatorerr.CodeInvalidBlacklistPayload, "canonicalise record: %v", err)
	}
	if crypto.HashSHA256(canon) != rec.EventHash {
		return coordinatorerr.New(coordinatorerr.CodeInvalidBlacklistPayload, "eventHash does not match recomputed hash")
	}

	return nil
}
