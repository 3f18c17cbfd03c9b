package ledger

import (
	"encoding/hex"

	"edgecoord/crypto"
)

// VerifyFailureReason names the first offending record a Verify call found,
// matching the §4.2 contract: genesis_mismatch, prev_hash_mismatch,
// hash_mismatch, or signature_invalid.
type VerifyFailureReason string

const (
	ReasonGenesisMismatch  VerifyFailureReason = "genesis_mismatch"
	ReasonPrevHashMismatch VerifyFailureReason = "prev_hash_mismatch"
	ReasonHashMismatch     VerifyFailureReason = "hash_mismatch"
	ReasonSignatureInvalid VerifyFailureReason = "signature_invalid"
)

// VerifyResult is the outcome of walking a chain.
type VerifyResult struct {
	OK             bool
	Reason         VerifyFailureReason
	OffendingIndex int
}

// Verify walks chain and checks (a) the first record's PrevHash is the
// genesis sentinel, (b) each record's PrevHash equals its predecessor's
// Hash, (c) each Hash matches the recomputed canonical hash, and (d) each
// Signature verifies under publicKeyHex. It returns on the first failure.
func Verify(chain []Record, publicKeyHex string) VerifyResult {
	for i, rec := range chain {
		if i == 0 {
			if rec.PrevHash != GenesisHash {
				return VerifyResult{OK: false, Reason: ReasonGenesisMismatch, OffendingIndex: i}
			}
		} else if rec.PrevHash != chain[i-1].Hash {
			return VerifyResult{OK: false, Reason: ReasonPrevHashMismatch, OffendingIndex: i}
		}

		canon, err := rec.canonicalBytes()
		if err != nil {
			return VerifyResult{OK: false, Reason: ReasonHashMismatch, OffendingIndex: i}
		}
		if crypto.HashSHA256(canon) != rec.Hash {
			return VerifyResult{OK: false, Reason: ReasonHashMismatch, OffendingIndex: i}
		}

		sigBytes, err := hex.DecodeString(rec.Signature)
		if err != nil {
			return VerifyResult{OK: false, Reason: ReasonSignatureInvalid, OffendingIndex: i}
		}
		if err := crypto.VerifySignature(publicKeyHex, []byte(rec.Hash), sigBytes); err != nil {
			return VerifyResult{OK: false, Reason: ReasonSignatureInvalid, OffendingIndex: i}
		}
	}
	return VerifyResult{OK: true}
}
