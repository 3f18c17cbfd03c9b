package blacklist

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"edgecoord/coordinatorerr"
	"edgecoord/crypto"
)

func signedEvidence(t *testing.T, reporterKey *crypto.SigningKey, rec Record) Record {
	t.Helper()
	rec.ReporterPublicKey = reporterKey.PublicKeyHex()
	evidence, err := rec.EvidenceBytes()
	require.NoError(t, err)
	rec.ReporterSignature = hex.EncodeToString(reporterKey.Sign(evidence))
	return rec
}

func baseRecord() Record {
	return Record{
		EventID:            "evt-1",
		AgentID:            "agent-x",
		ReasonCode:         ReasonAbuseSpam,
		Reason:             "flood of malformed results",
		EvidenceHashSha256: "aa000000000000000000000000000000000000000000000000000000000000",
		ReporterID:         "coord-reporter",
		TimestampMs:        1000,
	}
}

func TestLocalAppendChainsGenesisAndHashLinks(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	chain := New("coord-1", signer, nil, "")

	first, err := chain.Local(NewInput{
		EventID: "e1", AgentID: "a1", ReasonCode: ReasonManualReview,
		Reason: "manual review", EvidenceHashSha256: "bb000000000000000000000000000000000000000000000000000000000000",
		TimestampMs: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, GenesisHash, first.PrevEventHash)

	second, err := chain.Local(NewInput{
		EventID: "e2", AgentID: "a2", ReasonCode: ReasonManualReview,
		Reason: "manual review", EvidenceHashSha256: "cc000000000000000000000000000000000000000000000000000000000000",
		TimestampMs: 2000,
	})
	require.NoError(t, err)
	require.Equal(t, first.EventHash, second.PrevEventHash)
}

func TestIsBlacklistedReflectsActiveRecords(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	chain := New("coord-1", signer, nil, "")

	expiry := int64(5000)
	_, err = chain.Local(NewInput{
		EventID: "e1", AgentID: "agent-x", ReasonCode: ReasonManualReview,
		Reason: "manual", EvidenceHashSha256: "dd000000000000000000000000000000000000000000000000000000000000",
		TimestampMs: 1000, ExpiresAtMs: &expiry,
	})
	require.NoError(t, err)

	require.True(t, chain.IsBlacklisted("agent-x", 4000))
	require.False(t, chain.IsBlacklisted("agent-x", 6000))
	require.False(t, chain.IsBlacklisted("agent-y", 4000))
}

func TestMergeAcceptsValidSignedEvidenceAndRejectsUnknownReason(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	reporterKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	chain := New("coord-1", signer, nil, "")

	rec := signedEvidence(t, reporterKey, baseRecord())
	canon, err := rec.ChainBytes()
	require.NoError(t, err)
	rec.EventHash = crypto.HashSHA256(canon)

	merged, err := chain.Merge(rec)
	require.NoError(t, err)
	require.True(t, chain.IsBlacklisted("agent-x", 2000))
	require.NotEmpty(t, merged.CoordinatorSignature)

	bad := rec
	bad.ReasonCode = "not_a_real_code"
	_, err = chain.Merge(bad)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeInvalidBlacklistPayload, taxErr.Code)
}

func TestMergeRequiresReporterSignatureExceptManualReview(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	chain := New("coord-1", signer, nil, "")

	rec := baseRecord()
	canon, err := rec.ChainBytes()
	require.NoError(t, err)
	rec.EventHash = crypto.HashSHA256(canon)

	_, err = chain.Merge(rec)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeReporterSignatureInvalidForReason, taxErr.Code)

	manual := rec
	manual.ReasonCode = ReasonManualReview
	canon, err = manual.ChainBytes()
	require.NoError(t, err)
	manual.EventHash = crypto.HashSHA256(canon)
	_, err = chain.Merge(manual)
	require.NoError(t, err)
}

func TestMergeRejectsMutatedReasonOnSameEventID(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	reporterKey, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	chain := New("coord-1", signer, nil, "")

	rec := signedEvidence(t, reporterKey, baseRecord())
	canon, err := rec.ChainBytes()
	require.NoError(t, err)
	rec.EventHash = crypto.HashSHA256(canon)
	_, err = chain.Merge(rec)
	require.NoError(t, err)

	mutated := baseRecord()
	mutated.Reason = "a completely different story"
	mutated = signedEvidence(t, reporterKey, mutated)
	canon, err = mutated.ChainBytes()
	require.NoError(t, err)
	mutated.EventHash = crypto.HashSHA256(canon)

	_, err = chain.Merge(mutated)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeInvalidBlacklistPayload, taxErr.Code)
}

func TestMergeRejectsBadEvidenceHashLength(t *testing.T) {
	signer, err := crypto.GenerateSigningKey()
	require.NoError(t, err)
	chain := New("coord-1", signer, nil, "")

	rec := baseRecord()
	rec.ReasonCode = ReasonManualReview
	rec.EvidenceHashSha256 = "tooshort"
	canon, err := rec.ChainBytes()
	require.NoError(t, err)
	rec.EventHash = crypto.HashSHA256(canon)

	_, err = chain.Merge(rec)
	require.Error(t, err)
	taxErr, ok := coordinatorerr.As(err)
	require.True(t, ok)
	require.Equal(t, coordinatorerr.CodeInvalidBlacklistPayload, taxErr.Code)
}
