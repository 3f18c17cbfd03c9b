package coordinator

import (
	"encoding/json"

	"gorm.io/gorm"

	"edgecoord/blacklist"
	"edgecoord/ledger"
	"edgecoord/storage"
)

// loadLedgerSeed replays the persisted ordering ledger into the in-memory
// Record slice ledger.New expects, so a restarted coordinator resumes its
// hash chain from the last committed record instead of a fresh genesis.
func loadLedgerSeed(db *gorm.DB) ([]ledger.Record, error) {
	var rows []storage.LedgerRecordRow
	if err := db.Order("sequence asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	seed := make([]ledger.Record, 0, len(rows))
	for _, row := range rows {
		seed = append(seed, ledger.Record{
			ID:               row.ID,
			EventType:        ledger.EventType(row.EventType),
			TaskID:           row.TaskID,
			SubtaskID:        row.SubtaskID,
			ActorID:          row.ActorID,
			Sequence:         row.Sequence,
			IssuedAtMs:       row.IssuedAtMs,
			PrevHash:         row.PrevHash,
			CoordinatorID:    row.CoordinatorID,
			CheckpointHeight: row.CheckpointHeight,
			CheckpointHash:   row.CheckpointHash,
			PayloadJSON:      json.RawMessage(row.PayloadJSON),
			Hash:             row.Hash,
			Signature:        row.Signature,
		})
	}
	return seed, nil
}

// loadBlacklistSeed replays the persisted blacklist chain the same way
// loadLedgerSeed does for the ordering ledger.
func loadBlacklistSeed(db *gorm.DB) ([]blacklist.Record, error) {
	var rows []storage.BlacklistEventRow
	if err := db.Order("timestamp_ms asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	seed := make([]blacklist.Record, 0, len(rows))
	for _, row := range rows {
		var expiresAt *int64
		if row.ExpiresAtMs != 0 {
			v := row.ExpiresAtMs
			expiresAt = &v
		}
		seed = append(seed, blacklist.Record{
			EventID:                   row.EventID,
			AgentID:                   row.AgentID,
			ReasonCode:                blacklist.ReasonCode(row.ReasonCode),
			Reason:                    row.Reason,
			EvidenceHashSha256:        row.EvidenceHashSha256,
			ReporterID:                row.ReporterID,
			ReporterPublicKey:         row.ReporterPublicKey,
			ReporterSignature:         row.ReporterSignature,
			EvidenceSignatureVerified: row.EvidenceSignatureVerified,
			SourceCoordinatorID:       row.SourceCoordinatorID,
			TimestampMs:               row.TimestampMs,
			ExpiresAtMs:               expiresAt,
			PrevEventHash:             row.PrevEventHash,
			EventHash:                 row.EventHash,
			CoordinatorSignature:      row.CoordinatorSignature,
		})
	}
	return seed, nil
}
