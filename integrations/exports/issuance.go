// Package exports writes finalized coordinator state to columnar files for
// offline analytics, grounded on the teacher's services/otc-gateway/recon
// package, which writes its nightly reconciliation rows to parquet with the
// same writerfile+writer.NewParquetWriter shape used here.
package exports

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"edgecoord/economy/issuance"
)

// issuanceAllocationRow is one allocation row inside a finalized issuance
// epoch (§4.8 step 5), flattened for columnar storage.
type issuanceAllocationRow struct {
	IssuanceEpochID           string  `parquet:"name=issuance_epoch_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	WindowStartMs             int64   `parquet:"name=window_start_ms, type=INT64"`
	WindowEndMs               int64   `parquet:"name=window_end_ms, type=INT64"`
	LoadIndex                 float64 `parquet:"name=load_index, type=DOUBLE"`
	DailyPoolTokens           float64 `parquet:"name=daily_pool_tokens, type=DOUBLE"`
	HourlyTokens              float64 `parquet:"name=hourly_tokens, type=DOUBLE"`
	TotalWeightedContribution float64 `parquet:"name=total_weighted_contribution, type=DOUBLE"`
	AccountID                 string  `parquet:"name=account_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	WeightedContribution      float64 `parquet:"name=weighted_contribution, type=DOUBLE"`
	AllocationShare           float64 `parquet:"name=allocation_share, type=DOUBLE"`
	IssuedTokens              float64 `parquet:"name=issued_tokens, type=DOUBLE"`
}

// WriteEpoch writes every allocation in a finalized issuance epoch as one
// parquet row per account to dir/<epochID>.parquet, using SNAPPY compression
// to match the teacher's reconciliation export. Called from the
// coordinator's anchor tick once an epoch clears quorum (§4.8, §9 Anchor),
// so analysts can query issuance history without replaying the ledger.
func WriteEpoch(dir string, epoch issuance.Epoch) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("exports: create issuance export dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, epoch.IssuanceEpochID+".parquet")

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("exports: create issuance parquet file: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(issuanceAllocationRow), 1)
	if err != nil {
		file.Close()
		return "", fmt.Errorf("exports: issuance parquet schema: %w", err)
	}
	pw.RowGroupSize = 16 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := epoch.Allocations
	if len(rows) == 0 {
		// A finalized epoch with no contributors still gets a marker row so
		// the export file always reflects that the epoch was anchored.
		rows = []issuance.Allocation{{}}
	}
	for _, alloc := range rows {
		row := &issuanceAllocationRow{
			IssuanceEpochID:           epoch.IssuanceEpochID,
			WindowStartMs:             epoch.WindowStartMs,
			WindowEndMs:               epoch.WindowEndMs,
			LoadIndex:                 epoch.LoadIndex,
			DailyPoolTokens:           epoch.DailyPoolTokens,
			HourlyTokens:              epoch.HourlyTokens,
			TotalWeightedContribution: epoch.TotalWeightedContribution,
			AccountID:                 alloc.AccountID,
			WeightedContribution:      alloc.WeightedContribution,
			AllocationShare:           alloc.AllocationShare,
			IssuedTokens:              alloc.IssuedTokens,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return "", fmt.Errorf("exports: issuance parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return "", fmt.Errorf("exports: issuance parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("exports: close issuance parquet file: %w", err)
	}
	return path, nil
}
