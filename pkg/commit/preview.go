package commit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Preview artifact names.
const (
	RecordsPreviewFile  = "records_preview.json"
	EntitiesPreviewFile = "entities_preview.json"
	StatsFile           = "import_stats.json"
	ClaimsPreviewFile   = "claims_preview.json"

	DefaultPreviewRows = 100
	ClaimsPreviewRows  = 20
)

// PreviewStats are the would-be totals of a dry run.
type PreviewStats struct {
	BatchID       string         `json:"batch_id"`
	TotalRecords  int            `json:"total_records"`
	TotalEntities int            `json:"total_entities"`
	SheetStats    map[string]int `json:"sheet_stats"`
	TableCounts   map[string]int `json:"table_counts"`
	EntityTypes   map[string]int `json:"entity_types"`

	MatchStatistics *matching.Stats `json:"match_statistics,omitempty"`
}

type ClaimsPreview struct {
	Claims             []*models.Record    `json:"claims"`
	TransactionsSample []TransactionSample `json:"transactions_sample"`
	MatchStatistics    matching.Stats      `json:"match_statistics"`
}

type TransactionSample struct {
	ClaimIndex  int            `json:"claim_index"`
	Transaction *models.Record `json:"transaction"`
}

// PreviewWriter writes dry-run artifacts. It never touches the store.
type PreviewWriter struct {
	dir  string
	rows int
}

func NewPreviewWriter(dir string, rows int) *PreviewWriter {
	if rows <= 0 {
		rows = DefaultPreviewRows
	}
	return &PreviewWriter{dir: dir, rows: rows}
}

func (w *PreviewWriter) Dir() string {
	return w.dir
}

// WriteRecords writes the first rows records.
func (w *PreviewWriter) WriteRecords(records []*models.Record) (string, error) {
	return w.write(RecordsPreviewFile, records[:min(len(records), w.rows)])
}

// WriteEntities writes every new entity.
func (w *PreviewWriter) WriteEntities(list []models.LegalEntity) (string, error) {
	if list == nil {
		list = []models.LegalEntity{}
	}
	return w.write(EntitiesPreviewFile, list)
}

func (w *PreviewWriter) WriteStats(stats PreviewStats) (string, error) {
	return w.write(StatsFile, stats)
}

// WriteClaims writes a sample of linked claims and their transactions.
func (w *PreviewWriter) WriteClaims(claims []*models.Record, stats matching.Stats) (string, error) {
	preview := ClaimsPreview{
		Claims:             claims[:min(len(claims), ClaimsPreviewRows)],
		TransactionsSample: []TransactionSample{},
		MatchStatistics:    stats,
	}
	for i, c := range claims {
		for _, tx := range c.Dependents {
			if len(preview.TransactionsSample) >= ClaimsPreviewRows {
				break
			}
			preview.TransactionsSample = append(preview.TransactionsSample, TransactionSample{ClaimIndex: i, Transaction: tx})
		}
	}
	return w.write(ClaimsPreviewFile, preview)
}

func (w *PreviewWriter) write(name string, v any) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create preview directory %s: %w", w.dir, err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", name, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
