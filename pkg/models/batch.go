package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchIDLength is the length of the short batch token.
const BatchIDLength = 8

// ImportBatch identifies one import run. Every record and entity created by
// the run carries its ID.
type ImportBatch struct {
	ID          string         `json:"batch_id"`
	StartedAt   time.Time      `json:"started_at"`
	TableCounts map[string]int `json:"table_counts"`
	Status      BatchStatus    `json:"status"`
}

// NewBatchID returns a short unique token for a run.
func NewBatchID() string {
	return uuid.NewString()[:BatchIDLength]
}

// NewImportBatch starts a batch at now.
func NewImportBatch(now time.Time) *ImportBatch {
	return &ImportBatch{
		ID:          NewBatchID(),
		StartedAt:   now,
		TableCounts: make(map[string]int),
		Status:      BatchStatusRunning,
	}
}
