// Package backup snapshots the imported tables to disk, restores them, and
// rolls back a single import batch.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ManifestFile            = "manifest.json"
	SnapshotPrefix          = "backup_"
	DefaultRestoreChunkSize = 50
)

// ErrAborted is returned when a confirmation was refused.
var ErrAborted = errors.New("aborted by operator")

// SnapshotTables are captured by Snapshot, parents before children. Restore
// replays them in the same order.
var SnapshotTables = []string{
	models.TableLegalEntities,
	models.TableInwardReinsurance,
	models.TablePolicies,
	models.TableSlips,
	models.TableClaims,
	models.TableClaimTransactions,
}

// RollbackTables carry the batch tag. Children are deleted first.
var RollbackTables = []string{
	models.TableClaimTransactions,
	models.TableClaims,
	models.TableSlips,
	models.TablePolicies,
	models.TableInwardReinsurance,
	models.TableLegalEntities,
}

type Manager struct {
	store     store.Store
	logger    ectologger.Logger
	dir       string
	confirm   Confirmer
	now       func() time.Time
	chunkSize int
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithChunkSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

func NewManager(st store.Store, logger ectologger.Logger, dir string, confirm Confirmer, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		logger:    logger,
		dir:       dir,
		confirm:   confirm,
		now:       time.Now,
		chunkSize: DefaultRestoreChunkSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot writes every table to a new timestamped directory and returns its
// name. A table that cannot be read is recorded in the manifest with its
// error and does not stop the others.
func (m *Manager) Snapshot(ctx context.Context) (string, models.Manifest, error) {
	ctx, span := tracing.StartSpan(ctx, "Manager.Snapshot")
	defer span.End()

	timestamp := m.now().Format(models.ManifestTimestampLayout)
	name := SnapshotPrefix + timestamp
	path := filepath.Join(m.dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", models.Manifest{}, fmt.Errorf("failed to create backup directory %s: %w", path, err)
	}

	manifest := models.Manifest{Timestamp: timestamp, Tables: make(map[string]models.ManifestEntry)}

	for _, table := range SnapshotTables {
		rows, err := m.store.Select(ctx, table, store.All)
		if err == nil {
			err = writeJSON(filepath.Join(path, table+".json"), nonNil(rows))
		}
		if err != nil {
			m.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to back up table")
			manifest.Tables[table] = models.ManifestEntry{Count: 0, Error: err.Error()}
			continue
		}
		manifest.Tables[table] = models.ManifestEntry{Count: len(rows), File: table + ".json"}
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"table": table,
			"count": len(rows),
		}).Info("Backed up table")
	}

	if err := writeJSON(filepath.Join(path, ManifestFile), manifest); err != nil {
		return "", manifest, err
	}
	return name, manifest, nil
}

// List returns the snapshot names holding a manifest, newest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list backups in %s: %w", m.dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), SnapshotPrefix) {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.dir, e.Name(), ManifestFile)); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// ReadManifest loads a snapshot's manifest.
func (m *Manager) ReadManifest(name string) (models.Manifest, error) {
	var manifest models.Manifest
	path := filepath.Join(m.dir, name, ManifestFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return manifest, fmt.Errorf("backup not found: %s: %w", name, err)
	}
	if err := json.Unmarshal(b, &manifest); err != nil {
		return manifest, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return manifest, nil
}

// TableOutcome is the result of restoring or rolling back one table.
type TableOutcome struct {
	Table   string `json:"table"`
	Count   int    `json:"count"`
	Skipped string `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Restore replaces every table's rows with the snapshot's. It asks once
// before deleting anything. A table whose snapshot failed or whose file is
// missing is skipped; a table that fails to restore does not stop the
// others.
func (m *Manager) Restore(ctx context.Context, name string) ([]TableOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "Manager.Restore", attribute.String("backup", name))
	defer span.End()

	manifest, err := m.ReadManifest(name)
	if err != nil {
		return nil, err
	}

	ok, err := m.confirm.Confirm(ctx, fmt.Sprintf("Restore %s (taken %s)? This will DELETE all current data", name, manifest.Timestamp))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAborted
	}

	var outcomes []TableOutcome
	var failed int
	for _, table := range restoreOrder(manifest) {
		entry := manifest.Tables[table]
		outcome := TableOutcome{Table: table}

		switch {
		case entry.Failed():
			outcome.Skipped = "backup had error"
		case entry.File == "":
			outcome.Skipped = "no file"
		default:
			n, err := m.restoreTable(ctx, filepath.Join(m.dir, name, entry.File), table)
			switch {
			case errors.Is(err, os.ErrNotExist):
				outcome.Skipped = "file not found"
			case err != nil:
				failed++
				outcome.Error = err.Error()
				m.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to restore table")
			default:
				outcome.Count = n
				m.logger.WithContext(ctx).WithFields(map[string]any{"table": table, "count": n}).Info("Restored table")
			}
		}
		if outcome.Skipped != "" {
			m.logger.WithContext(ctx).WithField("table", table).Warnf("Skipping table: %s", outcome.Skipped)
		}
		outcomes = append(outcomes, outcome)
	}

	if failed > 0 {
		return outcomes, fmt.Errorf("%d table(s) failed to restore", failed)
	}
	return outcomes, nil
}

func (m *Manager) restoreTable(ctx context.Context, path, table string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var rows []store.Row
	if err := json.Unmarshal(b, &rows); err != nil {
		return 0, fmt.Errorf("invalid backup file %s: %w", path, err)
	}

	// The store refuses unfiltered deletes.
	if err := m.store.Delete(ctx, table, store.Neq(models.FieldID, store.NilUUID)); err != nil {
		return 0, err
	}

	for start := 0; start < len(rows); start += m.chunkSize {
		end := min(start+m.chunkSize, len(rows))
		if _, err := m.store.Insert(ctx, table, rows[start:end]); err != nil {
			return start, err
		}
	}
	return len(rows), nil
}

// Rollback deletes the rows of one import batch, asking before each table.
// A refused table is skipped; the others are still offered.
func (m *Manager) Rollback(ctx context.Context, batchID string) ([]TableOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "Manager.Rollback", attribute.String("batch_id", batchID))
	defer span.End()

	if strings.TrimSpace(batchID) == "" {
		return nil, errors.New("batch id is required")
	}
	filter := store.Eq(models.FieldImportBatchID, batchID)

	var outcomes []TableOutcome
	var failed int
	for _, table := range RollbackTables {
		outcome := TableOutcome{Table: table}

		count, err := m.store.Count(ctx, table, filter)
		if err != nil {
			failed++
			outcome.Error = err.Error()
			m.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to count batch rows")
			outcomes = append(outcomes, outcome)
			continue
		}
		if count == 0 {
			outcome.Skipped = "no rows"
			outcomes = append(outcomes, outcome)
			continue
		}

		ok, err := m.confirm.Confirm(ctx, fmt.Sprintf("Delete %d records from %s?", count, table))
		if err != nil {
			return outcomes, err
		}
		if !ok {
			outcome.Skipped = "not confirmed"
			outcomes = append(outcomes, outcome)
			continue
		}

		if err := m.store.Delete(ctx, table, filter); err != nil {
			failed++
			outcome.Error = err.Error()
			m.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to delete batch rows")
		} else {
			outcome.Count = count
			m.logger.WithContext(ctx).WithFields(map[string]any{
				"table":    table,
				"batch_id": batchID,
				"count":    count,
			}).Info("Rolled back table")
		}
		outcomes = append(outcomes, outcome)
	}

	if failed > 0 {
		return outcomes, fmt.Errorf("%d table(s) failed to roll back", failed)
	}
	return outcomes, nil
}

// restoreOrder lists the manifest's tables in snapshot order, then any
// unknown tables alphabetically.
func restoreOrder(manifest models.Manifest) []string {
	var order []string
	known := make(map[string]bool)
	for _, t := range SnapshotTables {
		known[t] = true
		if _, ok := manifest.Tables[t]; ok {
			order = append(order, t)
		}
	}
	var extra []string
	for t := range manifest.Tables {
		if !known[t] {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func nonNil(rows []store.Row) []store.Row {
	if rows == nil {
		return []store.Row{}
	}
	return rows
}
