package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/backup"
	"github.com/Ramsey-B/fern/pkg/commit"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/importer"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/workbook"
	"go.opentelemetry.io/otel/attribute"
)

type Mode string

const (
	ModeBackup      Mode = "backup"
	ModeDryRun      Mode = "dry-run"
	ModeImport      Mode = "import"
	ModeRollback    Mode = "rollback"
	ModeListBackups Mode = "list-backups"
	ModeRestore     Mode = "restore"
)

// Options are the command-line choices of one run.
type Options struct {
	Mode Mode
	// File and Password override EXCEL_FILE and EXCEL_PASSWORD.
	File     string
	Password string
	// ClaimsFile overrides CLAIMS_FILE.
	ClaimsFile string
	// Only restricts dry-run and import to these sheet kinds.
	Only []string
	// BatchID is the batch to roll back.
	BatchID string
	// Backup is the snapshot to restore.
	Backup string
	// Yes answers every confirmation affirmatively.
	Yes        bool
	SkipBackup bool
}

// Run executes one mode. The store is only brought up for modes that need
// it.
func (a *App) Run(ctx context.Context, opts Options) error {
	ctx, span := tracing.StartSpan(ctx, "App.Run", attribute.String("mode", string(opts.Mode)))
	defer span.End()
	defer a.writeMetrics(ctx)

	if opts.Mode != ModeListBackups {
		if err := a.Start(ctx); err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}

	var err error
	switch opts.Mode {
	case ModeBackup:
		err = a.backup(ctx)
	case ModeDryRun, ModeImport:
		err = a.runImport(ctx, opts)
	case ModeRollback:
		err = a.rollback(ctx, opts)
	case ModeListBackups:
		err = a.listBackups()
	case ModeRestore:
		err = a.restore(ctx, opts)
	default:
		err = fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if err != nil {
		tracing.RecordError(span, err)
	}
	return err
}

func (a *App) confirmer(opts Options) backup.Confirmer {
	if opts.Yes {
		return backup.StaticConfirmer(true)
	}
	return backup.NewPromptConfirmer(a.in, a.out)
}

func (a *App) backups(confirm backup.Confirmer) *backup.Manager {
	return backup.NewManager(a.store, a.logger, a.cfg.BackupDir, confirm, backup.WithChunkSize(a.cfg.ChunkSize))
}

func (a *App) engine() *commit.Engine {
	return commit.NewEngine(a.store, a.logger, commit.Config{
		ChunkSize:     a.cfg.ChunkSize,
		RetryAttempts: a.cfg.ConnectivityRetryAttempts,
		RetryUnit:     a.cfg.ConnectivityRetryUnit,
	})
}

func (a *App) runImport(ctx context.Context, opts Options) error {
	only, err := schema.ParseKinds(opts.Only)
	if err != nil {
		return err
	}

	path := firstNonEmpty(opts.File, a.cfg.ExcelFile)
	if path == "" {
		return errors.New("no workbook given: set EXCEL_FILE or pass --file")
	}
	wb, err := a.open(path, firstNonEmpty(opts.Password, a.cfg.ExcelPassword))
	if err != nil {
		return err
	}
	defer wb.Close()

	var claimsWb workbook.Workbook
	if claimsPath := firstNonEmpty(opts.ClaimsFile, a.cfg.ClaimsFile); claimsPath != "" {
		claimsWb, err = a.open(claimsPath, "")
		if err != nil {
			return err
		}
		defer claimsWb.Close()
	}

	confirm := a.confirmer(opts)
	imp := importer.NewImporter(importer.Dependencies{
		Store:     a.store,
		Engine:    a.engine(),
		Backups:   a.backups(confirm),
		Preview:   commit.NewPreviewWriter(a.cfg.PreviewDir, a.cfg.PreviewRows),
		Confirm:   confirm,
		Publisher: a.publisher,
		Logger:    a.logger,
	}, importer.WithKeywords(a.tables), importer.WithDefaultCurrency(a.cfg.DefaultCurrency))

	summary, err := imp.Run(ctx, wb, claimsWb, importer.RunOptions{
		DryRun:     opts.Mode == ModeDryRun,
		Only:       only,
		SkipBackup: opts.SkipBackup,
	})
	if summary != nil {
		summary.Write(a.out, a.cfg.ErrorReportLimit)
	}
	return err
}

func (a *App) backup(ctx context.Context) error {
	name, manifest, err := a.backups(backup.StaticConfirmer(true)).Snapshot(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Backup created: %s\n", name)
	total := 0
	failed := 0
	for _, table := range backup.SnapshotTables {
		entry, ok := manifest.Tables[table]
		if !ok {
			continue
		}
		if entry.Failed() {
			failed++
			fmt.Fprintf(a.out, "  %-22s error: %s\n", table, entry.Error)
			continue
		}
		total += entry.Count
		fmt.Fprintf(a.out, "  %-22s %d\n", table, entry.Count)
	}

	a.publish(ctx, events.Event{Type: events.TypeBackupCompleted, Payload: map[string]any{
		"backup":        name,
		"total_records": total,
		"failed_tables": failed,
	}})
	return nil
}

func (a *App) rollback(ctx context.Context, opts Options) error {
	outcomes, err := a.backups(a.confirmer(opts)).Rollback(ctx, opts.BatchID)
	a.writeOutcomes(fmt.Sprintf("Rollback of batch %s", opts.BatchID), outcomes)
	if len(outcomes) > 0 {
		a.publish(ctx, events.Event{Type: events.TypeRollbackCompleted, BatchID: opts.BatchID, Payload: outcomes})
	}
	return err
}

func (a *App) restore(ctx context.Context, opts Options) error {
	if opts.Backup == "" {
		return errors.New("a backup name is required")
	}
	outcomes, err := a.backups(a.confirmer(opts)).Restore(ctx, opts.Backup)
	if errors.Is(err, backup.ErrAborted) {
		fmt.Fprintln(a.out, "Restore cancelled. Nothing was changed.")
		return nil
	}
	a.writeOutcomes(fmt.Sprintf("Restore of %s", opts.Backup), outcomes)
	if len(outcomes) > 0 {
		a.publish(ctx, events.Event{Type: events.TypeRestoreCompleted, Payload: map[string]any{
			"backup": opts.Backup,
			"tables": outcomes,
		}})
	}
	return err
}

func (a *App) listBackups() error {
	mgr := backup.NewManager(nil, a.logger, a.cfg.BackupDir, backup.StaticConfirmer(false))
	names, err := mgr.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(a.out, "No backups found in %s\n", a.cfg.BackupDir)
		return nil
	}

	fmt.Fprintf(a.out, "Backups in %s:\n", a.cfg.BackupDir)
	for _, name := range names {
		manifest, err := mgr.ReadManifest(name)
		if err != nil {
			fmt.Fprintf(a.out, "  %s (unreadable manifest)\n", name)
			continue
		}
		total := 0
		for _, entry := range manifest.Tables {
			total += entry.Count
		}
		fmt.Fprintf(a.out, "  %s  %s  %d records\n", name, formatTimestamp(manifest.Timestamp), total)
	}
	return nil
}

func (a *App) writeOutcomes(title string, outcomes []backup.TableOutcome) {
	fmt.Fprintln(a.out, title)
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			fmt.Fprintf(a.out, "  %-22s error: %s\n", o.Table, o.Error)
		case o.Skipped != "":
			fmt.Fprintf(a.out, "  %-22s skipped (%s)\n", o.Table, o.Skipped)
		default:
			fmt.Fprintf(a.out, "  %-22s %d\n", o.Table, o.Count)
		}
	}
}

func (a *App) publish(ctx context.Context, event events.Event) {
	if a.publisher == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.WithContext(ctx).WithError(err).WithField("event_type", event.Type).Warn("Failed to publish event")
	}
}

func (a *App) writeMetrics(ctx context.Context) {
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("Failed to write metrics")
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(models.ManifestTimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format(time.DateTime)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
