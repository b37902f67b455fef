// Package importer runs the spreadsheet import pipeline: sheets are routed
// to schemas, normalized, resolved and either previewed or committed to the
// record store under one batch id.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/backup"
	"github.com/Ramsey-B/fern/pkg/commit"
	"github.com/Ramsey-B/fern/pkg/derived"
	"github.com/Ramsey-B/fern/pkg/entities"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/keywords"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalizers"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/workbook"
	"go.opentelemetry.io/otel/attribute"
)

// ConfirmImportPrompt gates every live run.
const ConfirmImportPrompt = "Proceed with import?"

// commitOrder lists the primary tables in the order they are written.
// Claims follow once the lookup maps can see this run's parents.
var commitOrder = []string{
	models.TableInwardReinsurance,
	models.TablePolicies,
	models.TableSlips,
}

// RunOptions selects what a run does.
type RunOptions struct {
	// DryRun writes preview artifacts and never touches the store.
	DryRun bool
	// Only restricts the run to the given sheet kinds. Empty means all.
	Only []schema.Kind
	// SkipBackup disables the snapshot taken before a live run.
	SkipBackup bool
}

func (o RunOptions) wants(kind schema.Kind) bool {
	return len(o.Only) == 0 || ectolinq.Contains(o.Only, kind)
}

// Dependencies are the collaborators of an Importer.
type Dependencies struct {
	Store     store.Store
	Engine    *commit.Engine
	Backups   *backup.Manager
	Preview   *commit.PreviewWriter
	Confirm   backup.Confirmer
	Publisher events.Publisher
	Logger    ectologger.Logger
}

type Option func(*Importer)

func WithCatalog(c *schema.Catalog) Option {
	return func(imp *Importer) {
		imp.catalog = c
	}
}

func WithKeywords(t keywords.Tables) Option {
	return func(imp *Importer) {
		imp.tables = t
	}
}

func WithDefaultCurrency(currency string) Option {
	return func(imp *Importer) {
		imp.defaultCurrency = currency
	}
}

func WithClock(now func() time.Time) Option {
	return func(imp *Importer) {
		imp.now = now
	}
}

type Importer struct {
	Dependencies

	catalog         *schema.Catalog
	tables          keywords.Tables
	defaultCurrency string
	now             func() time.Time

	normalizer *normalizers.Normalizer
	resolver   *derived.Resolver
	extractor  *entities.Extractor
}

func NewImporter(deps Dependencies, opts ...Option) *Importer {
	imp := &Importer{
		Dependencies:    deps,
		catalog:         schema.DefaultCatalog(),
		tables:          keywords.Defaults(),
		defaultCurrency: derived.DefaultCurrency,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(imp)
	}
	if imp.Publisher == nil {
		imp.Publisher = events.Noop{}
	}

	imp.normalizer = normalizers.New()
	imp.resolver = derived.New(imp.tables, derived.WithClock(imp.now), derived.WithDefaultCurrency(imp.defaultCurrency))
	imp.extractor = entities.NewExtractor(imp.tables, nil)
	return imp
}

// parsed holds the resolved records of a run, grouped by table in sheet
// order.
type parsed struct {
	tables map[string][]*models.Record
	claims []*models.Record
	sheets []SheetStats
}

func (p *parsed) all() []*models.Record {
	var out []*models.Record
	for _, table := range commitOrder {
		out = append(out, p.tables[table]...)
	}
	return append(out, p.claims...)
}

// Run imports wb and, when given, the separate claims workbook. Setup and
// source errors are returned before the store is touched. In a live run a
// fatal store error stops the run and is returned with the partial summary.
func (imp *Importer) Run(ctx context.Context, wb, claimsWb workbook.Workbook, opts RunOptions) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "Importer.Run", attribute.Bool("dry_run", opts.DryRun))
	defer span.End()

	started := imp.now()
	batch := models.NewImportBatch(started)
	mode := "import"
	if opts.DryRun {
		mode = "dry_run"
	}
	defer func() {
		metrics.RunDuration.WithLabelValues(mode).Observe(imp.now().Sub(started).Seconds())
	}()

	logger := imp.Logger.WithContext(ctx).WithField("batch_id", batch.ID)
	logger.WithField("mode", mode).Info("Starting import run")

	summary := &Summary{BatchID: batch.ID, DryRun: opts.DryRun, Batch: batch}

	p, err := imp.parse(ctx, wb, claimsWb, opts, batch.ID)
	if err != nil {
		return summary, err
	}
	summary.Sheets = p.sheets

	candidates := imp.extractor.Extract(p.all(), batch.ID)
	newEntities, err := entities.FilterExisting(ctx, imp.Store, candidates)
	if err != nil {
		logger.WithError(err).Warn("Could not read existing entities, keeping every candidate")
	}
	summary.EntityCandidates = len(candidates)
	summary.Entities = newEntities

	if opts.DryRun {
		return summary, imp.preview(ctx, p, summary)
	}
	return summary, imp.commit(ctx, p, summary, opts)
}

func (imp *Importer) parse(ctx context.Context, wb, claimsWb workbook.Workbook, opts RunOptions, batchID string) (*parsed, error) {
	p := &parsed{tables: make(map[string][]*models.Record)}

	add := func(s *schema.Schema, records []*models.Record) {
		if s.Kind() == schema.KindClaims {
			p.claims = append(p.claims, records...)
			return
		}
		p.tables[s.Table()] = append(p.tables[s.Table()], records...)
	}

	if wb == nil {
		return nil, fmt.Errorf("no workbook to import")
	}
	for _, sheet := range wb.SheetNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := imp.catalog.Route(sheet)
		if records, ok := imp.parseSheet(ctx, wb, sheet, s, opts, batchID, p); ok {
			add(s, records)
		}
	}

	if claimsWb != nil {
		s, ok := imp.catalog.Get(schema.KindClaims)
		if !ok {
			return nil, fmt.Errorf("catalog has no claims schema")
		}
		for _, sheet := range claimsWb.SheetNames() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if records, ok := imp.parseSheet(ctx, claimsWb, sheet, s, opts, batchID, p); ok {
				add(s, records)
			}
		}
	}

	return p, nil
}

// parseSheet reads one sheet and records its stats. A sheet that fails to
// read contributes nothing and does not stop the run.
func (imp *Importer) parseSheet(ctx context.Context, wb workbook.Workbook, sheet string, s *schema.Schema, opts RunOptions, batchID string, p *parsed) ([]*models.Record, bool) {
	logger := imp.Logger.WithContext(ctx).WithField("sheet", sheet)

	if imp.tables.IsSkippedSheet(sheet) {
		logger.Debug("Skipping sheet")
		return nil, false
	}
	if !opts.wants(s.Kind()) {
		logger.WithField("kind", s.Kind()).Debug("Sheet kind not selected")
		return nil, false
	}

	records, stats, err := imp.readSheet(ctx, wb, sheet, s, batchID)
	if err != nil {
		logger.WithError(err).Error("Failed to process sheet")
		stats.Parsed, stats.Skipped, stats.Warnings = 0, 0, 0
		stats.Error = err.Error()
		p.sheets = append(p.sheets, stats)
		return nil, false
	}

	logger.WithFields(map[string]any{
		"kind":     s.Kind(),
		"parsed":   stats.Parsed,
		"skipped":  stats.Skipped,
		"warnings": stats.Warnings,
	}).Info("Processed sheet")
	p.sheets = append(p.sheets, stats)
	return records, true
}

func (imp *Importer) preview(ctx context.Context, p *parsed, summary *Summary) error {
	logger := imp.Logger.WithContext(ctx).WithField("batch_id", summary.BatchID)

	if len(p.claims) > 0 {
		stats := imp.link(ctx, p.claims)
		summary.Matching = &stats
	}

	records := p.all()
	stats := commit.PreviewStats{
		BatchID:         summary.BatchID,
		TotalRecords:    len(records),
		TotalEntities:   len(summary.Entities),
		SheetStats:      make(map[string]int, len(p.sheets)),
		TableCounts:     make(map[string]int),
		EntityTypes:     entities.TypeCounts(summary.Entities),
		MatchStatistics: summary.Matching,
	}
	for _, s := range p.sheets {
		stats.SheetStats[s.Sheet] = s.Parsed
	}
	for _, rec := range records {
		stats.TableCounts[rec.Table]++
		metrics.RecordsTotal.WithLabelValues(rec.Table, "previewed").Inc()
	}
	stats.TableCounts[models.TableLegalEntities] = len(summary.Entities)

	writes := []func() (string, error){
		func() (string, error) { return imp.Preview.WriteRecords(records) },
		func() (string, error) { return imp.Preview.WriteEntities(summary.Entities) },
		func() (string, error) { return imp.Preview.WriteStats(stats) },
	}
	if len(p.claims) > 0 {
		writes = append(writes, func() (string, error) { return imp.Preview.WriteClaims(p.claims, *summary.Matching) })
	}
	for _, write := range writes {
		path, err := write()
		if err != nil {
			return err
		}
		summary.PreviewFiles = append(summary.PreviewFiles, path)
	}

	summary.TableCounts = stats.TableCounts
	summary.Batch.TableCounts = stats.TableCounts
	summary.Batch.Status = models.BatchStatusPreviewed

	logger.WithFields(map[string]any{
		"records":  stats.TotalRecords,
		"entities": stats.TotalEntities,
		"dir":      imp.Preview.Dir(),
	}).Info("Dry run complete, nothing was written to the store")

	imp.publish(ctx, events.Event{Type: events.TypePreviewCompleted, BatchID: summary.BatchID, Payload: stats})
	return nil
}

func (imp *Importer) commit(ctx context.Context, p *parsed, summary *Summary, opts RunOptions) error {
	logger := imp.Logger.WithContext(ctx).WithField("batch_id", summary.BatchID)

	if !opts.SkipBackup {
		name, _, err := imp.Backups.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to back up before import: %w", err)
		}
		summary.Backup = name
		logger.WithField("backup", name).Info("Backup complete")
	}

	ok, err := imp.Confirm.Confirm(ctx, ConfirmImportPrompt)
	if err != nil {
		return fmt.Errorf("failed to confirm import: %w", err)
	}
	if !ok {
		summary.Aborted = true
		summary.Batch.Status = models.BatchStatusFailed
		logger.Warn("Import cancelled, nothing was written")
		return nil
	}

	records := ectolinq.Map(summary.Entities, func(e models.LegalEntity) *models.Record { return e.Record() })
	for _, e := range summary.Entities {
		metrics.EntitiesTotal.WithLabelValues(string(e.Type)).Inc()
	}
	if err := imp.commitTable(ctx, summary, models.TableLegalEntities, records); err != nil {
		return err
	}

	for _, table := range commitOrder {
		if err := imp.commitTable(ctx, summary, table, p.tables[table]); err != nil {
			return err
		}
	}

	if len(p.claims) > 0 {
		stats := imp.link(ctx, p.claims)
		summary.Matching = &stats
		if err := imp.commitTable(ctx, summary, models.TableClaims, p.claims); err != nil {
			return err
		}
	}

	summary.Batch.Status = models.BatchStatusCompleted
	if summary.Result.Failed() > 0 {
		summary.Batch.Status = models.BatchStatusPartial
	}

	logger.WithFields(map[string]any{
		"inserted": summary.Result.Inserted(),
		"failed":   summary.Result.Failed(),
	}).Info("Import complete")

	imp.publish(ctx, events.Event{Type: events.TypeImportCompleted, BatchID: summary.BatchID, Payload: summary.eventPayload()})
	return nil
}

// commitTable writes one table and folds its result into the summary. A
// fatal store error ends the run.
func (imp *Importer) commitTable(ctx context.Context, summary *Summary, table string, records []*models.Record) error {
	if len(records) == 0 {
		return nil
	}

	res, err := imp.Engine.Commit(ctx, table, records)
	summary.Result.Merge(res)
	for _, tr := range res.Tables {
		summary.Batch.TableCounts[tr.Table] += tr.Inserted
	}
	summary.TableCounts = summary.Batch.TableCounts

	for _, tr := range res.Tables {
		imp.publish(ctx, events.Event{Type: events.TypeTableCommitted, BatchID: summary.BatchID, Payload: tr})
	}

	if err != nil {
		summary.Batch.Status = models.BatchStatusFailed
		return err
	}
	return nil
}

// link matches claims against the parents currently in the store. In a live
// run this includes the parents committed earlier in the same run.
func (imp *Importer) link(ctx context.Context, claims []*models.Record) matching.Stats {
	maps, errs := matching.BuildLookupMaps(ctx, imp.Store)
	for _, err := range errs {
		imp.Logger.WithContext(ctx).WithError(err).Warn("Lookup map incomplete, affected claims stay unmatched")
	}

	matcher := matching.NewMatcher(maps, matching.WithClock(imp.now), matching.WithDefaultCurrency(imp.defaultCurrency))
	for _, claim := range claims {
		matcher.Link(claim)
	}

	stats := matcher.Stats()
	metrics.ClaimsMatchedTotal.WithLabelValues("policy").Add(float64(stats.MatchedPolicy))
	metrics.ClaimsMatchedTotal.WithLabelValues("inward").Add(float64(stats.MatchedInward))
	metrics.ClaimsMatchedTotal.WithLabelValues("unmatched").Add(float64(stats.Unmatched))

	imp.Logger.WithContext(ctx).WithFields(map[string]any{
		"total":          stats.Total,
		"matched_policy": stats.MatchedPolicy,
		"matched_inward": stats.MatchedInward,
		"unmatched":      stats.Unmatched,
	}).Info("Matched claims to parents")
	return stats
}

func (imp *Importer) publish(ctx context.Context, event events.Event) {
	if event.Time.IsZero() {
		event.Time = imp.now().UTC()
	}
	if err := imp.Publisher.Publish(ctx, event); err != nil {
		imp.Logger.WithContext(ctx).WithError(err).WithField("event_type", event.Type).Warn("Failed to publish event")
	}
}
