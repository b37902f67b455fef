package importer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/backup"
	"github.com/Ramsey-B/fern/pkg/commit"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/workbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) types() []events.Type {
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func row(width int, cells map[int]any) []any {
	out := make([]any, width)
	for i, v := range cells {
		out[i] = v
	}
	return out
}

func portfolio() *workbook.Memory {
	return workbook.NewMemory().
		AddSheet("2024", [][]any{
			{"Portfolio 2024"},
			row(50, map[int]any{1: "Insured", 5: "Cedant", 7: "Contract No"}),
			row(50, map[int]any{1: "Acme Factory", 4: "Marsh Broker", 5: "Kapital Insurance", 7: "C-1", 16: "Uzbekistan", 19: "UZS", 25: 45658.0}),
			{},
			row(50, map[int]any{5: "Kapital   Insurance", 7: "C-2", 19: "USD"}),
		}).
		AddSheet("Summary", [][]any{{"Total", 2}}).
		AddSheet("Outward RE Slips", [][]any{
			{"Slip No", "Date", "Insured", "Reinsurer", "Limit", "Limit UZS", "Currency"},
			{"S-1", nil, "Acme Factory", "Re Broker", 1000.0, 0.0, "USD"},
		})
}

func claimsBook() *workbook.Memory {
	return workbook.NewMemory().AddSheet("Claims", [][]any{
		{"Claims register"},
		{"Source", "Loss date"},
		row(47, map[int]any{0: "Foreign inward", 3: "CLM-1", 13: "c-1 ", 14: "usd", 33: 500.0, 40: 100.0}),
		row(47, map[int]any{0: "Direct", 3: "CLM-2", 13: "P-404"}),
	})
}

type fixture struct {
	store     *store.Memory
	publisher *recordingPublisher
	importer  *Importer
	previews  string
	backups   string
}

func newFixture(t *testing.T, confirm bool) *fixture {
	t.Helper()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	clock := func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }

	f := &fixture{
		store:     store.NewMemory(),
		publisher: &recordingPublisher{},
		previews:  t.TempDir(),
		backups:   t.TempDir(),
	}
	f.importer = NewImporter(Dependencies{
		Store:     f.store,
		Engine:    commit.NewEngine(f.store, logger, commit.DefaultConfig()),
		Backups:   backup.NewManager(f.store, logger, f.backups, backup.StaticConfirmer(confirm), backup.WithClock(clock)),
		Preview:   commit.NewPreviewWriter(f.previews, 0),
		Confirm:   backup.StaticConfirmer(confirm),
		Publisher: f.publisher,
		Logger:    logger,
	}, WithClock(clock))
	return f
}

func TestRunLive(t *testing.T) {
	f := newFixture(t, true)
	f.store.Seed(models.TableLegalEntities, store.Row{"fullName": "Marsh Broker", "type": "Broker"})

	summary, err := f.importer.Run(context.Background(), portfolio(), claimsBook(), RunOptions{})
	require.NoError(t, err)
	require.False(t, summary.Aborted)

	require.Len(t, summary.Sheets, 3)
	assert.Equal(t, SheetStats{Sheet: "2024", Kind: schema.KindInward, Parsed: 2, Skipped: 1, Warnings: summary.Sheets[0].Warnings}, summary.Sheets[0])
	assert.Equal(t, 1, summary.Sheets[1].Parsed)
	assert.Equal(t, schema.KindSlips, summary.Sheets[1].Kind)
	assert.Equal(t, 2, summary.Sheets[2].Parsed)

	names := make([]string, 0)
	for _, e := range summary.Entities {
		names = append(names, e.FullName)
	}
	assert.ElementsMatch(t, []string{"Kapital Insurance", "Acme Factory", "Re Broker"}, names)
	assert.Len(t, f.store.Rows(models.TableLegalEntities), 4)

	inward := f.store.Rows(models.TableInwardReinsurance)
	require.Len(t, inward, 2)
	var c1 string
	for _, r := range inward {
		assert.Equal(t, summary.BatchID, r[models.FieldImportBatchID])
		if r["contract_number"] == "C-1" {
			c1 = r["id"].(string)
			assert.Equal(t, models.OriginDomestic, r["origin"])
			assert.Equal(t, "Excel:2024:Row3", r[models.FieldImportSource])
		}
	}
	require.NotEmpty(t, c1)
	assert.Len(t, f.store.Rows(models.TableSlips), 1)

	claims := f.store.Rows(models.TableClaims)
	require.Len(t, claims, 2)
	var clm1 string
	for _, c := range claims {
		switch c["claim_number"] {
		case "CLM-1":
			clm1 = c["id"].(string)
			assert.Equal(t, c1, c["inward_reinsurance_id"])
			assert.Nil(t, c["policy_id"])
		case "CLM-2":
			assert.Nil(t, c["inward_reinsurance_id"])
			assert.Nil(t, c["policy_id"])
			assert.Equal(t, "P-404", c["contract_number"])
		}
	}

	txs := f.store.Rows(models.TableClaimTransactions)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, clm1, tx["claim_id"])
		assert.Equal(t, summary.BatchID, tx[models.FieldImportBatchID])
	}

	require.NotNil(t, summary.Matching)
	assert.Equal(t, 1, summary.Matching.MatchedInward)
	assert.Equal(t, 1, summary.Matching.Unmatched)

	assert.NotEmpty(t, summary.Backup)
	assert.Equal(t, models.BatchStatusCompleted, summary.Batch.Status)
	assert.Equal(t, 2, summary.TableCounts[models.TableClaimTransactions])
	assert.Contains(t, f.publisher.types(), events.TypeTableCommitted)
	assert.Equal(t, events.TypeImportCompleted, f.publisher.types()[len(f.publisher.events)-1])
}

func TestRunDryRunWritesNothing(t *testing.T) {
	f := newFixture(t, true)
	f.store.Seed(models.TableInwardReinsurance, store.Row{"id": "ir-1", "contract_number": "C-1"})

	summary, err := f.importer.Run(context.Background(), portfolio(), claimsBook(), RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.Len(t, f.store.Rows(models.TableInwardReinsurance), 1)
	assert.Empty(t, f.store.Rows(models.TableLegalEntities))
	assert.Empty(t, f.store.Rows(models.TableClaims))

	for _, name := range []string{commit.RecordsPreviewFile, commit.EntitiesPreviewFile, commit.StatsFile, commit.ClaimsPreviewFile} {
		_, err := os.Stat(filepath.Join(f.previews, name))
		assert.NoError(t, err, name)
	}
	assert.Len(t, summary.PreviewFiles, 4)

	require.NotNil(t, summary.Matching)
	assert.Equal(t, 1, summary.Matching.MatchedInward)
	assert.Equal(t, 2, summary.TableCounts[models.TableInwardReinsurance])
	assert.Equal(t, 4, summary.TableCounts[models.TableLegalEntities])
	assert.Equal(t, models.BatchStatusPreviewed, summary.Batch.Status)
	assert.Equal(t, []events.Type{events.TypePreviewCompleted}, f.publisher.types())

	var out bytes.Buffer
	summary.Write(&out, 0)
	assert.Contains(t, out.String(), "DRY RUN SUMMARY")
	assert.Contains(t, out.String(), summary.BatchID)
}

func TestRunDeclinedWritesNothing(t *testing.T) {
	f := newFixture(t, false)

	summary, err := f.importer.Run(context.Background(), portfolio(), nil, RunOptions{SkipBackup: true})
	require.NoError(t, err)
	assert.True(t, summary.Aborted)
	assert.Empty(t, f.store.Rows(models.TableInwardReinsurance))
	assert.Empty(t, f.store.Rows(models.TableLegalEntities))

	entries, err := os.ReadDir(f.backups)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunOnly(t *testing.T) {
	f := newFixture(t, true)

	summary, err := f.importer.Run(context.Background(), portfolio(), claimsBook(), RunOptions{Only: []schema.Kind{schema.KindSlips}, SkipBackup: true})
	require.NoError(t, err)

	require.Len(t, summary.Sheets, 1)
	assert.Equal(t, "Outward RE Slips", summary.Sheets[0].Sheet)
	assert.Empty(t, f.store.Rows(models.TableInwardReinsurance))
	assert.Len(t, f.store.Rows(models.TableSlips), 1)
	assert.Nil(t, summary.Matching)
}

func TestRunSheetErrorDoesNotStopRun(t *testing.T) {
	f := newFixture(t, true)
	wb := &brokenSheet{Memory: portfolio(), broken: "2024"}

	summary, err := f.importer.Run(context.Background(), wb, nil, RunOptions{SkipBackup: true})
	require.NoError(t, err)

	require.Len(t, summary.Sheets, 2)
	assert.Equal(t, 0, summary.Sheets[0].Parsed)
	assert.Contains(t, summary.Sheets[0].Error, "unreadable")
	assert.Len(t, f.store.Rows(models.TableSlips), 1)
}

func TestRunFatalStoreErrorStops(t *testing.T) {
	f := newFixture(t, true)
	f.store.SetFault(func(op, table string, _ []store.Row) error {
		if op == "insert" && table == models.TableInwardReinsurance {
			return store.NewError(store.Fatal, table, op, errors.New("permission denied"))
		}
		return nil
	})

	summary, err := f.importer.Run(context.Background(), portfolio(), claimsBook(), RunOptions{SkipBackup: true})
	require.Error(t, err)
	assert.Equal(t, models.BatchStatusFailed, summary.Batch.Status)
	assert.Empty(t, f.store.Rows(models.TableSlips))
	assert.Empty(t, f.store.Rows(models.TableClaims))
	assert.Len(t, f.store.Rows(models.TableLegalEntities), 4)
}

func TestSummaryWriteLimitsFailures(t *testing.T) {
	s := &Summary{BatchID: "abcd1234", Batch: models.NewImportBatch(time.Now())}
	for i := 0; i < 12; i++ {
		s.Result.Failures = append(s.Result.Failures, commit.Failure{Table: "policies", Identifier: "P", Source: "Contracts:3", Error: "bad"})
	}

	var out bytes.Buffer
	s.Write(&out, 10)
	assert.Contains(t, out.String(), "Failed records (12)")
	assert.Contains(t, out.String(), "... and 2 more")
	assert.Contains(t, out.String(), "--rollback abcd1234")
}

type brokenSheet struct {
	*workbook.Memory
	broken string
}

func (b *brokenSheet) Rows(sheet string) (workbook.RowIterator, error) {
	if sheet == b.broken {
		return nil, errors.New("unreadable")
	}
	return b.Memory.Rows(sheet)
}
