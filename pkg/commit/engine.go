// Package commit persists normalized records in fixed-size chunks. A chunk
// the store rejects is retried row by row so one bad row costs one row.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultChunkSize     = 50
	DefaultRetryAttempts = 3
	FailureMessageLength = 100
)

// IdentifierFields name a failed record in reports, first present wins.
var IdentifierFields = []string{"policyNumber", "slipNumber", "contract_number", "claim_number", "fullName", "transaction_type"}

type Config struct {
	ChunkSize     int
	RetryAttempts int
	RetryUnit     time.Duration
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:     DefaultChunkSize,
		RetryAttempts: DefaultRetryAttempts,
		RetryUnit:     time.Second,
	}
}

// Failure is one record the store would not take.
type Failure struct {
	Table      string `json:"table"`
	Identifier string `json:"identifier"`
	Source     string `json:"source"`
	Error      string `json:"error"`
	// Status is the HTTP status behind the error, zero when the store is
	// not HTTP backed.
	Status int `json:"status,omitempty"`
}

// TableResult counts one table's outcome. Dropped counts dependents whose
// parent never got an id; they are not errors.
type TableResult struct {
	Table    string `json:"table"`
	Total    int    `json:"total"`
	Inserted int    `json:"inserted"`
	Failed   int    `json:"failed"`
	Dropped  int    `json:"dropped"`
	Chunks   int    `json:"chunks"`
	Fallback int    `json:"fallback_chunks"`
}

// Result is the outcome of one Commit call, the parent table first and any
// dependent tables after it.
type Result struct {
	Tables   []TableResult `json:"tables"`
	Failures []Failure     `json:"failures"`
}

func (r *Result) table(name string) *TableResult {
	for i := range r.Tables {
		if r.Tables[i].Table == name {
			return &r.Tables[i]
		}
	}
	r.Tables = append(r.Tables, TableResult{Table: name})
	return &r.Tables[len(r.Tables)-1]
}

// Inserted sums inserted rows across tables.
func (r Result) Inserted() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Inserted
	}
	return n
}

// Failed sums failed rows across tables.
func (r Result) Failed() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Failed
	}
	return n
}

// Merge appends o's tables and failures.
func (r *Result) Merge(o Result) {
	for _, t := range o.Tables {
		dst := r.table(t.Table)
		dst.Total += t.Total
		dst.Inserted += t.Inserted
		dst.Failed += t.Failed
		dst.Dropped += t.Dropped
		dst.Chunks += t.Chunks
		dst.Fallback += t.Fallback
	}
	r.Failures = append(r.Failures, o.Failures...)
}

type Engine struct {
	store  store.Store
	logger ectologger.Logger
	cfg    Config
}

func NewEngine(st store.Store, logger ectologger.Logger, cfg Config) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	return &Engine{store: st, logger: logger, cfg: cfg}
}

// Commit writes records to table in order. Dependents of inserted records
// are committed afterwards with the parent's id set; dependents of failed
// records are dropped.
//
// A Fatal store error stops writes to the table: the records not yet
// written are counted as failed, the dependents of records already inserted
// are still committed, and the error is returned with the partial result.
func (e *Engine) Commit(ctx context.Context, table string, records []*models.Record) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "Engine.Commit", attribute.String("table", table), attribute.Int("records", len(records)))
	defer span.End()

	var res Result
	tr := res.table(table)
	tr.Total = len(records)

	var dependents []*models.Record
	var fatal error

	for start := 0; start < len(records); start += e.cfg.ChunkSize {
		end := min(start+e.cfg.ChunkSize, len(records))
		chunk := records[start:end]
		tr.Chunks++

		ids, err := e.insertChunk(ctx, table, chunk)
		switch {
		case err == nil:
			tr.Inserted += len(chunk)
			dependents = append(dependents, e.bind(chunk, ids)...)
		case store.KindOf(err) == store.Fatal:
			fatal = err
		default:
			tr.Fallback++
			metrics.ChunkFallbacksTotal.WithLabelValues(table).Inc()
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"table": table,
				"rows":  fmt.Sprintf("%d-%d", start+1, end),
			}).Warn("Chunk insert failed, retrying row by row")

			var done int
			done, fatal = e.insertRows(ctx, table, chunk, &res, tr, &dependents)
			if fatal != nil {
				start += done
			}
		}

		if fatal != nil {
			remaining := records[start:]
			for _, rec := range remaining {
				tr.Failed++
				res.Failures = append(res.Failures, failure(rec, fatal))
				tr.Dropped += countDependents(rec)
			}
			metrics.RecordsTotal.WithLabelValues(table, "failed").Add(float64(len(remaining)))
			break
		}
	}

	metrics.RecordsTotal.WithLabelValues(table, "inserted").Add(float64(tr.Inserted))
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"table":    table,
		"total":    tr.Total,
		"inserted": tr.Inserted,
		"failed":   tr.Failed,
	}).Info("Committed table")

	if fatal != nil {
		tracing.RecordError(span, fatal)
		// Parents inserted before the error keep their dependents.
		if len(dependents) > 0 {
			depRes, err := e.commitDependents(ctx, dependents)
			res.Merge(depRes)
			if err != nil {
				e.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to commit dependents after fatal error")
			}
		}
		return res, fmt.Errorf("failed to commit %s: %w", table, fatal)
	}

	if len(dependents) > 0 {
		depRes, err := e.commitDependents(ctx, dependents)
		res.Merge(depRes)
		if err != nil {
			return res, err
		}
	}

	return res, nil
}

// commitDependents groups dependents by table, preserving order.
func (e *Engine) commitDependents(ctx context.Context, deps []*models.Record) (Result, error) {
	var order []string
	byTable := make(map[string][]*models.Record)
	for _, d := range deps {
		if _, ok := byTable[d.Table]; !ok {
			order = append(order, d.Table)
		}
		byTable[d.Table] = append(byTable[d.Table], d)
	}

	var res Result
	for _, table := range order {
		r, err := e.Commit(ctx, table, byTable[table])
		res.Merge(r)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// insertChunk bulk-inserts a chunk, retrying lost connectivity.
func (e *Engine) insertChunk(ctx context.Context, table string, chunk []*models.Record) ([]string, error) {
	rows := make([]store.Row, len(chunk))
	for i, rec := range chunk {
		rows[i] = rec.Row()
	}

	var ids []string
	err := startup.Retry(ctx, e.cfg.RetryAttempts, e.cfg.RetryUnit, isConnectivity, func(attempt int) error {
		var err error
		ids, err = e.store.Insert(ctx, table, rows)
		if err != nil {
			e.observeError("insert", err)
		}
		return err
	})
	return ids, err
}

// insertRows inserts a chunk one record at a time. It returns how many
// records were attempted before a Fatal error, and that error.
func (e *Engine) insertRows(ctx context.Context, table string, chunk []*models.Record, res *Result, tr *TableResult, dependents *[]*models.Record) (int, error) {
	for i, rec := range chunk {
		var id string
		err := startup.Retry(ctx, e.cfg.RetryAttempts, e.cfg.RetryUnit, isConnectivity, func(attempt int) error {
			var err error
			id, err = e.store.InsertOne(ctx, table, rec.Row())
			if err != nil {
				e.observeError("insert_one", err)
			}
			return err
		})
		if err != nil {
			if store.KindOf(err) == store.Fatal {
				return i, err
			}
			f := failure(rec, err)
			tr.Failed++
			tr.Dropped += countDependents(rec)
			res.Failures = append(res.Failures, f)
			metrics.RecordsTotal.WithLabelValues(table, "failed").Inc()
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"table":      table,
				"identifier": f.Identifier,
				"source":     f.Source,
			}).Warnf("Failed to insert record: %s", f.Error)
			continue
		}
		tr.Inserted++
		*dependents = append(*dependents, e.bind([]*models.Record{rec}, []string{id})...)
	}
	return len(chunk), nil
}

// bind hands each record's id to its dependents.
func (e *Engine) bind(chunk []*models.Record, ids []string) []*models.Record {
	var out []*models.Record
	for i, rec := range chunk {
		if len(rec.Dependents) == 0 {
			continue
		}
		if i >= len(ids) || ids[i] == "" {
			continue
		}
		rec.Set(models.FieldID, ids[i])
		for _, dep := range rec.Dependents {
			dep.Set(dep.ParentField, ids[i])
			out = append(out, dep)
		}
	}
	return out
}

func (e *Engine) observeError(op string, err error) {
	metrics.StoreErrorsTotal.WithLabelValues(op, store.KindOf(err).String()).Inc()
}

func isConnectivity(err error) bool {
	return store.IsKind(err, store.ConnectivityLost)
}

func countDependents(rec *models.Record) int {
	return len(rec.Dependents)
}

func failure(rec *models.Record, err error) Failure {
	return Failure{
		Table:      rec.Table,
		Identifier: rec.Identifier(IdentifierFields...),
		Source:     rec.Source(),
		Error:      models.TruncateMessage(err.Error(), FailureMessageLength),
		Status:     statusOf(err),
	}
}

func statusOf(err error) int {
	var herr *httperror.HTTPError
	if errors.As(err, &herr) {
		return herr.Code
	}
	return 0
}
