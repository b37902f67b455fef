// Package postgres is a store.Store over a Postgres database holding the
// ledger tables of db/pg.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

type Store struct {
	db     *sqlx.DB
	logger ectologger.Logger
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB, logger ectologger.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Insert writes rows in one multi-row statement, so a single bad row
// rejects the whole call. Columns are the union of the rows' keys; a row
// lacking a column gets NULL, or DEFAULT for the id.
func (s *Store) Insert(ctx context.Context, table string, rows []store.Row) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "PostgresStore.Insert", attribute.String("table", table), attribute.Int("rows", len(rows)))
	defer span.End()

	if len(rows) == 0 {
		return nil, nil
	}

	columns := store.Columns(rows)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(pq.QuoteIdentifier(table)).Cols(quoted...)
	for _, row := range rows {
		values := make([]any, len(columns))
		for i, c := range columns {
			v, ok := row[c]
			if c == "id" && (!ok || v == nil) {
				values[i] = sqlbuilder.Raw("DEFAULT")
				continue
			}
			values[i] = database.ColumnValue(v)
		}
		ib.Values(values...)
	}
	ib.Returning("id")

	query, args := ib.Build()

	var ids []string
	err := s.observe(ctx, "insert", table, func() error {
		return s.db.SelectContext(ctx, &ids, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) InsertOne(ctx context.Context, table string, row store.Row) (string, error) {
	ids, err := s.Insert(ctx, table, []store.Row{row})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (s *Store) Select(ctx context.Context, table string, filter store.Filter, columns ...string) ([]store.Row, error) {
	ctx, span := tracing.StartSpan(ctx, "PostgresStore.Select", attribute.String("table", table), attribute.String("filter", filter.String()))
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	if len(columns) == 0 {
		sb.Select("*")
	} else {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		sb.Select(quoted...)
	}
	sb.From(pq.QuoteIdentifier(table))
	if expr, ok := condition(&sb.Cond, filter); ok {
		sb.Where(expr)
	}
	sb.OrderBy("id")

	query, args := sb.Build()

	var out []store.Row
	err := s.observe(ctx, "select", table, func() error {
		rows, err := s.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			row := make(store.Row)
			if err := rows.MapScan(row); err != nil {
				return err
			}
			for k, v := range row {
				row[k] = database.ScanValue(v)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, table string, filter store.Filter) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "PostgresStore.Count", attribute.String("table", table), attribute.String("filter", filter.String()))
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From(pq.QuoteIdentifier(table))
	if expr, ok := condition(&sb.Cond, filter); ok {
		sb.Where(expr)
	}
	query, args := sb.Build()

	var n int
	err := s.observe(ctx, "count", table, func() error {
		return s.db.GetContext(ctx, &n, query, args...)
	})
	return n, err
}

func (s *Store) Delete(ctx context.Context, table string, filter store.Filter) error {
	ctx, span := tracing.StartSpan(ctx, "PostgresStore.Delete", attribute.String("table", table), attribute.String("filter", filter.String()))
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom(pq.QuoteIdentifier(table))
	if expr, ok := condition(&del.Cond, filter); ok {
		del.Where(expr)
	}
	query, args := del.Build()

	return s.observe(ctx, "delete", table, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) observe(ctx context.Context, op, table string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StoreRequestDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	serr := classify(op, table, err)
	s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"op":    op,
		"table": table,
		"kind":  serr.Kind.String(),
	}).Warn("Store request failed")
	return serr
}

// condition renders a filter with the builder's argument binding. The zero
// filter has no condition.
func condition(cond *sqlbuilder.Cond, filter store.Filter) (string, bool) {
	if filter.IsZero() {
		return "", false
	}
	col := pq.QuoteIdentifier(filter.Column)
	switch {
	case filter.Value == nil && filter.Op == store.OpNeq:
		return cond.IsNotNull(col), true
	case filter.Value == nil:
		return cond.IsNull(col), true
	case filter.Op == store.OpNeq:
		return cond.NotEqual(col, fmt.Sprint(filter.Value)), true
	}
	return cond.Equal(col, fmt.Sprint(filter.Value)), true
}
