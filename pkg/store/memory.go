package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FaultFunc lets tests fail a store call. Returning nil lets it through.
type FaultFunc func(op, table string, rows []Row) error

// Memory is an in-process Store. Bulk inserts are atomic: a single bad row
// rejects the whole call, as a relational store would.
type Memory struct {
	mu       sync.Mutex
	tables   map[string][]Row
	unique   map[string][]string
	required map[string][]string
	fault    FaultFunc
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string][]Row),
		unique:   make(map[string][]string),
		required: make(map[string][]string),
	}
}

// Unique declares columns whose non-null values must be distinct.
func (m *Memory) Unique(table string, columns ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[table] = append(m.unique[table], columns...)
	return m
}

// Required declares NOT NULL columns.
func (m *Memory) Required(table string, columns ...string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.required[table] = append(m.required[table], columns...)
	return m
}

func (m *Memory) SetFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

// Seed inserts rows without constraint checks.
func (m *Memory) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		row := copyRow(r)
		if row["id"] == nil {
			row["id"] = uuid.NewString()
		}
		m.tables[table] = append(m.tables[table], row)
	}
}

// Rows returns a copy of every row of table.
func (m *Memory) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

func (m *Memory) Insert(ctx context.Context, table string, rows []Row) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "insert", table, rows); err != nil {
		return nil, err
	}

	pending := make([]Row, 0, len(rows))
	for _, r := range rows {
		row := copyRow(r)
		if row["id"] == nil {
			row["id"] = uuid.NewString()
		}
		if err := m.validate(table, row, pending); err != nil {
			return nil, NewError(ChunkRejected, table, "insert", err)
		}
		pending = append(pending, row)
	}

	ids := make([]string, 0, len(pending))
	for _, row := range pending {
		ids = append(ids, fmt.Sprint(row["id"]))
	}
	m.tables[table] = append(m.tables[table], pending...)
	return ids, nil
}

func (m *Memory) InsertOne(ctx context.Context, table string, row Row) (string, error) {
	ids, err := m.Insert(ctx, table, []Row{row})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (m *Memory) Select(ctx context.Context, table string, filter Filter, columns ...string) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "select", table, nil); err != nil {
		return nil, err
	}

	var out []Row
	for _, r := range m.tables[table] {
		if !filter.Matches(r) {
			continue
		}
		if len(columns) == 0 {
			out = append(out, copyRow(r))
			continue
		}
		projected := make(Row, len(columns))
		for _, c := range columns {
			projected[c] = r[c]
		}
		out = append(out, projected)
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, table string, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "count", table, nil); err != nil {
		return 0, err
	}

	n := 0
	for _, r := range m.tables[table] {
		if filter.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Delete(ctx context.Context, table string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx, "delete", table, nil); err != nil {
		return err
	}

	kept := m.tables[table][:0]
	for _, r := range m.tables[table] {
		if !filter.Matches(r) {
			kept = append(kept, r)
		}
	}
	m.tables[table] = kept
	return nil
}

func (m *Memory) check(ctx context.Context, op, table string, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return NewError(ConnectivityLost, table, op, err)
	}
	if m.fault != nil {
		if err := m.fault(op, table, rows); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) validate(table string, row Row, pending []Row) error {
	for _, c := range m.required[table] {
		if row[c] == nil {
			return fmt.Errorf("null value in column %q violates not-null constraint", c)
		}
	}
	for _, c := range m.unique[table] {
		v := row[c]
		if v == nil {
			continue
		}
		if containsValue(m.tables[table], c, v) || containsValue(pending, c, v) {
			return fmt.Errorf("duplicate key value violates unique constraint on %q", c)
		}
	}
	return nil
}

func containsValue(rows []Row, column string, v any) bool {
	for _, r := range rows {
		if r[column] != nil && fmt.Sprint(r[column]) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
