// Package store defines the record store the importer writes to and the
// error kinds its adapters report. Adapters live in subpackages; Memory is
// an in-process implementation used by dry runs and tests.
package store

import (
	"context"
	"fmt"
	"sort"
)

// Row is one table row keyed by column name.
type Row = map[string]any

// Columns returns every key used by any of rows, sorted. A bulk insert
// names these columns so rows missing a key get the column default.
func Columns(rows []Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
)

// Filter is a single-column predicate. The zero Filter matches every row.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

func Neq(column string, value any) Filter {
	return Filter{Column: column, Op: OpNeq, Value: value}
}

// All matches every row.
var All = Filter{}

// NilUUID is the id no row carries. Neq(id, NilUUID) is the always-true
// predicate for stores that refuse an unfiltered delete.
const NilUUID = "00000000-0000-0000-0000-000000000000"

func (f Filter) IsZero() bool {
	return f.Column == ""
}

// Matches evaluates the filter against a row. Values are compared by their
// string form so ids read back from JSON compare equal to typed ids.
func (f Filter) Matches(row Row) bool {
	if f.IsZero() {
		return true
	}
	v := row[f.Column]
	var equal bool
	if v == nil || f.Value == nil {
		equal = v == nil && f.Value == nil
	} else {
		equal = fmt.Sprint(v) == fmt.Sprint(f.Value)
	}
	switch f.Op {
	case OpNeq:
		return !equal
	default:
		return equal
	}
}

func (f Filter) String() string {
	if f.IsZero() {
		return "all"
	}
	return fmt.Sprintf("%s=%s.%v", f.Column, f.Op, f.Value)
}

// Store is the table API the importer needs. Insert returns the generated
// id of each row, in input order. Errors are *Error values carrying a Kind.
type Store interface {
	Insert(ctx context.Context, table string, rows []Row) ([]string, error)
	InsertOne(ctx context.Context, table string, row Row) (string, error)
	Select(ctx context.Context, table string, filter Filter, columns ...string) ([]Row, error)
	Count(ctx context.Context, table string, filter Filter) (int, error)
	Delete(ctx context.Context, table string, filter Filter) error
}
