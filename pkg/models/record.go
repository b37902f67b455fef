package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tables written by the importer.
const (
	TableInwardReinsurance = "inward_reinsurance"
	TableLegalEntities     = "legal_entities"
	TablePolicies          = "policies"
	TableSlips             = "slips"
	TableClaims            = "claims"
	TableClaimTransactions = "claim_transactions"
)

// Columns shared by every imported table.
const (
	FieldID            = "id"
	FieldImportBatchID = "import_batch_id"
	FieldImportSource  = "import_source"
)

// RawRow is one spreadsheet row as read from the workbook.
type RawRow struct {
	Sheet  string
	Number int // 1-based row ordinal within the sheet
	Cells  []any
}

// Cell returns the value at index i, or nil when the row is shorter.
func (r RawRow) Cell(i int) any {
	if i < 0 || i >= len(r.Cells) {
		return nil
	}
	return r.Cells[i]
}

// Warning is a row-scoped, recoverable problem found while normalizing or
// resolving a record.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Field == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// Record is a normalized row bound for one table. Field values are one of
// string, Date, float64, int64, bool, a named enum string, a JSON-able
// slice/map, or nil for null.
type Record struct {
	Table     string
	Sheet     string
	RowNumber int
	Fields    map[string]any
	Warnings  []Warning

	// Dependents are persisted after this record obtains a store id. Each
	// dependent receives that id in its ParentField.
	Dependents  []*Record
	ParentField string
}

// NewRecord returns an empty record for table sourced from sheet/row.
func NewRecord(table, sheet string, row int) *Record {
	return &Record{
		Table:     table,
		Sheet:     sheet,
		RowNumber: row,
		Fields:    make(map[string]any),
	}
}

func (r *Record) Get(field string) any {
	return r.Fields[field]
}

func (r *Record) Set(field string, value any) {
	r.Fields[field] = value
}

// Delete removes a field from the record.
func (r *Record) Delete(field string) {
	delete(r.Fields, field)
}

// Keep drops every field not listed.
func (r *Record) Keep(fields ...string) {
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		keep[f] = true
	}
	for f := range r.Fields {
		if !keep[f] {
			delete(r.Fields, f)
		}
	}
}

// IsNull reports whether the field is missing or null.
func (r *Record) IsNull(field string) bool {
	v, ok := r.Fields[field]
	return !ok || v == nil
}

// Text returns a non-empty string field.
func (r *Record) Text(field string) (string, bool) {
	s, ok := r.Fields[field].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Number returns a numeric field as float64.
func (r *Record) Number(field string) (float64, bool) {
	switch v := r.Fields[field].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Date returns a non-zero date field.
func (r *Record) Date(field string) (Date, bool) {
	d, ok := r.Fields[field].(Date)
	if !ok || d.IsZero() {
		return Date{}, false
	}
	return d, true
}

// Warn records a row-scoped warning.
func (r *Record) Warn(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Field: field, Message: fmt.Sprintf(format, args...)})
}

// AddDependent attaches a sub-record persisted after r obtains an id.
func (r *Record) AddDependent(dep *Record, parentField string) {
	dep.ParentField = parentField
	r.Dependents = append(r.Dependents, dep)
}

// Source is the sheet:row reference used in logs and reports.
func (r *Record) Source() string {
	return fmt.Sprintf("%s:%d", r.Sheet, r.RowNumber)
}

// Identifier returns the first non-empty value among fields, or "unknown".
func (r *Record) Identifier(fields ...string) string {
	for _, f := range fields {
		if s, ok := r.Text(f); ok {
			return s
		}
	}
	return "unknown"
}

// Row returns a shallow copy of the fields for handing to a store.
func (r *Record) Row() map[string]any {
	row := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		row[k] = v
	}
	return row
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields)
}

// TruncateMessage shortens an error message for failure reports.
func TruncateMessage(msg string, max int) string {
	msg = strings.TrimSpace(msg)
	if max <= 0 || len([]rune(msg)) <= max {
		return msg
	}
	return string([]rune(msg)[:max])
}
