package normalizers

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
)

// Parser coerces one cell. ok is false when the cell holds no usable value.
type Parser func(cell any) (value any, ok bool)

// Normalizer turns raw rows into records according to a schema. Each
// instance owns its parser registry.
type Normalizer struct {
	parsers map[schema.ColumnType]Parser
}

// New returns a normalizer with the built-in parsers registered.
func New() *Normalizer {
	n := &Normalizer{parsers: make(map[schema.ColumnType]Parser)}
	n.Register(schema.ColumnText, func(cell any) (any, bool) { return ParseText(cell) })
	n.Register(schema.ColumnDate, func(cell any) (any, bool) { return ParseDate(cell) })
	n.Register(schema.ColumnNumber, func(cell any) (any, bool) { return ParseNumber(cell) })
	n.Register(schema.ColumnInteger, func(cell any) (any, bool) { return ParseInteger(cell) })
	return n
}

// Register replaces the parser for a column type.
func (n *Normalizer) Register(t schema.ColumnType, p Parser) {
	n.parsers[t] = p
}

// Parse coerces a cell with the parser registered for t.
func (n *Normalizer) Parse(t schema.ColumnType, cell any) (any, bool) {
	p, ok := n.parsers[t]
	if !ok {
		return nil, false
	}
	return p(cell)
}

// Normalize maps a row onto the schema's fields. Every mapped field is
// present in the record, nil when the cell was blank or unusable. A
// non-blank cell that could not be coerced leaves a warning.
//
// The row is rejected when none of the schema's identity fields has a value.
func (n *Normalizer) Normalize(row models.RawRow, s *schema.Schema) (*models.Record, bool) {
	rec := models.NewRecord(s.Table(), row.Sheet, row.Number)

	for _, col := range s.Columns() {
		cell := row.Cell(col.Index)
		v, ok := n.Parse(col.Type, cell)
		if !ok {
			rec.Set(col.Field, nil)
			if !IsBlank(cell) {
				rec.Warn(col.Field, "could not read %v as %s", cell, col.Type)
			}
			continue
		}
		rec.Set(col.Field, v)
	}

	if col, ok := s.Structure(); ok {
		rec.Set(col.Field, ParseStructure(row.Cell(col.Index)))
	}

	if cols, field := s.Notes(); len(cols) > 0 {
		parts := make([]string, 0, len(cols))
		for _, c := range cols {
			text, ok := ParseText(row.Cell(c.Index))
			if !ok {
				continue
			}
			if c.Label != "" {
				text = fmt.Sprintf("%s: %s", c.Label, text)
			}
			parts = append(parts, text)
		}
		if notes, ok := JoinNotes(parts); ok {
			rec.Set(field, notes)
		} else {
			rec.Set(field, nil)
		}
	}

	for _, id := range s.Identity() {
		if !rec.IsNull(id) {
			return rec, true
		}
	}
	return nil, false
}
