// Package schema describes how a sheet's columns map onto canonical fields.
//
// A Schema is built once from a Definition and never mutated afterwards:
// every accessor returns a copy, so a schema can be shared across sheets
// and runs without coordination.
package schema

import (
	"fmt"
	"sort"
)

// Kind names a sheet layout.
type Kind string

const (
	KindInward    Kind = "inward"
	KindContracts Kind = "contracts"
	KindOutward   Kind = "outward"
	KindSlips     Kind = "slips"
	KindClaims    Kind = "claims"
)

// ColumnType selects the coercion applied to a column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnDate
	ColumnNumber
	ColumnInteger
)

func (t ColumnType) String() string {
	switch t {
	case ColumnText:
		return "text"
	case ColumnDate:
		return "date"
	case ColumnNumber:
		return "number"
	case ColumnInteger:
		return "integer"
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// Column binds a 0-based column index to a canonical field.
type Column struct {
	Index int
	Field string
	Type  ColumnType
}

// NoteColumn is an extra column folded into the notes field. A non-empty
// Label renders the value as "Label: value".
type NoteColumn struct {
	Index int
	Label string
}

// Definition is the mutable input used to build a Schema.
type Definition struct {
	Kind          Kind
	Table         string
	SheetPatterns []string

	Text     map[int]string
	Dates    map[int]string
	Numbers  map[int]string
	Integers map[int]string

	// StructureField is empty when the sheet has no structure column.
	StructureColumn int
	StructureField  string

	Notes      []NoteColumn
	NotesField string

	// Identity lists the fields of which at least one must be present for
	// a row to be kept.
	Identity []string

	// HeaderRows pins the number of header rows. Zero means detect.
	HeaderRows int
}

type Schema struct {
	kind          Kind
	table         string
	sheetPatterns []string
	columns       []Column
	structure     *Column
	notes         []NoteColumn
	notesField    string
	identity      []string
	headerRows    int
}

// New validates def and returns an immutable schema.
func New(def Definition) (*Schema, error) {
	if def.Table == "" {
		return nil, fmt.Errorf("schema %q: table is required", def.Kind)
	}
	if len(def.Identity) == 0 {
		return nil, fmt.Errorf("schema %q: at least one identity field is required", def.Kind)
	}
	if def.HeaderRows < 0 {
		return nil, fmt.Errorf("schema %q: header rows must not be negative", def.Kind)
	}

	s := &Schema{
		kind:          def.Kind,
		table:         def.Table,
		sheetPatterns: append([]string(nil), def.SheetPatterns...),
		notes:         append([]NoteColumn(nil), def.Notes...),
		notesField:    def.NotesField,
		identity:      append([]string(nil), def.Identity...),
		headerRows:    def.HeaderRows,
	}

	indexes := make(map[int]string)
	fields := make(map[string]bool)
	add := func(cols map[int]string, typ ColumnType) error {
		for idx, field := range cols {
			if idx < 0 {
				return fmt.Errorf("schema %q: negative column index for %s", def.Kind, field)
			}
			if other, ok := indexes[idx]; ok {
				return fmt.Errorf("schema %q: column %d mapped to both %s and %s", def.Kind, idx, other, field)
			}
			if fields[field] {
				return fmt.Errorf("schema %q: field %s mapped twice", def.Kind, field)
			}
			indexes[idx] = field
			fields[field] = true
			s.columns = append(s.columns, Column{Index: idx, Field: field, Type: typ})
		}
		return nil
	}

	if err := add(def.Text, ColumnText); err != nil {
		return nil, err
	}
	if err := add(def.Dates, ColumnDate); err != nil {
		return nil, err
	}
	if err := add(def.Numbers, ColumnNumber); err != nil {
		return nil, err
	}
	if err := add(def.Integers, ColumnInteger); err != nil {
		return nil, err
	}

	sort.Slice(s.columns, func(i, j int) bool { return s.columns[i].Index < s.columns[j].Index })

	if def.StructureField != "" {
		if fields[def.StructureField] {
			return nil, fmt.Errorf("schema %q: structure field %s already mapped", def.Kind, def.StructureField)
		}
		s.structure = &Column{Index: def.StructureColumn, Field: def.StructureField, Type: ColumnText}
		fields[def.StructureField] = true
	}

	if len(def.Notes) > 0 && def.NotesField == "" {
		return nil, fmt.Errorf("schema %q: notes columns need a notes field", def.Kind)
	}

	for _, id := range def.Identity {
		if !fields[id] {
			return nil, fmt.Errorf("schema %q: identity field %s is not mapped", def.Kind, id)
		}
	}

	return s, nil
}

// MustNew is New for package-level built-ins.
func MustNew(def Definition) *Schema {
	s, err := New(def)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Kind() Kind {
	return s.kind
}

func (s *Schema) Table() string {
	return s.table
}

func (s *Schema) SheetPatterns() []string {
	return append([]string(nil), s.sheetPatterns...)
}

// Columns returns the typed columns ordered by index.
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// Structure returns the structure column, if the schema has one.
func (s *Schema) Structure() (Column, bool) {
	if s.structure == nil {
		return Column{}, false
	}
	return *s.structure, true
}

func (s *Schema) Notes() ([]NoteColumn, string) {
	return append([]NoteColumn(nil), s.notes...), s.notesField
}

func (s *Schema) Identity() []string {
	return append([]string(nil), s.identity...)
}

// HeaderRows is the pinned header depth, or zero when the header is detected.
func (s *Schema) HeaderRows() int {
	return s.headerRows
}

// FieldType returns the column type of a mapped field.
func (s *Schema) FieldType(field string) (ColumnType, bool) {
	for _, c := range s.columns {
		if c.Field == field {
			return c.Type, true
		}
	}
	return 0, false
}
