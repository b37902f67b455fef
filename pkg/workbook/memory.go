package workbook

import "fmt"

// Memory is an in-process workbook, used by tests and previews.
type Memory struct {
	order  []string
	sheets map[string][][]any
}

func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][][]any)}
}

// AddSheet appends a sheet. Rows are not copied.
func (m *Memory) AddSheet(name string, rows [][]any) *Memory {
	if _, ok := m.sheets[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sheets[name] = rows
	return m
}

func (m *Memory) SheetNames() []string {
	return append([]string(nil), m.order...)
}

func (m *Memory) Rows(sheet string) (RowIterator, error) {
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %s does not exist", sheet)
	}
	return &memoryRows{rows: rows, cur: -1}, nil
}

func (m *Memory) Close() error {
	return nil
}

type memoryRows struct {
	rows [][]any
	cur  int
}

func (r *memoryRows) Next() bool {
	if r.cur+1 >= len(r.rows) {
		return false
	}
	r.cur++
	return true
}

func (r *memoryRows) Values() ([]any, error) {
	return r.rows[r.cur], nil
}

func (r *memoryRows) Err() error {
	return nil
}

func (r *memoryRows) Close() error {
	return nil
}
