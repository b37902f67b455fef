package workbook

import (
	"io"

	"github.com/xuri/excelize/v2"
)

type excelizeWorkbook struct {
	file *excelize.File
}

func openExcelize(r io.Reader, password string) (Workbook, error) {
	f, err := excelize.OpenReader(r, excelize.Options{Password: password})
	if err != nil {
		return nil, err
	}
	return &excelizeWorkbook{file: f}, nil
}

func (w *excelizeWorkbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *excelizeWorkbook) Rows(sheet string) (RowIterator, error) {
	rows, err := w.file.Rows(sheet)
	if err != nil {
		return nil, err
	}
	return &excelizeRows{rows: rows}, nil
}

func (w *excelizeWorkbook) Close() error {
	return w.file.Close()
}

// excelizeRows returns raw cell values so numeric dates arrive as serials
// instead of locale-formatted strings.
type excelizeRows struct {
	rows *excelize.Rows
}

func (r *excelizeRows) Next() bool {
	return r.rows.Next()
}

func (r *excelizeRows) Values() ([]any, error) {
	cols, err := r.rows.Columns(excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out, nil
}

func (r *excelizeRows) Err() error {
	return r.rows.Error()
}

func (r *excelizeRows) Close() error {
	return r.rows.Close()
}
