package workbook

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
)

type xlsWorkbook struct {
	book *xls.WorkBook
}

func openXLS(r io.ReadSeeker) (Workbook, error) {
	book, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, err
	}
	return &xlsWorkbook{book: book}, nil
}

func (w *xlsWorkbook) SheetNames() []string {
	names := make([]string, 0, w.book.NumSheets())
	for i := 0; i < w.book.NumSheets(); i++ {
		if sheet := w.book.GetSheet(i); sheet != nil {
			names = append(names, sheet.Name)
		}
	}
	return names
}

func (w *xlsWorkbook) Rows(name string) (RowIterator, error) {
	for i := 0; i < w.book.NumSheets(); i++ {
		if sheet := w.book.GetSheet(i); sheet != nil && sheet.Name == name {
			return &xlsRows{sheet: sheet, cur: -1}, nil
		}
	}
	return nil, fmt.Errorf("sheet %s does not exist", name)
}

func (w *xlsWorkbook) Close() error {
	return nil
}

type xlsRows struct {
	sheet *xls.WorkSheet
	cur   int
}

func (r *xlsRows) Next() bool {
	if r.cur >= int(r.sheet.MaxRow) {
		return false
	}
	r.cur++
	return true
}

func (r *xlsRows) Values() ([]any, error) {
	row := r.sheet.Row(r.cur)
	if row == nil {
		return nil, nil
	}
	out := make([]any, row.LastCol())
	for i := range out {
		out[i] = row.Col(i)
	}
	return out, nil
}

func (r *xlsRows) Err() error {
	return nil
}

func (r *xlsRows) Close() error {
	return nil
}
