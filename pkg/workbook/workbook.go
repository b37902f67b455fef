// Package workbook reads spreadsheet sheets as lazy sequences of raw rows.
// .xlsx/.xlsm files are read with excelize, which also decrypts
// password-protected workbooks; legacy .xls files with extrame/xls.
package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// Workbook lists sheets and opens row iterators over them.
type Workbook interface {
	SheetNames() []string
	Rows(sheet string) (RowIterator, error)
	Close() error
}

// RowIterator yields one row per Next. Values returns the cells of the
// current row; empty cells are "" or nil.
type RowIterator interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// Open opens a workbook file, choosing the reader by extension. password is
// ignored by readers that cannot decrypt.
func Open(path, password string) (Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}

	wb, err := OpenReader(f, filepath.Ext(path), password)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read workbook %s: %w", path, err)
	}
	return &fileWorkbook{Workbook: wb, file: f}, nil
}

// OpenReader opens a workbook from r. ext selects the reader.
func OpenReader(r io.ReadSeeker, ext, password string) (Workbook, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "xlsx", "xlsm":
		return openExcelize(r, password)
	case "xls":
		return openXLS(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

type fileWorkbook struct {
	Workbook
	file *os.File
}

func (w *fileWorkbook) Close() error {
	return errors.Join(w.Workbook.Close(), w.file.Close())
}

// ReadAll drains an iterator, closing it.
func ReadAll(it RowIterator) ([][]any, error) {
	defer it.Close()
	var rows [][]any
	for it.Next() {
		v, err := it.Values()
		if err != nil {
			return rows, err
		}
		rows = append(rows, v)
	}
	return rows, it.Err()
}
