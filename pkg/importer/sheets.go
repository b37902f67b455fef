package importer

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/workbook"
)

// SheetStats counts what one sheet produced.
type SheetStats struct {
	Sheet    string      `json:"sheet"`
	Kind     schema.Kind `json:"kind"`
	Parsed   int         `json:"parsed"`
	Skipped  int         `json:"skipped"`
	Warnings int         `json:"warnings"`
	Error    string      `json:"error,omitempty"`
}

// readSheet streams a sheet through the normalizer and resolver. Rows above
// the data start are never normalized: the schema either pins its header
// depth or the first rows are buffered until a header row is found.
func (imp *Importer) readSheet(ctx context.Context, wb workbook.Workbook, sheet string, s *schema.Schema, batchID string) ([]*models.Record, SheetStats, error) {
	stats := SheetStats{Sheet: sheet, Kind: s.Kind()}

	it, err := wb.Rows(sheet)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open sheet %s: %w", sheet, err)
	}
	defer it.Close()

	var records []*models.Record
	handle := func(ordinal int, cells []any) {
		rec, ok := imp.normalizer.Normalize(models.RawRow{Sheet: sheet, Number: ordinal, Cells: cells}, s)
		if !ok {
			stats.Skipped++
			return
		}
		imp.resolver.Resolve(rec, s.Kind(), batchID)
		stats.Parsed++
		stats.Warnings += len(rec.Warnings)
		records = append(records, rec)
	}

	skip := s.HeaderRows()
	detect := skip == 0
	var buffered [][]any

	ordinal := 0
	for it.Next() {
		cells, err := it.Values()
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read %s row %d: %w", sheet, ordinal+1, err)
		}
		ordinal++

		if detect {
			buffered = append(buffered, cells)
			if len(buffered) < schema.MaxHeaderScanRows {
				continue
			}
			skip = imp.headerDepth(ctx, sheet, buffered)
			detect = false
			for i, row := range buffered {
				if i+1 > skip {
					handle(i+1, row)
				}
			}
			buffered = nil
			continue
		}

		if ordinal > skip {
			handle(ordinal, cells)
		}
	}
	if err := it.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	if detect {
		skip = imp.headerDepth(ctx, sheet, buffered)
		for i, row := range buffered {
			if i+1 > skip {
				handle(i+1, row)
			}
		}
	}

	return records, stats, nil
}

// headerDepth is the number of leading rows up to and including the header.
func (imp *Importer) headerDepth(ctx context.Context, sheet string, rows [][]any) int {
	index, found := schema.DetectHeaderRow(rows, imp.tables.HeaderKeywords, schema.MaxHeaderScanRows)
	if !found {
		imp.Logger.WithContext(ctx).WithField("sheet", sheet).Debug("No header row found, assuming the first row")
	}
	return index + 1
}
