package schema

import (
	"fmt"

	"github.com/Ramsey-B/fern/pkg/keywords"
)

// MaxHeaderScanRows bounds how far header detection looks.
const MaxHeaderScanRows = 15

// DetectHeaderRow returns the index of the first row, within the first
// maxRows, holding a cell that contains one of the header keywords. When no
// such row exists the first row is assumed to be the header.
func DetectHeaderRow(rows [][]any, words []string, maxRows int) (int, bool) {
	for i, row := range rows {
		if i >= maxRows {
			break
		}
		for _, cell := range row {
			if cell == nil {
				continue
			}
			if keywords.ContainsAny(fmt.Sprint(cell), words) {
				return i, true
			}
		}
	}
	return 0, false
}
