package importer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Ramsey-B/fern/pkg/commit"
	"github.com/Ramsey-B/fern/pkg/matching"
	"github.com/Ramsey-B/fern/pkg/models"
)

// DefaultErrorReportLimit bounds the failures printed by Summary.Write.
const DefaultErrorReportLimit = 10

// Summary reports what a run parsed, skipped, inserted and failed.
type Summary struct {
	BatchID string
	DryRun  bool
	Aborted bool
	Batch   *models.ImportBatch

	Sheets           []SheetStats
	EntityCandidates int
	Entities         []models.LegalEntity
	Matching         *matching.Stats
	TableCounts      map[string]int

	Backup       string
	PreviewFiles []string
	Result       commit.Result
}

func (s *Summary) Parsed() int {
	var n int
	for _, sh := range s.Sheets {
		n += sh.Parsed
	}
	return n
}

func (s *Summary) Skipped() int {
	var n int
	for _, sh := range s.Sheets {
		n += sh.Skipped
	}
	return n
}

func (s *Summary) eventPayload() map[string]any {
	return map[string]any{
		"parsed":   s.Parsed(),
		"skipped":  s.Skipped(),
		"inserted": s.Result.Inserted(),
		"failed":   s.Result.Failed(),
		"tables":   s.Result.Tables,
		"backup":   s.Backup,
		"status":   s.Batch.Status,
	}
}

// Write prints the run summary with at most limit failures.
func (s *Summary) Write(w io.Writer, limit int) {
	if limit <= 0 {
		limit = DefaultErrorReportLimit
	}

	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	if s.DryRun {
		fmt.Fprintln(w, "DRY RUN SUMMARY")
	} else {
		fmt.Fprintln(w, "IMPORT SUMMARY")
	}
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Batch ID: %s\n", s.BatchID)
	if s.Backup != "" {
		fmt.Fprintf(w, "Backup:   %s\n", s.Backup)
	}

	fmt.Fprintln(w, "\nSheets:")
	for _, sh := range s.Sheets {
		if sh.Error != "" {
			fmt.Fprintf(w, "  %-30s %-10s error: %s\n", sh.Sheet, sh.Kind, sh.Error)
			continue
		}
		fmt.Fprintf(w, "  %-30s %-10s parsed %d, skipped %d, warnings %d\n", sh.Sheet, sh.Kind, sh.Parsed, sh.Skipped, sh.Warnings)
	}
	fmt.Fprintf(w, "  total: parsed %d, skipped %d\n", s.Parsed(), s.Skipped())

	fmt.Fprintf(w, "\nEntities: %d new of %d referenced\n", len(s.Entities), s.EntityCandidates)

	if s.Matching != nil {
		m := s.Matching
		fmt.Fprintf(w, "\nClaims: %d total, %d matched to policies, %d matched to inward, %d unmatched\n",
			m.Total, m.MatchedPolicy, m.MatchedInward, m.Unmatched)
	}

	if s.Aborted {
		fmt.Fprintln(w, "\nImport cancelled. Nothing was written.")
		return
	}

	if s.DryRun {
		fmt.Fprintln(w, "\nWould insert:")
		for _, table := range sortedKeys(s.TableCounts) {
			fmt.Fprintf(w, "  %-22s %d\n", table, s.TableCounts[table])
		}
		for _, f := range s.PreviewFiles {
			fmt.Fprintf(w, "Preview: %s\n", f)
		}
		return
	}

	fmt.Fprintln(w, "\nCommitted:")
	for _, tr := range s.Result.Tables {
		fmt.Fprintf(w, "  %-22s inserted %d, errors %d", tr.Table, tr.Inserted, tr.Failed)
		if tr.Dropped > 0 {
			fmt.Fprintf(w, ", dropped %d", tr.Dropped)
		}
		fmt.Fprintln(w)
	}

	if failures := s.Result.Failures; len(failures) > 0 {
		fmt.Fprintf(w, "\nFailed records (%d):\n", len(failures))
		for _, f := range failures[:min(len(failures), limit)] {
			fmt.Fprintf(w, "  %s %s [%s]: %s\n", f.Table, f.Identifier, f.Source, f.Error)
		}
		if len(failures) > limit {
			fmt.Fprintf(w, "  ... and %d more\n", len(failures)-limit)
		}
	}

	fmt.Fprintf(w, "\nTo roll back this import run: fern --rollback %s\n", s.BatchID)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
