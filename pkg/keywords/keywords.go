// Package keywords holds the configurable keyword tables that drive the
// substring classifiers: entity types, domestic origin, claim source types,
// skipped sheets and header detection.
//
// The tables are plain data. The classification algorithms live with their
// callers and take a Tables value, so each table can be swapped from a YAML
// file without touching the code that consumes it.
package keywords

import (
	"fmt"
	"os"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"gopkg.in/yaml.v3"
)

// SourceTypeRule maps a substring of a claim's source label to a source type.
// Rules are evaluated in order and the first match wins.
type SourceTypeRule struct {
	Match string            `yaml:"match"`
	Type  models.SourceType `yaml:"type"`
}

type Tables struct {
	Broker      []string `yaml:"broker"`
	Insurance   []string `yaml:"insurance"`
	Reinsurance []string `yaml:"reinsurance"`

	// DomesticTerritory entries match as substrings, DomesticCodes as whole values.
	DomesticTerritory []string `yaml:"domestic_territory"`
	DomesticCodes     []string `yaml:"domestic_codes"`
	DomesticCurrency  string   `yaml:"domestic_currency"`

	SourceTypes    []SourceTypeRule `yaml:"source_types"`
	SkipSheets     []string         `yaml:"skip_sheets"`
	HeaderKeywords []string         `yaml:"header_keywords"`
}

func Defaults() Tables {
	return Tables{
		Broker:            []string{"broker"},
		Insurance:         []string{"insurance", "страхов", "insuranc"},
		Reinsurance:       []string{"reinsur", "перестрах"},
		DomesticTerritory: []string{"uzbek"},
		DomesticCodes:     []string{"uz"},
		DomesticCurrency:  "UZS",
		SourceTypes: []SourceTypeRule{
			{Match: "foreign inward", Type: models.SourceTypeInwardForeign},
			{Match: "local inward", Type: models.SourceTypeInwardDomestic},
			{Match: "domestic inward", Type: models.SourceTypeInwardDomestic},
			{Match: "direct", Type: models.SourceTypeDirect},
			{Match: "local outward", Type: models.SourceTypeOutward},
		},
		SkipSheets:     []string{"template", "blank", "summary", "pivot", "chart"},
		HeaderKeywords: []string{"insured", "policy", "договор", "застрахован", "slip", "contract", "premium"},
	}
}

// Load reads a YAML file and overlays every non-empty table onto the defaults.
// An empty path returns the defaults.
func Load(path string) (Tables, error) {
	tables := Defaults()
	if path == "" {
		return tables, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return tables, fmt.Errorf("failed to read keyword tables %s: %w", path, err)
	}

	var override Tables
	if err := yaml.Unmarshal(b, &override); err != nil {
		return tables, fmt.Errorf("failed to parse keyword tables %s: %w", path, err)
	}

	return tables.Merge(override), nil
}

// Merge returns t with every non-empty table of o replacing its counterpart.
func (t Tables) Merge(o Tables) Tables {
	if len(o.Broker) > 0 {
		t.Broker = o.Broker
	}
	if len(o.Insurance) > 0 {
		t.Insurance = o.Insurance
	}
	if len(o.Reinsurance) > 0 {
		t.Reinsurance = o.Reinsurance
	}
	if len(o.DomesticTerritory) > 0 {
		t.DomesticTerritory = o.DomesticTerritory
	}
	if len(o.DomesticCodes) > 0 {
		t.DomesticCodes = o.DomesticCodes
	}
	if o.DomesticCurrency != "" {
		t.DomesticCurrency = o.DomesticCurrency
	}
	if len(o.SourceTypes) > 0 {
		t.SourceTypes = o.SourceTypes
	}
	if len(o.SkipSheets) > 0 {
		t.SkipSheets = o.SkipSheets
	}
	if len(o.HeaderKeywords) > 0 {
		t.HeaderKeywords = o.HeaderKeywords
	}
	return t
}

// ContainsAny reports whether text contains any of words, ignoring case.
func ContainsAny(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// EqualsAny reports whether text equals any of words, ignoring case and
// surrounding whitespace.
func EqualsAny(text string, words []string) bool {
	text = strings.TrimSpace(text)
	for _, w := range words {
		if strings.EqualFold(text, strings.TrimSpace(w)) {
			return true
		}
	}
	return false
}

// IsSkippedSheet reports whether a sheet name marks a non-data sheet.
func (t Tables) IsSkippedSheet(name string) bool {
	return ContainsAny(name, t.SkipSheets)
}
