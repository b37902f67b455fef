// Package normalizers coerces loosely typed spreadsheet cells into typed
// record values. Every coercion degrades to "no value" instead of failing.
package normalizers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/utils"
	"github.com/shopspring/decimal"
)

// SpreadsheetEpoch is day zero of spreadsheet date serials.
var SpreadsheetEpoch = models.NewDate(1899, time.December, 30)

// maxSerial is 9999-12-31 as a serial.
const maxSerial = 2958465

// DateLayouts are tried in order; the first that parses wins.
var DateLayouts = []string{
	"2.1.2006", // day.month.year
	"2006-1-2", // ISO
	"1/2/2006", // month/day/year
	"2/1/2006", // day/month/year
	"2006/1/2", // year/month/day
}

// numberStrip holds the characters removed before numeric parsing.
var numberStrip = strings.NewReplacer(",", "", " ", "", " ", "", "$", "", "€", "", "%", "")

// IsBlank reports whether a cell holds nothing worth reading.
func IsBlank(cell any) bool {
	switch v := cell.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}

// ParseText trims a cell into a string. Empty cells yield no value.
func ParseText(cell any) (string, bool) {
	var s string
	switch v := cell.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case time.Time:
		s = models.DateOf(v).String()
	case models.Date:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// ParseDate accepts a native date, a spreadsheet serial or a string in one
// of DateLayouts.
func ParseDate(cell any) (models.Date, bool) {
	switch v := cell.(type) {
	case nil:
		return models.Date{}, false
	case models.Date:
		return v, !v.IsZero()
	case time.Time:
		if v.IsZero() {
			return models.Date{}, false
		}
		return models.DateOf(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return models.Date{}, false
		}
		for _, layout := range DateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return models.DateOf(t), true
			}
		}
		// Raw cell reads hand serials over as text.
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FromSerial(f)
		}
		return models.Date{}, false
	}

	if utils.IsNumeric(cell) {
		f, err := utils.AnyToType[float64](cell)
		if err != nil {
			return models.Date{}, false
		}
		return FromSerial(f)
	}
	return models.Date{}, false
}

// FromSerial converts a spreadsheet serial to a date. The fractional part is
// a time of day and is dropped. Serials at or below zero are treated as
// blank.
func FromSerial(serial float64) (models.Date, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) {
		return models.Date{}, false
	}
	days := math.Trunc(serial)
	if days <= 0 || days > maxSerial {
		return models.Date{}, false
	}
	return SpreadsheetEpoch.AddDays(int(days)), true
}

// ParseDecimal parses a cell into an exact decimal. Thousands separators,
// currency glyphs and percent signs are stripped; "" and "-" yield no value.
func ParseDecimal(cell any) (decimal.Decimal, bool) {
	switch v := cell.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return v, true
	case string:
		cleaned := numberStrip.Replace(strings.TrimSpace(v))
		if cleaned == "" || cleaned == "-" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case bool:
		return decimal.Decimal{}, false
	}

	if utils.IsNumeric(cell) {
		f, err := utils.AnyToType[float64](cell)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(f), true
	}
	return decimal.Decimal{}, false
}

// ParseNumber is ParseDecimal reduced to a finite float64.
func ParseNumber(cell any) (float64, bool) {
	d, ok := ParseDecimal(cell)
	if !ok {
		return 0, false
	}
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInteger parses a number and truncates it toward zero.
func ParseInteger(cell any) (int64, bool) {
	d, ok := ParseDecimal(cell)
	if !ok {
		return 0, false
	}
	t := d.Truncate(0)
	if !t.IsInteger() || t.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || t.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, false
	}
	return t.IntPart(), true
}

// ParseStructure classifies a structure cell. Anything mentioning XL,
// EXCESS or NON is non-proportional; everything else, blank included, is
// proportional.
func ParseStructure(cell any) models.Structure {
	s, ok := ParseText(cell)
	if !ok {
		return models.StructureProportional
	}
	upper := strings.ToUpper(s)
	if strings.Contains(upper, "XL") || strings.Contains(upper, "EXCESS") || strings.Contains(upper, "NON") {
		return models.StructureNonProportional
	}
	return models.StructureProportional
}

// JoinNotes joins the non-empty parts with " | ".
func JoinNotes(parts []string) (string, bool) {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, " | "), true
}
