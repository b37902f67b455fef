package normalizers

import (
	"math"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		cell any
		want string
		ok   bool
	}{
		{name: "serial one", cell: 1.0, want: "1899-12-31", ok: true},
		{name: "serial new year 2025", cell: 45658.0, want: "2025-01-01", ok: true},
		{name: "serial end of 2024", cell: 45657.0, want: "2024-12-31", ok: true},
		{name: "serial int", cell: 45658, want: "2025-01-01", ok: true},
		{name: "serial with time", cell: 45658.75, want: "2025-01-01", ok: true},
		{name: "serial as text", cell: "45658", want: "2025-01-01", ok: true},
		{name: "serial zero is blank", cell: 0.0, ok: false},
		{name: "negative serial is blank", cell: -3.0, ok: false},
		{name: "fraction below one is blank", cell: 0.5, ok: false},
		{name: "dotted unpadded", cell: "5.1.2024", want: "2024-01-05", ok: true},
		{name: "iso unpadded", cell: "2024-1-5", want: "2024-01-05", ok: true},
		{name: "month first unpadded", cell: "1/2/2024", want: "2024-01-02", ok: true},
		{name: "day first unpadded fallback", cell: "25/4/2024", want: "2024-04-25", ok: true},
		{name: "year first unpadded", cell: "2024/4/5", want: "2024-04-05", ok: true},
		{name: "dotted", cell: "15.03.2024", want: "2024-03-15", ok: true},
		{name: "iso", cell: " 2024-03-15 ", want: "2024-03-15", ok: true},
		{name: "month first wins", cell: "03/04/2024", want: "2024-03-04", ok: true},
		{name: "day first fallback", cell: "25/04/2024", want: "2024-04-25", ok: true},
		{name: "year first slashes", cell: "2024/04/25", want: "2024-04-25", ok: true},
		{name: "native time", cell: time.Date(2023, time.July, 1, 13, 30, 0, 0, time.UTC), want: "2023-07-01", ok: true},
		{name: "garbage", cell: "next tuesday", ok: false},
		{name: "empty", cell: "", ok: false},
		{name: "nil", cell: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.cell)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestFromSerialBlankAtOrBelowZero(t *testing.T) {
	for _, serial := range []float64{0, -1, 0.99} {
		_, ok := FromSerial(serial)
		assert.False(t, ok, "serial %v", serial)
	}

	d, ok := FromSerial(1)
	require.True(t, ok)
	assert.Equal(t, SpreadsheetEpoch.AddDays(1), d)
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name string
		cell any
		want float64
		ok   bool
	}{
		{name: "thousands", cell: "1,234.50", want: 1234.5, ok: true},
		{name: "dollar", cell: "$1234.50", want: 1234.5, ok: true},
		{name: "euro and nbsp", cell: "€ 1 000", want: 1000, ok: true},
		{name: "percent", cell: "45%", want: 45, ok: true},
		{name: "negative", cell: "-12.5", want: -12.5, ok: true},
		{name: "dash", cell: "-", ok: false},
		{name: "empty", cell: "", ok: false},
		{name: "text", cell: "n/a", ok: false},
		{name: "float", cell: 7.25, want: 7.25, ok: true},
		{name: "int", cell: 42, want: 42, ok: true},
		{name: "inf", cell: math.Inf(1), ok: false},
		{name: "nan", cell: math.NaN(), ok: false},
		{name: "bool", cell: true, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseNumber(tt.cell)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestParseInteger(t *testing.T) {
	n, ok := ParseInteger("365.9")
	assert.True(t, ok)
	assert.Equal(t, int64(365), n)

	_, ok = ParseInteger("-")
	assert.False(t, ok)
}

func TestParseText(t *testing.T) {
	s, ok := ParseText("  Acme  ")
	assert.True(t, ok)
	assert.Equal(t, "Acme", s)

	s, ok = ParseText(12345.0)
	assert.True(t, ok)
	assert.Equal(t, "12345", s)

	_, ok = ParseText("   ")
	assert.False(t, ok)
}

func TestParseStructure(t *testing.T) {
	assert.Equal(t, models.StructureNonProportional, ParseStructure("XL"))
	assert.Equal(t, models.StructureNonProportional, ParseStructure("Excess of Loss"))
	assert.Equal(t, models.StructureNonProportional, ParseStructure("non-prop"))
	assert.Equal(t, models.StructureProportional, ParseStructure("Quota Share %"))
	assert.Equal(t, models.StructureProportional, ParseStructure(""))
	assert.Equal(t, models.StructureProportional, ParseStructure(nil))
}

func TestJoinNotes(t *testing.T) {
	notes, ok := JoinNotes([]string{" a ", "", "b"})
	assert.True(t, ok)
	assert.Equal(t, "a | b", notes)

	_, ok = JoinNotes([]string{"", "  "})
	assert.False(t, ok)
}

func inwardRow(cells map[int]any) models.RawRow {
	row := models.RawRow{Sheet: "2024", Number: 5, Cells: make([]any, 50)}
	for i, v := range cells {
		row.Cells[i] = v
	}
	return row
}

func TestNormalizeInward(t *testing.T) {
	n := New()
	row := inwardRow(map[int]any{
		1:  "Tashkent Metro",
		2:  "note a",
		5:  " Acme Insurance ",
		7:  "C-100",
		16: "Uzbekistan",
		25: 45658.0,
		31: "XL 2nd layer",
		32: "1,000,000",
		39: "bad share",
	})

	rec, ok := n.Normalize(row, schema.Inward())
	require.True(t, ok)

	assert.Equal(t, models.TableInwardReinsurance, rec.Table)
	assert.Equal(t, "Acme Insurance", rec.Get("cedant_name"))
	assert.Equal(t, "C-100", rec.Get("contract_number"))
	assert.Equal(t, models.NewDate(2025, time.January, 1), rec.Get("inception_date"))
	assert.Equal(t, 1000000.0, rec.Get("limit_of_liability"))
	assert.Equal(t, models.StructureNonProportional, rec.Get("structure"))
	assert.Equal(t, "note a", rec.Get("notes"))
	assert.True(t, rec.IsNull("our_share"))
	assert.True(t, rec.IsNull("broker_name"))

	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, "our_share", rec.Warnings[0].Field)
}

func TestNormalizeRejectsSparseRows(t *testing.T) {
	n := New()
	row := inwardRow(map[int]any{16: "Kazakhstan", 41: 500.0, 31: "XL"})

	rec, ok := n.Normalize(row, schema.Inward())
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestNormalizeLabelledNotes(t *testing.T) {
	n := New()
	cells := make([]any, 47)
	cells[0] = "Foreign inward"
	cells[4] = "Marsh"
	cells[12] = "Samarkand"
	cells[14] = "usd"
	cells[35] = "2,500"

	rec, ok := n.Normalize(models.RawRow{Sheet: "Claims", Number: 3, Cells: cells}, schema.Claims())
	require.True(t, ok)
	assert.Equal(t, "Broker/Reinsurer: Marsh | City: Samarkand", rec.Get("notes"))
	assert.Equal(t, 2500.0, rec.Get("total_loss"))
	assert.Empty(t, rec.Warnings)
}

func TestRegisterOverridesParser(t *testing.T) {
	n := New()
	n.Register(schema.ColumnText, func(cell any) (any, bool) { return "X", true })

	rec, ok := n.Normalize(models.RawRow{Sheet: "Slips", Number: 2, Cells: []any{"S-1"}}, schema.Slips())
	require.True(t, ok)
	assert.Equal(t, "X", rec.Get("slipNumber"))
}
