// Package derived fills the fields a normalized record cannot read from its
// sheet: origin, underwriting year, claim status, batch tags and the
// fallbacks that keep every required column populated.
package derived

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/keywords"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/shopspring/decimal"
)

// Fallback values for required columns.
const (
	UnknownCedant       = "Unknown Cedant"
	DefaultTypeOfCover  = "Property"
	DefaultClassOfCover = "All Risks"
	DefaultCurrency     = "USD"
	DefaultShare        = 100.0
	DescriptionMaxLen   = 1000
	CoverPeriodDays     = 365
)

var yearToken = regexp.MustCompile(`20\d{2}`)

type Option func(*Resolver)

// WithClock replaces time.Now, which supplies today's date for fallbacks.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithDefaultCurrency sets the currency written when a row has none.
func WithDefaultCurrency(currency string) Option {
	return func(r *Resolver) {
		if currency != "" {
			r.defaultCurrency = strings.ToUpper(currency)
		}
	}
}

type Resolver struct {
	tables          keywords.Tables
	defaultCurrency string
	now             func() time.Time
}

func New(tables keywords.Tables, opts ...Option) *Resolver {
	r := &Resolver{
		tables:          tables,
		defaultCurrency: DefaultCurrency,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin is DOMESTIC when the territory names the domestic market or the
// currency is the domestic currency.
func Origin(territory, currency string, tables keywords.Tables) models.Origin {
	if territory != "" {
		if keywords.ContainsAny(territory, tables.DomesticTerritory) || keywords.EqualsAny(territory, tables.DomesticCodes) {
			return models.OriginDomestic
		}
	}
	if currency != "" && tables.DomesticCurrency != "" && strings.EqualFold(strings.TrimSpace(currency), tables.DomesticCurrency) {
		return models.OriginDomestic
	}
	return models.OriginForeign
}

// UnderwritingYear takes the inception year, then a 20xx token in label,
// then the current year.
func UnderwritingYear(inception models.Date, label string, now time.Time) int {
	if !inception.IsZero() {
		if y, err := strconv.Atoi(inception.String()[:4]); err == nil {
			return y
		}
	}
	if tok := yearToken.FindString(label); tok != "" {
		y, _ := strconv.Atoi(tok)
		return y
	}
	return now.Year()
}

// SourceTypeOf classifies a claim's source label by the first matching rule.
func SourceTypeOf(label string, rules []keywords.SourceTypeRule) models.SourceType {
	lower := strings.ToLower(strings.TrimSpace(label))
	if lower == "" {
		return models.SourceTypeUnknown
	}
	for _, rule := range rules {
		if rule.Match != "" && strings.Contains(lower, strings.ToLower(rule.Match)) {
			return rule.Type
		}
	}
	return models.SourceTypeUnknown
}

// LiabilityOf is ACTIVE once anything has been reserved or paid.
func LiabilityOf(reserve, paid float64) models.LiabilityType {
	if reserve > 0 || paid > 0 {
		return models.LiabilityActive
	}
	return models.LiabilityInformational
}

// StatusOf is OPEN while anything is outstanding, CLOSED once paid with
// nothing outstanding, and OPEN otherwise.
func StatusOf(paid, outstanding float64) models.ClaimStatus {
	if outstanding > 0 {
		return models.ClaimStatusOpen
	}
	if paid > 0 {
		return models.ClaimStatusClosed
	}
	return models.ClaimStatusOpen
}

// ImportSource is the traceability tag stamped on every record.
func ImportSource(sheet string, row int) string {
	return fmt.Sprintf("Excel:%s:Row%d", sheet, row)
}

// Resolve fills the derived and fallback fields of rec in place and tags it
// with batchID. Each fallback leaves a warning on the record.
func (r *Resolver) Resolve(rec *models.Record, kind schema.Kind, batchID string) {
	today := models.DateOf(r.now())

	switch kind {
	case schema.KindInward:
		r.resolveInward(rec, today)
	case schema.KindContracts:
		r.resolvePolicy(rec)
		rec.Set("channel", "DIRECT")
		rec.Set("recordType", "INSURANCE")
		rec.Set("hasOutwardReinsurance", false)
	case schema.KindOutward:
		r.resolvePolicy(rec)
		rec.Set("channel", "REINSURANCE")
		rec.Set("recordType", "OUTWARD")
		rec.Set("hasOutwardReinsurance", true)
		r.resolveOutwardReinsurers(rec)
	case schema.KindSlips:
		r.resolveSlip(rec)
	case schema.KindClaims:
		r.resolveClaim(rec, today)
	}

	rec.Set(models.FieldImportBatchID, batchID)
	rec.Set(models.FieldImportSource, ImportSource(rec.Sheet, rec.RowNumber))
}

func (r *Resolver) resolveInward(rec *models.Record, today models.Date) {
	territory, _ := rec.Text("territory")
	currency, _ := rec.Text("currency")

	rec.Set("origin", Origin(territory, currency, r.tables))
	rec.Set("type", "FAC")
	rec.Set("status", "ACTIVE")
	rec.Set("cedant_country", rec.Get("territory"))

	inception, _ := rec.Date("inception_date")
	rec.Set("uw_year", UnderwritingYear(inception, rec.Sheet, r.now()))

	r.fallback(rec, "contract_number", fmt.Sprintf("IMPORT-%s-%d", rec.Sheet, rec.RowNumber))
	r.fallback(rec, "cedant_name", UnknownCedant)
	r.fallback(rec, "type_of_cover", DefaultTypeOfCover)
	r.fallback(rec, "class_of_cover", DefaultClassOfCover)
	r.fallback(rec, "inception_date", today)
	r.fallback(rec, "expiry_date", today.AddDays(CoverPeriodDays))
	r.fallback(rec, "currency", r.defaultCurrency)
	r.fallback(rec, "limit_of_liability", 0.0)
	r.fallback(rec, "gross_premium", 0.0)
	r.fallback(rec, "our_share", DefaultShare)
}

func (r *Resolver) resolvePolicy(rec *models.Record) {
	rec.Set("status", "ACTIVE")
	r.fallback(rec, "policyNumber", fmt.Sprintf("IMPORT-%s-%d", rec.Sheet, rec.RowNumber))
	r.fallback(rec, "currency", r.defaultCurrency)
}

func (r *Resolver) resolveOutwardReinsurers(rec *models.Record) {
	name, ok := rec.Text("reinsurerName")
	if !ok {
		return
	}
	rec.Set("reinsurers", []map[string]any{{
		"name":    name,
		"share":   rec.Get("cededShare"),
		"premium": rec.Get("cededPremiumForeign"),
	}})
}

func (r *Resolver) resolveSlip(rec *models.Record) {
	if limit, ok := rec.Number("limitNational"); ok && limit != 0 {
		rec.Set("notes", "Limit (national): "+strconv.FormatFloat(limit, 'f', -1, 64))
	}
	rec.Delete("limitNational")
	rec.Set("isDeleted", false)
	rec.Set("reinsurers", []map[string]any{})
	r.fallback(rec, "currency", r.defaultCurrency)
}

func (r *Resolver) resolveClaim(rec *models.Record, today models.Date) {
	label, _ := rec.Text("source_label")
	rec.Set("source_type", SourceTypeOf(label, r.tables.SourceTypes))

	r.fallback(rec, "claim_number", fmt.Sprintf("IMP-CLM-%d", rec.RowNumber))
	r.fallback(rec, "report_date", today)

	reserve, _ := rec.Number("reserve_fc")
	paid, _ := rec.Number("paid_fc")
	outstanding, _ := rec.Number("outstanding")
	totalLoss, _ := rec.Number("total_loss")

	rec.Set("liability_type", LiabilityOf(reserve, paid))
	rec.Set("status", StatusOf(paid, outstanding))
	rec.Set("imported_total_incurred", max(totalLoss, reserve))
	rec.Set("imported_total_paid", paid)
	rec.Set("is_deleted", false)

	if desc, ok := rec.Text("description"); ok {
		rec.Set("description", models.TruncateMessage(desc, DescriptionMaxLen))
	} else {
		rec.Set("description", rec.Get("notes"))
	}

	if share, ok := rec.Number("our_share_decimal"); ok {
		rec.Set("our_share_percentage", decimal.NewFromFloat(share).Shift(2).InexactFloat64())
	} else {
		rec.Set("our_share_percentage", nil)
	}
}

func (r *Resolver) fallback(rec *models.Record, field string, value any) {
	if !rec.IsNull(field) {
		if s, ok := rec.Get(field).(string); !ok || s != "" {
			return
		}
	}
	rec.Set(field, value)
	rec.Warn(field, "missing, defaulted to %v", value)
}

// ClaimColumns are the columns of a persisted claims row. The remaining
// normalized fields only feed transactions and are dropped once those exist.
var ClaimColumns = []string{
	"claim_number",
	"source_type",
	"slip_number",
	"contract_number",
	"liability_type",
	"status",
	"loss_date",
	"report_date",
	"description",
	"claimant_name",
	"location_country",
	"imported_total_incurred",
	"imported_total_paid",
	"is_deleted",
	"policy_id",
	"inward_reinsurance_id",
	models.FieldImportBatchID,
	models.FieldImportSource,
}
