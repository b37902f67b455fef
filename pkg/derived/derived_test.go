package derived

import (
	"strings"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/keywords"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)

func newResolver() *Resolver {
	return New(keywords.Defaults(), WithClock(func() time.Time { return fixedNow }))
}

func TestOrigin(t *testing.T) {
	tables := keywords.Defaults()

	assert.Equal(t, models.OriginDomestic, Origin("Republic of Uzbekistan", "", tables))
	assert.Equal(t, models.OriginDomestic, Origin("UZ", "", tables))
	assert.Equal(t, models.OriginDomestic, Origin("Kazakhstan", "uzs", tables))
	assert.Equal(t, models.OriginForeign, Origin("Kazakhstan", "USD", tables))
	assert.Equal(t, models.OriginForeign, Origin("Uzhgorod", "", tables))
	assert.Equal(t, models.OriginForeign, Origin("", "", tables))
}

func TestUnderwritingYear(t *testing.T) {
	assert.Equal(t, 2023, UnderwritingYear(models.NewDate(2023, time.May, 1), "2024", fixedNow))
	assert.Equal(t, 2022, UnderwritingYear(models.Date{}, "Inward 2022 portfolio", fixedNow))
	assert.Equal(t, 2025, UnderwritingYear(models.Date{}, "Sheet1", fixedNow))
}

func TestSourceTypeOf(t *testing.T) {
	rules := keywords.Defaults().SourceTypes

	assert.Equal(t, models.SourceTypeInwardForeign, SourceTypeOf("Foreign Inward RE", rules))
	assert.Equal(t, models.SourceTypeInwardDomestic, SourceTypeOf("local inward", rules))
	assert.Equal(t, models.SourceTypeInwardDomestic, SourceTypeOf("Domestic Inward", rules))
	assert.Equal(t, models.SourceTypeDirect, SourceTypeOf("Direct insurance", rules))
	assert.Equal(t, models.SourceTypeOutward, SourceTypeOf("Local Outward", rules))
	assert.Equal(t, models.SourceTypeUnknown, SourceTypeOf("misc", rules))
	assert.Equal(t, models.SourceTypeUnknown, SourceTypeOf("", rules))
}

func TestLiabilityAndStatus(t *testing.T) {
	assert.Equal(t, models.LiabilityActive, LiabilityOf(10, 0))
	assert.Equal(t, models.LiabilityActive, LiabilityOf(0, 10))
	assert.Equal(t, models.LiabilityInformational, LiabilityOf(0, 0))

	assert.Equal(t, models.ClaimStatusOpen, StatusOf(100, 5))
	assert.Equal(t, models.ClaimStatusClosed, StatusOf(100, 0))
	assert.Equal(t, models.ClaimStatusOpen, StatusOf(0, 0))
}

func TestResolveInwardFallbacks(t *testing.T) {
	rec := models.NewRecord(models.TableInwardReinsurance, "2024", 12)
	rec.Set("original_insured_name", "Tashkent Metro")
	rec.Set("territory", "Uzbekistan")
	rec.Set("contract_number", nil)
	rec.Set("cedant_name", nil)
	rec.Set("our_share", nil)
	rec.Set("gross_premium", 250.0)

	newResolver().Resolve(rec, schema.KindInward, "abcd1234")

	assert.Equal(t, "IMPORT-2024-12", rec.Get("contract_number"))
	assert.Equal(t, UnknownCedant, rec.Get("cedant_name"))
	assert.Equal(t, DefaultTypeOfCover, rec.Get("type_of_cover"))
	assert.Equal(t, DefaultClassOfCover, rec.Get("class_of_cover"))
	assert.Equal(t, models.NewDate(2025, time.June, 15), rec.Get("inception_date"))
	assert.Equal(t, models.NewDate(2026, time.June, 15), rec.Get("expiry_date"))
	assert.Equal(t, "USD", rec.Get("currency"))
	assert.Equal(t, 0.0, rec.Get("limit_of_liability"))
	assert.Equal(t, 250.0, rec.Get("gross_premium"))
	assert.Equal(t, 100.0, rec.Get("our_share"))
	assert.Equal(t, models.OriginDomestic, rec.Get("origin"))
	assert.Equal(t, "Uzbekistan", rec.Get("cedant_country"))
	assert.Equal(t, "FAC", rec.Get("type"))
	assert.Equal(t, "ACTIVE", rec.Get("status"))
	assert.Equal(t, 2024, rec.Get("uw_year"))
	assert.Equal(t, "abcd1234", rec.Get(models.FieldImportBatchID))
	assert.Equal(t, "Excel:2024:Row12", rec.Get(models.FieldImportSource))

	fields := make([]string, 0, len(rec.Warnings))
	for _, w := range rec.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{
		"contract_number", "cedant_name", "type_of_cover", "class_of_cover",
		"inception_date", "expiry_date", "currency", "limit_of_liability", "our_share",
	}, fields)
}

func TestResolveOutward(t *testing.T) {
	rec := models.NewRecord(models.TablePolicies, "Outward", 4)
	rec.Set("policyNumber", "P-7")
	rec.Set("reinsurerName", "Munich Re")
	rec.Set("cededShare", 40.0)
	rec.Set("cededPremiumForeign", nil)
	rec.Set("currency", "EUR")

	newResolver().Resolve(rec, schema.KindOutward, "b1")

	assert.Equal(t, "REINSURANCE", rec.Get("channel"))
	assert.Equal(t, "OUTWARD", rec.Get("recordType"))
	assert.Equal(t, true, rec.Get("hasOutwardReinsurance"))
	assert.Equal(t, "EUR", rec.Get("currency"))
	assert.Equal(t, []map[string]any{{"name": "Munich Re", "share": 40.0, "premium": nil}}, rec.Get("reinsurers"))
	assert.Empty(t, rec.Warnings)
}

func TestResolveContracts(t *testing.T) {
	rec := models.NewRecord(models.TablePolicies, "Insurance Contracts", 9)
	rec.Set("insuredName", "Acme")

	New(keywords.Defaults(), WithDefaultCurrency("eur")).Resolve(rec, schema.KindContracts, "b2")

	assert.Equal(t, "DIRECT", rec.Get("channel"))
	assert.Equal(t, "INSURANCE", rec.Get("recordType"))
	assert.Equal(t, false, rec.Get("hasOutwardReinsurance"))
	assert.Equal(t, "IMPORT-Insurance Contracts-9", rec.Get("policyNumber"))
	assert.Equal(t, "EUR", rec.Get("currency"))
}

func TestResolveSlip(t *testing.T) {
	rec := models.NewRecord(models.TableSlips, "Slips", 3)
	rec.Set("slipNumber", "S-1")
	rec.Set("limitNational", 1500.5)

	newResolver().Resolve(rec, schema.KindSlips, "b3")

	assert.Equal(t, "Limit (national): 1500.5", rec.Get("notes"))
	assert.True(t, rec.IsNull("limitNational"))
	_, present := rec.Fields["limitNational"]
	assert.False(t, present)
	assert.Equal(t, false, rec.Get("isDeleted"))
	assert.Equal(t, []map[string]any{}, rec.Get("reinsurers"))
}

func TestResolveSlipLargeLimitIsPlainDecimal(t *testing.T) {
	rec := models.NewRecord(models.TableSlips, "Slips", 4)
	rec.Set("slipNumber", "S-2")
	rec.Set("limitNational", 12500000.0)

	newResolver().Resolve(rec, schema.KindSlips, "b3")

	assert.Equal(t, "Limit (national): 12500000", rec.Get("notes"))
}

func TestResolveClaim(t *testing.T) {
	rec := models.NewRecord(models.TableClaims, "Claims", 7)
	rec.Set("source_label", "Foreign inward")
	rec.Set("reserve_fc", 800.0)
	rec.Set("total_loss", 1000.0)
	rec.Set("paid_fc", 300.0)
	rec.Set("outstanding", 0.0)
	rec.Set("our_share_decimal", 0.005)
	rec.Set("notes", "City: Bukhara")
	rec.Set("description", strings.Repeat("x", 1200))

	newResolver().Resolve(rec, schema.KindClaims, "b4")

	assert.Equal(t, models.SourceTypeInwardForeign, rec.Get("source_type"))
	assert.Equal(t, "IMP-CLM-7", rec.Get("claim_number"))
	assert.Equal(t, models.NewDate(2025, time.June, 15), rec.Get("report_date"))
	assert.Equal(t, models.LiabilityActive, rec.Get("liability_type"))
	assert.Equal(t, models.ClaimStatusClosed, rec.Get("status"))
	assert.Equal(t, 1000.0, rec.Get("imported_total_incurred"))
	assert.Equal(t, 300.0, rec.Get("imported_total_paid"))
	assert.Equal(t, false, rec.Get("is_deleted"))
	assert.Len(t, rec.Get("description"), DescriptionMaxLen)
	assert.Equal(t, 0.5, rec.Get("our_share_percentage"))
}

func TestResolveClaimDescriptionFallsBackToNotes(t *testing.T) {
	rec := models.NewRecord(models.TableClaims, "Claims", 8)
	rec.Set("source_label", "direct")
	rec.Set("claim_number", "CL-1")
	rec.Set("notes", "Risk: fire")

	newResolver().Resolve(rec, schema.KindClaims, "b5")

	assert.Equal(t, "Risk: fire", rec.Get("description"))
	assert.Equal(t, models.LiabilityInformational, rec.Get("liability_type"))
	assert.Equal(t, models.ClaimStatusOpen, rec.Get("status"))
	assert.Equal(t, 0.0, rec.Get("imported_total_incurred"))
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, "report_date", rec.Warnings[0].Field)
}
