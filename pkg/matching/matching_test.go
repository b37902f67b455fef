package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = models.NewDate(2025, time.June, 15)

func fixedClock() time.Time {
	return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
}

func claim(sourceType models.SourceType, fields map[string]any) *models.Record {
	rec := models.NewRecord(models.TableClaims, "Claims", 3)
	rec.Set("claim_number", "CL-1")
	rec.Set("source_type", sourceType)
	rec.Set(models.FieldImportBatchID, "b1")
	for k, v := range fields {
		rec.Set(k, v)
	}
	return rec
}

func testMaps() LookupMaps {
	maps := LookupMaps{}
	maps.Add(MapInwardByContract, " IR-100 ", "inward-1")
	maps.Add(MapInwardByContract, "SL-9", "inward-2")
	maps.Add(MapPoliciesByNumber, "IR-100", "policy-1")
	maps.Add(MapPoliciesByNumber, "P-5", "policy-5")
	maps.Add(MapPoliciesBySlip, "sl-7", "policy-7")
	return maps
}

func TestBuildLookupMaps(t *testing.T) {
	st := store.NewMemory()
	st.Seed(models.TablePolicies,
		store.Row{"id": "p1", "policyNumber": " P-1 ", "slipNumber": "S-1"},
		store.Row{"id": "p2", "policyNumber": "P-2"},
	)
	st.Seed(models.TableInwardReinsurance, store.Row{"id": "i1", "contract_number": "C-1"})

	maps, errs := BuildLookupMaps(context.Background(), st)
	assert.Empty(t, errs)

	id, ok := maps.Lookup(MapPoliciesByNumber, "p-1")
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	id, ok = maps.Lookup(MapPoliciesBySlip, "s-1")
	assert.True(t, ok)
	assert.Equal(t, "p1", id)

	id, ok = maps.Lookup(MapInwardByContract, "C-1")
	assert.True(t, ok)
	assert.Equal(t, "i1", id)

	assert.Equal(t, map[MapName]int{MapInwardByContract: 1, MapPoliciesByNumber: 2, MapPoliciesBySlip: 1}, maps.Sizes())
}

func TestBuildLookupMapsToleratesReadFailure(t *testing.T) {
	st := store.NewMemory()
	st.Seed(models.TableInwardReinsurance, store.Row{"id": "i1", "contract_number": "C-1"})
	st.SetFault(func(op, table string, rows []store.Row) error {
		if table == models.TablePolicies {
			return store.NewError(store.ConnectivityLost, table, op, errors.New("timeout"))
		}
		return nil
	})

	maps, errs := BuildLookupMaps(context.Background(), st)
	require.Len(t, errs, 1)
	assert.Empty(t, maps[MapPoliciesByNumber])
	_, ok := maps.Lookup(MapInwardByContract, "c-1")
	assert.True(t, ok)
}

func TestMatchInwardUsesContractMapOnly(t *testing.T) {
	m := NewMatcher(testMaps())

	parent, id, ok := m.Match(claim(models.SourceTypeInwardForeign, map[string]any{"contract_number": "ir-100"}))
	require.True(t, ok)
	assert.Equal(t, FieldInwardID, parent)
	assert.Equal(t, "inward-1", id)

	_, _, ok = m.Match(claim(models.SourceTypeInwardDomestic, map[string]any{"contract_number": "P-5"}))
	assert.False(t, ok)
}

func TestMatchInwardTriesSlipFirst(t *testing.T) {
	m := NewMatcher(testMaps())

	_, id, ok := m.Match(claim(models.SourceTypeInwardDomestic, map[string]any{"slip_number": "SL-9", "contract_number": "IR-100"}))
	require.True(t, ok)
	assert.Equal(t, "inward-2", id)
}

func TestMatchDirectAndOutward(t *testing.T) {
	m := NewMatcher(testMaps())

	parent, id, ok := m.Match(claim(models.SourceTypeDirect, map[string]any{"contract_number": "IR-100"}))
	require.True(t, ok)
	assert.Equal(t, FieldPolicyID, parent)
	assert.Equal(t, "policy-1", id)

	_, _, ok = m.Match(claim(models.SourceTypeDirect, map[string]any{"slip_number": "SL-7"}))
	assert.False(t, ok)

	_, id, ok = m.Match(claim(models.SourceTypeOutward, map[string]any{"slip_number": "SL-7", "contract_number": "P-5"}))
	require.True(t, ok)
	assert.Equal(t, "policy-7", id)

	_, id, ok = m.Match(claim(models.SourceTypeOutward, map[string]any{"slip_number": "none", "contract_number": "P-5"}))
	require.True(t, ok)
	assert.Equal(t, "policy-5", id)

	_, _, ok = m.Match(claim(models.SourceTypeUnknown, map[string]any{"contract_number": "P-5"}))
	assert.False(t, ok)
}

func TestLink(t *testing.T) {
	m := NewMatcher(testMaps(), WithClock(fixedClock))

	matched := claim(models.SourceTypeInwardForeign, map[string]any{
		"contract_number":      "IR-100",
		"reserve_fc":           800.0,
		"total_loss":           1000.0,
		"paid_fc":              250.0,
		"currency":             " eur ",
		"exchange_rate":        nil,
		"loss_date":            models.NewDate(2024, time.March, 2),
		"payment_date":         models.NewDate(2024, time.April, 9),
		"our_share_percentage": 0.5,
	})
	unmatched := claim(models.SourceTypeOutward, map[string]any{"slip_number": "X-1", "contract_number": "Y-1"})

	m.Link(matched)
	m.Link(unmatched)

	assert.Equal(t, "inward-1", matched.Get(FieldInwardID))
	assert.True(t, matched.IsNull(FieldPolicyID))
	_, present := matched.Fields["reserve_fc"]
	assert.False(t, present)

	require.Len(t, matched.Dependents, 2)
	reserve := matched.Dependents[0]
	assert.Equal(t, FieldClaimID, reserve.ParentField)
	assert.Equal(t, models.TransactionReserveSet, reserve.Get("transaction_type"))
	assert.Equal(t, 1000.0, reserve.Get("amount_100pct"))
	assert.Equal(t, models.NewDate(2024, time.March, 2), reserve.Get("transaction_date"))
	assert.Equal(t, "EUR", reserve.Get("currency"))
	assert.Equal(t, 1.0, reserve.Get("exchange_rate"))
	assert.Equal(t, 0.5, reserve.Get("our_share_percentage"))
	assert.Equal(t, "b1", reserve.Get(models.FieldImportBatchID))

	payment := matched.Dependents[1]
	assert.Equal(t, models.TransactionPayment, payment.Get("transaction_type"))
	assert.Equal(t, 250.0, payment.Get("amount_100pct"))
	assert.Equal(t, models.NewDate(2024, time.April, 9), payment.Get("transaction_date"))
	assert.Equal(t, "Imported from Excel portfolio (payment)", payment.Get("notes"))

	assert.Equal(t, "X-1", unmatched.Get("slip_number"))
	assert.Equal(t, "Y-1", unmatched.Get("contract_number"))
	assert.True(t, unmatched.IsNull(FieldPolicyID))
	assert.Empty(t, unmatched.Dependents)

	assert.Equal(t, Stats{
		Total:         2,
		MatchedInward: 1,
		Unmatched:     1,
		BySourceType:  map[string]int{"inward-foreign": 1, "outward": 1},
	}, m.Stats())
}

func TestTransactionDefaults(t *testing.T) {
	rec := claim(models.SourceTypeDirect, map[string]any{"reserve_fc": 40.0, "paid_fc": 10.0})

	txs := Transactions(rec, "USD", today)
	require.Len(t, txs, 2)

	assert.Equal(t, 40.0, txs[0].Get("amount_100pct"))
	assert.Equal(t, today, txs[0].Get("transaction_date"))
	assert.Equal(t, "USD", txs[0].Get("currency"))
	assert.Equal(t, 100.0, txs[0].Get("our_share_percentage"))
	assert.Equal(t, today, txs[1].Get("transaction_date"))
}

func TestTransactionsSkipNonPositiveAmounts(t *testing.T) {
	rec := claim(models.SourceTypeDirect, map[string]any{"reserve_fc": 0.0, "paid_fc": -5.0, "total_loss": 900.0})
	assert.Empty(t, Transactions(rec, "USD", today))
}
