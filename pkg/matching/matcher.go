package matching

import (
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/derived"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/shopspring/decimal"
)

// Parent reference columns on a claim.
const (
	FieldPolicyID = "policy_id"
	FieldInwardID = "inward_reinsurance_id"
	FieldClaimID  = "claim_id"
)

// Step tries one identifier field of the claim against one map.
type Step struct {
	Map   MapName
	Field string
}

// Route is the ordered list of steps for a source type and the claim column
// a hit is written to.
type Route struct {
	Parent string
	Steps  []Step
}

// DefaultRoutes consults exactly one map family per source type, so a claim
// can never resolve to two kinds of parent.
func DefaultRoutes() map[models.SourceType]Route {
	inward := Route{
		Parent: FieldInwardID,
		Steps: []Step{
			{Map: MapInwardByContract, Field: "slip_number"},
			{Map: MapInwardByContract, Field: "contract_number"},
		},
	}
	return map[models.SourceType]Route{
		models.SourceTypeInwardForeign:  inward,
		models.SourceTypeInwardDomestic: inward,
		models.SourceTypeDirect: {
			Parent: FieldPolicyID,
			Steps:  []Step{{Map: MapPoliciesByNumber, Field: "contract_number"}},
		},
		models.SourceTypeOutward: {
			Parent: FieldPolicyID,
			Steps: []Step{
				{Map: MapPoliciesBySlip, Field: "slip_number"},
				{Map: MapPoliciesByNumber, Field: "contract_number"},
			},
		},
	}
}

// Stats summarize a matching pass.
type Stats struct {
	Total         int            `json:"total"`
	MatchedPolicy int            `json:"matched_policy"`
	MatchedInward int            `json:"matched_inward"`
	Unmatched     int            `json:"unmatched"`
	BySourceType  map[string]int `json:"by_source_type"`
}

type Option func(*Matcher)

func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		m.now = now
	}
}

func WithRoutes(routes map[models.SourceType]Route) Option {
	return func(m *Matcher) {
		m.routes = routes
	}
}

func WithDefaultCurrency(currency string) Option {
	return func(m *Matcher) {
		if currency != "" {
			m.defaultCurrency = currency
		}
	}
}

type Matcher struct {
	maps            LookupMaps
	routes          map[models.SourceType]Route
	defaultCurrency string
	now             func() time.Time
	stats           Stats
}

func NewMatcher(maps LookupMaps, opts ...Option) *Matcher {
	m := &Matcher{
		maps:            maps,
		routes:          DefaultRoutes(),
		defaultCurrency: derived.DefaultCurrency,
		now:             time.Now,
		stats:           Stats{BySourceType: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns the parent column and id for a claim. The first step that
// hits wins.
func (m *Matcher) Match(rec *models.Record) (parent, id string, ok bool) {
	sourceType, _ := rec.Get("source_type").(models.SourceType)
	route, known := m.routes[sourceType]
	if !known {
		return "", "", false
	}
	for _, step := range route.Steps {
		if id, ok := m.maps.Lookup(step.Map, rec.Get(step.Field)); ok {
			return route.Parent, id, true
		}
	}
	return "", "", false
}

// Link matches a resolved claim, attaches its transactions and trims it to
// the persisted claim columns. Unmatched claims keep their raw slip and
// contract numbers for manual linking.
func (m *Matcher) Link(rec *models.Record) {
	m.stats.Total++
	sourceType, _ := rec.Get("source_type").(models.SourceType)
	m.stats.BySourceType[string(sourceType)]++

	rec.Set(FieldPolicyID, nil)
	rec.Set(FieldInwardID, nil)

	parent, id, ok := m.Match(rec)
	switch {
	case !ok:
		m.stats.Unmatched++
	case parent == FieldInwardID:
		m.stats.MatchedInward++
		rec.Set(parent, id)
	default:
		m.stats.MatchedPolicy++
		rec.Set(parent, id)
	}

	for _, tx := range Transactions(rec, m.defaultCurrency, models.DateOf(m.now())) {
		rec.AddDependent(tx, FieldClaimID)
	}

	rec.Keep(derived.ClaimColumns...)
}

func (m *Matcher) Stats() Stats {
	out := m.stats
	out.BySourceType = make(map[string]int, len(m.stats.BySourceType))
	for k, v := range m.stats.BySourceType {
		out.BySourceType[k] = v
	}
	return out
}

// Transactions builds the reserve and payment transactions of a claim. A
// reserve is set when a reserve amount is positive and a payment recorded
// when a paid amount is positive.
func Transactions(rec *models.Record, defaultCurrency string, today models.Date) []*models.Record {
	reserve := amount(rec, "reserve_fc")
	paid := amount(rec, "paid_fc")
	totalLoss := amount(rec, "total_loss")

	currency := defaultCurrency
	if c, ok := rec.Text("currency"); ok {
		currency = strings.ToUpper(strings.TrimSpace(c))
	}
	rate := 1.0
	if r, ok := rec.Number("exchange_rate"); ok && r != 0 {
		rate = r
	}
	share := derived.DefaultShare
	if s, ok := rec.Number("our_share_percentage"); ok && s != 0 {
		share = s
	}
	lossDate, hasLoss := rec.Date("loss_date")

	var out []*models.Record
	newTx := func(t models.TransactionType, date models.Date, amt decimal.Decimal, note string) *models.Record {
		tx := models.NewRecord(models.TableClaimTransactions, rec.Sheet, rec.RowNumber)
		tx.Set("transaction_type", t)
		tx.Set("transaction_date", date)
		tx.Set("amount_100pct", amt.InexactFloat64())
		tx.Set("currency", currency)
		tx.Set("exchange_rate", rate)
		tx.Set("our_share_percentage", share)
		tx.Set("notes", note)
		tx.Set(models.FieldImportBatchID, rec.Get(models.FieldImportBatchID))
		return tx
	}

	if reserve.IsPositive() {
		amt := reserve
		if !totalLoss.IsZero() {
			amt = totalLoss
		}
		date := today
		if hasLoss {
			date = lossDate
		}
		out = append(out, newTx(models.TransactionReserveSet, date, amt, "Imported from Excel portfolio (reserve)"))
	}

	if paid.IsPositive() {
		date := today
		if d, ok := rec.Date("payment_date"); ok {
			date = d
		} else if hasLoss {
			date = lossDate
		}
		out = append(out, newTx(models.TransactionPayment, date, paid, "Imported from Excel portfolio (payment)"))
	}

	return out
}

func amount(rec *models.Record, field string) decimal.Decimal {
	f, ok := rec.Number(field)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}
