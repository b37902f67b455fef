// Package entities pulls counterparties out of normalized records and
// deduplicates them within a run and against the store.
package entities

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/derived"
	"github.com/Ramsey-B/fern/pkg/keywords"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
)

// ShortNameLength is the length of the short name kept for long names.
const ShortNameLength = 50

// Role is the capacity in which a record references a counterparty.
type Role string

const (
	RoleCedant    Role = "cedant"
	RoleBroker    Role = "broker"
	RoleInsured   Role = "insured"
	RoleReinsurer Role = "reinsurer"
	RoleOther     Role = "other"
)

// Reference names a record field holding a counterparty and the fields to
// read its country from, in order.
type Reference struct {
	Field   string
	Role    Role
	Country []string
}

// DefaultReferences lists the counterparty fields of each table in
// extraction order.
func DefaultReferences() map[string][]Reference {
	return map[string][]Reference{
		models.TableInwardReinsurance: {
			{Field: "cedant_name", Role: RoleCedant, Country: []string{"cedant_country", "territory"}},
			{Field: "broker_name", Role: RoleBroker},
			{Field: "original_insured_name", Role: RoleInsured, Country: []string{"territory"}},
		},
		models.TablePolicies: {
			{Field: "insuredName", Role: RoleInsured, Country: []string{"territory"}},
			{Field: "brokerName", Role: RoleBroker},
			{Field: "reinsurerName", Role: RoleReinsurer},
		},
		models.TableSlips: {
			{Field: "insuredName", Role: RoleInsured},
			{Field: "brokerReinsurer", Role: RoleOther},
		},
	}
}

// Classify assigns an entity type. Rules are checked in order and the first
// match wins, so a broker whose name mentions insurance is still a broker
// and a reinsurer named "... Reinsurance" is an insurance company.
func Classify(name string, role Role, tables keywords.Tables) models.EntityType {
	switch {
	case role == RoleBroker || keywords.ContainsAny(name, tables.Broker):
		return models.EntityTypeBroker
	case keywords.ContainsAny(name, tables.Insurance):
		return models.EntityTypeInsuranceCompany
	case keywords.ContainsAny(name, tables.Reinsurance):
		return models.EntityTypeReinsurer
	case role == RoleCedant:
		return models.EntityTypeInsuranceCompany
	case role == RoleInsured:
		return models.EntityTypeInsured
	}
	return models.EntityTypeOther
}

// DedupKey collapses whitespace runs and trims. Case is preserved.
func DedupKey(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

type Extractor struct {
	tables     keywords.Tables
	references map[string][]Reference
}

func NewExtractor(tables keywords.Tables, references map[string][]Reference) *Extractor {
	if references == nil {
		references = DefaultReferences()
	}
	return &Extractor{tables: tables, references: references}
}

// Extract returns the distinct counterparties referenced by records, in
// first-seen order. The first reference to a key decides its type and
// country.
func (e *Extractor) Extract(records []*models.Record, batchID string) []models.LegalEntity {
	seen := make(map[string]bool)
	var out []models.LegalEntity

	for _, rec := range records {
		for _, ref := range e.references[rec.Table] {
			name, ok := rec.Text(ref.Field)
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if ref.Role == RoleCedant && name == derived.UnknownCedant {
				continue
			}
			key := DedupKey(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true

			entity := models.LegalEntity{
				FullName:      name,
				Type:          Classify(name, ref.Role, e.tables),
				ImportBatchID: batchID,
			}
			if runes := []rune(name); len(runes) > ShortNameLength {
				short := string(runes[:ShortNameLength])
				entity.ShortName = &short
			}
			for _, f := range ref.Country {
				if country, ok := rec.Text(f); ok {
					entity.Country = &country
					break
				}
			}
			out = append(out, entity)
		}
	}
	return out
}

// FilterExisting drops candidates whose dedup key already exists in the
// store. When the store cannot be read every candidate is returned along
// with the error.
func FilterExisting(ctx context.Context, st store.Store, candidates []models.LegalEntity) ([]models.LegalEntity, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := st.Select(ctx, models.TableLegalEntities, store.All, "fullName")
	if err != nil {
		return candidates, fmt.Errorf("failed to read existing legal entities: %w", err)
	}

	existing := make(map[string]bool, len(rows))
	for _, row := range rows {
		if name, ok := row["fullName"].(string); ok && name != "" {
			existing[DedupKey(name)] = true
		}
	}

	return ectolinq.Filter(candidates, func(e models.LegalEntity) bool {
		return !existing[DedupKey(e.FullName)]
	}), nil
}

// TypeCounts tallies entities by type for previews and summaries.
func TypeCounts(list []models.LegalEntity) map[string]int {
	counts := make(map[string]int)
	for _, e := range list {
		counts[string(e.Type)]++
	}
	return counts
}
