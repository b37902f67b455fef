// Package matching links claims to the contract, policy or slip that owns
// them and builds the transactions a matched claim carries.
package matching

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/store"
)

// MapName identifies one identifier → owner id map.
type MapName string

const (
	MapInwardByContract MapName = "inward_by_contract"
	MapPoliciesByNumber MapName = "policies_by_number"
	MapPoliciesBySlip   MapName = "policies_by_slip"
)

// LookupMaps hold identifier → owning record id, keyed by NormalizeKey.
type LookupMaps map[MapName]map[string]string

// NormalizeKey case-folds and trims an identifier.
func NormalizeKey(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

func (m LookupMaps) Add(name MapName, key any, id string) {
	k := NormalizeKey(key)
	if k == "" || id == "" {
		return
	}
	if m[name] == nil {
		m[name] = make(map[string]string)
	}
	m[name][k] = id
}

func (m LookupMaps) Lookup(name MapName, key any) (string, bool) {
	k := NormalizeKey(key)
	if k == "" {
		return "", false
	}
	id, ok := m[name][k]
	return id, ok
}

// Sizes reports the number of keys per map.
func (m LookupMaps) Sizes() map[MapName]int {
	out := make(map[MapName]int, len(m))
	for name, keys := range m {
		out[name] = len(keys)
	}
	return out
}

// BuildLookupMaps reads the persisted policies and inward contracts once. A
// table that cannot be read leaves its maps empty; the read errors are
// returned alongside the maps that could be built.
func BuildLookupMaps(ctx context.Context, st store.Store) (LookupMaps, []error) {
	maps := LookupMaps{
		MapInwardByContract: {},
		MapPoliciesByNumber: {},
		MapPoliciesBySlip:   {},
	}
	var errs []error

	policies, err := st.Select(ctx, models.TablePolicies, store.All, models.FieldID, "policyNumber", "slipNumber")
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to load policies: %w", err))
	}
	for _, p := range policies {
		id := fmt.Sprint(p[models.FieldID])
		maps.Add(MapPoliciesByNumber, p["policyNumber"], id)
		maps.Add(MapPoliciesBySlip, p["slipNumber"], id)
	}

	inward, err := st.Select(ctx, models.TableInwardReinsurance, store.All, models.FieldID, "contract_number")
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to load inward reinsurance: %w", err))
	}
	for _, ir := range inward {
		maps.Add(MapInwardByContract, ir["contract_number"], fmt.Sprint(ir[models.FieldID]))
	}

	return maps, errs
}
