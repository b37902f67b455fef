package schema

import (
	"strings"

	"github.com/Gobusters/ectolinq"
)

// Catalog routes sheet names to schemas. Schemas are tried in order and the
// first whose pattern occurs in the lower-cased sheet name wins; unmatched
// sheets use the fallback.
type Catalog struct {
	schemas  []*Schema
	fallback *Schema
}

func NewCatalog(fallback *Schema, schemas ...*Schema) *Catalog {
	return &Catalog{
		schemas:  append([]*Schema(nil), schemas...),
		fallback: fallback,
	}
}

// DefaultCatalog orders the built-ins so that the more specific patterns
// ("outward re" slips, claims) are checked before the broader ones. Yearly
// sheets with no recognisable name fall back to the inward layout.
func DefaultCatalog() *Catalog {
	inward := Inward()
	return NewCatalog(inward, Slips(), Outward(), Claims(), inward, Contracts())
}

// Route returns the schema for a sheet name.
func (c *Catalog) Route(sheet string) *Schema {
	name := strings.ToLower(sheet)
	for _, s := range c.schemas {
		for _, pattern := range s.sheetPatterns {
			if strings.Contains(name, strings.ToLower(pattern)) {
				return s
			}
		}
	}
	return c.fallback
}

// Get returns the schema of the given kind.
func (c *Catalog) Get(kind Kind) (*Schema, bool) {
	s := ectolinq.Find(c.All(), func(s *Schema) bool { return s.kind == kind })
	return s, s != nil
}

// All returns the distinct schemas of the catalog, fallback first.
func (c *Catalog) All() []*Schema {
	out := make([]*Schema, 0, len(c.schemas)+1)
	seen := make(map[*Schema]bool)
	for _, s := range append([]*Schema{c.fallback}, c.schemas...) {
		if s == nil || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ParseKinds validates a list of kind names.
func ParseKinds(names []string) ([]Kind, error) {
	valid := []Kind{KindInward, KindContracts, KindOutward, KindSlips, KindClaims}
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		k := Kind(strings.ToLower(strings.TrimSpace(n)))
		if k == "" {
			continue
		}
		if !ectolinq.Contains(valid, k) {
			return nil, &UnknownKindError{Name: n}
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return "unknown sheet kind: " + e.Name
}
