package spectral

import (
	"slices"
	"strings"
)

// Selector names the indices to compute. Each token is "all", a category
// token, or an index short name.
type Selector []string

const selectAll = "all"

func All() Selector { return Selector{selectAll} }

func Names(names ...string) Selector { return Selector(slices.Clone(names)) }

func InCategory(c Category) Selector { return Selector{string(c)} }

// Expand resolves s against reg. Tokens expand in selector order; "all" and
// categories expand sorted by short name. Duplicates keep their first
// position. Names not in reg are returned separately.
func (s Selector) Expand(reg *Registry) (names, unknown []string) {
	seen := map[string]struct{}{}
	add := func(n string) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, tok := range s {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.EqualFold(tok, selectAll) {
			for _, n := range reg.Names() {
				add(n)
			}
			continue
		}
		if _, ok := reg.Lookup(tok); ok {
			add(tok)
			continue
		}
		if c := Category(strings.ToLower(tok)); reg.hasCategory(c) {
			for _, n := range reg.InCategory(c) {
				add(n)
			}
			continue
		}
		if !slices.Contains(unknown, tok) {
			unknown = append(unknown, tok)
		}
	}
	return names, unknown
}
