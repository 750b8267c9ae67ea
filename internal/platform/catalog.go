package platform

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed data/catalog.json
var bundledCatalog []byte

type CatalogEntry struct {
	Type     string `json:"type"`
	Href     string `json:"href"`
	Title    string `json:"title,omitempty"`
	DOI      string `json:"doi,omitempty"`
	Citation string `json:"citation,omitempty"`
}

type Catalog struct {
	entries map[string]CatalogEntry
}

func LoadCatalog(raw []byte) (*Catalog, error) {
	var m map[string]CatalogEntry
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("platform: decode catalog: %w", err)
	}
	return &Catalog{entries: m}, nil
}

// DefaultCatalog returns the bundled catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(bundledCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Entry(id string) (CatalogEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

func (c *Catalog) DOI(id string) string { return c.entries[id].DOI }

func (c *Catalog) Citation(id string) string { return c.entries[id].Citation }

// Validate checks that every platform of t has a catalog entry.
func (c *Catalog) Validate(t *Table) error {
	for _, id := range t.IDs() {
		e, ok := c.entries[id]
		if !ok {
			return fmt.Errorf("platform: %s has no catalog entry", id)
		}
		if e.Href == "" {
			return fmt.Errorf("platform: catalog entry %s has no href", id)
		}
	}
	return nil
}
