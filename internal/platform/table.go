// Package platform maps image identifiers onto supported sensor products and
// their canonical band vocabulary.
package platform

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

//go:embed data/bands.json
var bundledBands []byte

// Family groups platforms that share quality-band semantics.
type Family string

const (
	FamilySentinel2  Family = "sentinel2"
	FamilySentinel3  Family = "sentinel3"
	FamilyLandsatL2  Family = "landsat_l2"
	FamilyLandsatTOA Family = "landsat_toa"
	FamilyModisSR    Family = "modis_sr"
	FamilyModisVI    Family = "modis_vi"
	FamilyModisNBAR  Family = "modis_nbar"
)

// Descriptor identifies one supported sensor product. It is built once at
// load time and never modified.
type Descriptor struct {
	ID                 string
	Family             Family
	SurfaceReflectance bool
	bands              map[string]string
}

func NewDescriptor(id string, family Family, sr bool, bands map[string]string) Descriptor {
	return Descriptor{ID: id, Family: family, SurfaceReflectance: sr, bands: maps.Clone(bands)}
}

// Band returns the native band name for a semantic code.
func (d Descriptor) Band(code string) (string, bool) {
	b, ok := d.bands[code]
	return b, ok && b != ""
}

// Codes returns the semantic codes known for the platform, sorted.
func (d Descriptor) Codes() []string {
	return slices.Sorted(maps.Keys(d.bands))
}

// Aliases returns a copy of the semantic code to native band mapping.
func (d Descriptor) Aliases() map[string]string { return maps.Clone(d.bands) }

func (d Descriptor) IsZero() bool { return d.ID == "" }

type tableEntry struct {
	Family             Family            `json:"family"`
	SurfaceReflectance *bool             `json:"surfaceReflectance,omitempty"`
	Bands              map[string]string `json:"bands"`
}

type tableDoc struct {
	Platforms map[string]tableEntry `json:"platforms"`
}

// Table is the band alias table, keyed by platform id.
type Table struct {
	byID map[string]Descriptor
}

// LoadTable parses a band alias document.
func LoadTable(raw []byte) (*Table, error) {
	var doc tableDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("platform: decode band table: %w", err)
	}
	if len(doc.Platforms) == 0 {
		return nil, fmt.Errorf("platform: band table has no platforms")
	}
	t := &Table{byID: make(map[string]Descriptor, len(doc.Platforms))}
	for id, e := range doc.Platforms {
		if e.Family == "" {
			return nil, fmt.Errorf("platform: %s: missing family", id)
		}
		for code, native := range e.Bands {
			if native == "" {
				return nil, fmt.Errorf("platform: %s: empty band for code %s", id, code)
			}
		}
		sr := surfaceReflectanceMarker(id)
		if e.SurfaceReflectance != nil {
			sr = *e.SurfaceReflectance
		}
		t.byID[id] = NewDescriptor(id, e.Family, sr, e.Bands)
	}
	return t, nil
}

var defaultTable = mustLoad(bundledBands)

func mustLoad(raw []byte) *Table {
	t, err := LoadTable(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the bundled table.
func Default() *Table { return defaultTable }

func (t *Table) Lookup(id string) (Descriptor, bool) {
	d, ok := t.byID[id]
	return d, ok
}

// IDs returns every supported platform id, sorted.
func (t *Table) IDs() []string {
	return slices.Sorted(maps.Keys(t.byID))
}

// Match resolves an asset id: the id itself, then its parent collection.
func (t *Table) Match(id string) (Descriptor, bool) {
	id = strings.TrimSpace(id)
	if d, ok := t.byID[id]; ok {
		return d, true
	}
	if p := parent(id); p != "" {
		if d, ok := t.byID[p]; ok {
			return d, true
		}
	}
	return Descriptor{}, false
}

func parent(id string) string {
	i := strings.LastIndex(id, "/")
	if i <= 0 {
		return ""
	}
	return id[:i]
}

func surfaceReflectanceMarker(id string) bool {
	last := id
	if i := strings.LastIndex(id, "/"); i >= 0 {
		last = id[i+1:]
	}
	return strings.Contains(last, "_SR") || strings.HasSuffix(last, "_L2")
}
