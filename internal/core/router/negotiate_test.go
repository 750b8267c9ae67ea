package router

import "testing"

func TestNegotiate(t *testing.T) {
	cases := []struct {
		param, accept string
		want          format
	}{
		{"", "", formatJSON},
		{"geojson", "application/json", formatGeoJSON},
		{"json", "application/geo+json", formatJSON},
		{"", "application/geo+json", formatGeoJSON},
		{"", "application/json;q=0.5,application/geo+json;q=0.9", formatGeoJSON},
		{"", "application/geo+json;q=0.2,*/*;q=0.8", formatJSON},
		{"", "text/html", formatJSON},
	}
	for _, c := range cases {
		if got := negotiate(c.param, c.accept); got != c.want {
			t.Fatalf("negotiate(%q, %q)=%v want %v", c.param, c.accept, got, c.want)
		}
	}
}
