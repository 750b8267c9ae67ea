package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

var safeKey = regexp.MustCompile(`^[A-Za-z0-9:_=\-]+$`)

func TestSummaryKey_SanitizesPlatform(t *testing.T) {
	k := SummaryKey(" COPERNICUS/S2_SR_HARMONIZED ", 8, "882a100d2bfffff")
	if k != "sum:COPERNICUS-S2_SR_HARMONIZED:8:882a100d2bfffff" {
		t.Fatalf("key=%s", k)
	}
	if !safeKey.MatchString(k) {
		t.Fatalf("key contains disallowed characters: %s", k)
	}
}

func TestValueKeyAndField_FixedWidth(t *testing.T) {
	if got := ValueKey(0xabc); got != "val:0000000000000abc" {
		t.Fatalf("ValueKey=%s", got)
	}
	if got := Field(1); len(got) != 16 {
		t.Fatalf("Field=%s", got)
	}
}

func TestSummaryKey_NonASCIIAndSeparators(t *testing.T) {
	k := SummaryKey("MODIS/061:MOD13Q1 Göteborg", 6, "862a1072fffffff")
	if !safeKey.MatchString(k) || strings.Count(k, ":") != 3 {
		t.Fatalf("key=%s", k)
	}
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
}
