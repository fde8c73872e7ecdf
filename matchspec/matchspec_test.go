package matchspec

import (
	"testing"

	"github.com/2lambda123/conda-conda/record"
)

// TestParseStringRoundTrip covers spec.md §8's MatchSpec round-trip
// property: Parse(s).String() == s for canonical input.
func TestParseStringRoundTrip(t *testing.T) {
	cases := []string{
		"numpy",
		"numpy 1.21.*",
		"numpy >=1.21,<2.0",
		"numpy 1.21.0 py39h_0",
		"conda-forge::numpy",
		"conda-forge/linux-64::numpy >=1.21",
	}
	for _, s := range cases {
		ms, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if got := ms.String(); got != s {
			t.Fatalf("round trip mismatch: Parse(%q).String() = %q", s, got)
		}
	}
}

func TestParseRejectsEmptySpec(t *testing.T) {
	if _, err := Parse("   "); err == nil {
		t.Fatalf("expected error parsing empty spec")
	}
}

func TestMatchAppliesNameVersionAndBuild(t *testing.T) {
	ms, err := Parse("numpy >=1.20,<1.22")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	match := &record.PackageRecord{Name: "numpy", Version: "1.21.0", Build: "py39h_0"}
	if !ms.Match(match) {
		t.Fatalf("expected %+v to match %s", match, ms)
	}

	tooNew := &record.PackageRecord{Name: "numpy", Version: "1.22.0", Build: "py39h_0"}
	if ms.Match(tooNew) {
		t.Fatalf("expected %+v not to match %s", tooNew, ms)
	}

	wrongName := &record.PackageRecord{Name: "scipy", Version: "1.21.0", Build: "py39h_0"}
	if ms.Match(wrongName) {
		t.Fatalf("expected spec not to match a different package name")
	}
}

func TestMergeCombinesCompatibleConstraints(t *testing.T) {
	a, err := Parse("numpy >=1.20")
	if err != nil {
		t.Fatalf("Parse a: %v", err)
	}
	b, err := Parse("numpy[channel=conda-forge]")
	if err != nil {
		t.Fatalf("Parse b: %v", err)
	}
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Channel != "conda-forge" {
		t.Fatalf("expected merged channel conda-forge, got %q", merged.Channel)
	}
	if merged.Version == nil {
		t.Fatalf("expected merged version constraint to survive")
	}
}

func TestMergeRejectsConflictingNames(t *testing.T) {
	a, err := Parse("numpy")
	if err != nil {
		t.Fatalf("Parse a: %v", err)
	}
	b, err := Parse("scipy")
	if err != nil {
		t.Fatalf("Parse b: %v", err)
	}
	if _, err := a.Merge(b); err == nil {
		t.Fatalf("expected Merge of differently-named specs to fail")
	}
}
