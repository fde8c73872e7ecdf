package version

import "testing"

// TestCompareTotalOrder exercises the VersionOrder total-order property
// spec.md §8 calls out: antisymmetry and transitivity over an ascending
// chain of versions.
func TestCompareTotalOrder(t *testing.T) {
	ascending := []string{
		"1.0.dev0",
		"1.0.0a1",
		"1.0.0b1",
		"1.0.0rc1",
		"1.0.0",
		"1.0.0.post1",
		"1.0.1",
		"2.0.0",
		"1!0.1", // epoch 1 outranks any epoch-0 release, however small
	}

	parsed := make([]Version, len(ascending))
	for i, s := range ascending {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		parsed[i] = v
	}

	for i := 0; i < len(parsed); i++ {
		for j := 0; j < len(parsed); j++ {
			want := 0
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			got := sign(parsed[i].Compare(parsed[j]))
			if got != want {
				t.Fatalf("Compare(%q, %q) sign = %d, want %d", ascending[i], ascending[j], got, want)
			}
		}
	}

	// Antisymmetry: a.Compare(b) and b.Compare(a) must be negations.
	for i := 0; i < len(parsed); i++ {
		for j := 0; j < len(parsed); j++ {
			if parsed[i].Compare(parsed[j]) != -parsed[j].Compare(parsed[i]) {
				t.Fatalf("antisymmetry violated for %q, %q", ascending[i], ascending[j])
			}
		}
	}

	// Transitivity: a <= b && b <= c implies a <= c, for every triple in
	// the already-ascending chain.
	for i := 0; i < len(parsed); i++ {
		for j := i; j < len(parsed); j++ {
			for k := j; k < len(parsed); k++ {
				if !(parsed[i].Less(parsed[j]) || parsed[i].Equal(parsed[j])) {
					continue
				}
				if !(parsed[j].Less(parsed[k]) || parsed[j].Equal(parsed[k])) {
					continue
				}
				if parsed[k].Less(parsed[i]) {
					t.Fatalf("transitivity violated: %q <= %q <= %q but %q < %q", ascending[i], ascending[j], ascending[k], ascending[k], ascending[i])
				}
			}
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestEqualVersionsCompareZero(t *testing.T) {
	a := MustParse("1.0")
	b := MustParse("1.0")
	if !a.Equal(b) {
		t.Fatalf("expected 1.0 to equal 1.0")
	}
	if a.Compare(b) != 0 {
		t.Fatalf("expected Compare to be zero for equal versions")
	}
}

func TestIsPreRelease(t *testing.T) {
	if !MustParse("1.0.0rc1").IsPreRelease() {
		t.Fatalf("expected 1.0.0rc1 to be a pre-release")
	}
	if MustParse("1.0.0").IsPreRelease() {
		t.Fatalf("expected 1.0.0 not to be a pre-release")
	}
}
