// Package version implements VersionOrder, the total order spec.md §4.1
// imposes on package version strings: PEP 440-adjacent semantics
// extended with epoch, local segments, and a lexicographic tiebreak on
// the literal text when the parsed orderings are otherwise equal.
//
// Rather than hand-roll epoch/pre-release/post-release/dev/local
// parsing (the scratch regex-based approach the original Python
// implementation takes in auxlib and conda.resolve via verlib), this
// wraps github.com/aquasecurity/go-pep440-version, the same dependency
// a-h/depot reaches for to compare Python package versions.
package version

import (
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/pkg/errors"
)

// Version is an immutable, totally-ordered package version.
type Version struct {
	raw    string
	parsed pep440.Version
}

// Parse parses s under the grammar spec.md §4.1 describes: epoch (N!),
// release segment, pre-release, post-release, dev, and local (+local)
// segments.
func Parse(s string) (Version, error) {
	p, err := pep440.Parse(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "parsing version %q", s)
	}
	return Version{raw: s, parsed: p}, nil
}

// MustParse parses s, panicking on error. Used for version literals
// known to be valid at compile time (virtual package versions, tests).
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original, unnormalized text the Version was parsed
// from, so VersionOrder comparisons can fall back to it for the
// lexicographic tiebreak spec.md calls out.
func (v Version) String() string {
	return v.raw
}

// Compare implements VersionOrder: epoch, release tuple, pre-release,
// post-release, dev, local as PEP 440 defines them, then (when the
// parsed orderings are equal but the literal text differs) a
// lexicographic comparison of the full original text.
func (v Version) Compare(other Version) int {
	if c := v.parsed.Compare(other.parsed); c != 0 {
		return c
	}
	if v.raw == other.raw {
		return 0
	}
	if v.raw < other.raw {
		return -1
	}
	return 1
}

// Less reports whether v orders strictly before other under VersionOrder.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other are equal under VersionOrder. Since
// Compare breaks PEP 440 ties on the literal text, only identical strings
// are Equal: "1.0" and "1.0.0" are not.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Zero reports whether v is the zero Version (never successfully parsed).
func (v Version) Zero() bool {
	return v.raw == ""
}

// IsPreRelease reports whether v carries a pre-release segment. The
// resolver does not call it; Compare already orders a pre-release before
// the final release of the same release tuple.
func (v Version) IsPreRelease() bool {
	return v.parsed.IsPreRelease()
}

