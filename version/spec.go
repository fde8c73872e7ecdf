package version

import (
	"path"
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver"
	"github.com/pkg/errors"
)

// op is one of the comparison operators the VersionSpec grammar accepts.
type op int

const (
	opEQ op = iota
	opNE
	opGE
	opLE
	opGT
	opLT
	opCompatible // ~=
	opGlob       // trailing .* shorthand, e.g. "1.2.*"
)

var opTokens = []struct {
	tok string
	op  op
}{
	// Longer tokens first so "==" isn't mis-split as "=" + "=".
	{"==", opEQ},
	{"!=", opNE},
	{">=", opGE},
	{"<=", opLE},
	{"~=", opCompatible},
	{">", opGT},
	{"<", opLT},
	{"=", opEQ},
}

// clause is a single "<op><version>" term, e.g. ">=1.2,<2.0" parses into
// two clauses ANDed together.
type clause struct {
	op   op
	text string // operand, as written (may contain globs)
	ver  Version
}

func (c clause) match(v Version) bool {
	switch c.op {
	case opEQ:
		if strings.Contains(c.text, "*") {
			ok, _ := path.Match(globToPathPattern(c.text), v.String())
			return ok
		}
		return v.Equal(c.ver)
	case opNE:
		return !v.Equal(c.ver)
	case opGE:
		return !v.Less(c.ver)
	case opLE:
		return !c.ver.Less(v)
	case opGT:
		return c.ver.Less(v)
	case opLT:
		return v.Less(c.ver)
	case opCompatible:
		return matchCompatible(c.text, v)
	case opGlob:
		ok, _ := path.Match(globToPathPattern(c.text), v.String())
		return ok
	}
	return false
}

// globToPathPattern adapts a dotted version glob ("1.2.*") to the
// path.Match grammar used by the rest of condacore's glob matching
// (build strings, channel globs): path.Match already treats "*" as
// "any run of non-separator characters", which is exactly PEP 440's
// "1.2.*" shorthand once dots are not treated as separators, so no
// additional translation is required beyond documenting the reuse.
func globToPathPattern(s string) string {
	return s
}

// matchCompatible implements the "~=" compatible-release operator.
// Per the teacher's own dual-fallback pattern (manifest.go's toProps,
// "always semver if we can ... but if not, fall back on plain
// versions"), a three-component operand is handed to
// Masterminds/semver to compute the usual "~=1.4.2 == >=1.4.2,<1.5.0"
// upper bound; anything else (two components, pre-release, epoch, etc.)
// falls back to a same-package rule: zero out the final release segment
// and increment the second-to-last.
func matchCompatible(text string, v Version) bool {
	lo, err := Parse(text)
	if err != nil {
		return false
	}
	if !lo.Less(v) && !lo.Equal(v) {
		return false
	}
	if sv, err := semver.NewVersion(text); err == nil && strings.Count(text, ".") == 2 {
		hi := sv.IncMinor()
		hiV, err := Parse(hi.String())
		if err == nil {
			return v.Less(hiV)
		}
	}
	hiText := compatibleUpperBound(text)
	if hiText == "" {
		return true
	}
	hiV, err := Parse(hiText)
	if err != nil {
		return true
	}
	return v.Less(hiV)
}

// compatibleUpperBound implements PEP 440's ~= rule directly: given
// "N1.N2...Nk", the upper bound is "N1.N2...(Nk-1+1)" (the release
// truncated by one component, with the new last component incremented).
func compatibleUpperBound(text string) string {
	parts := strings.SplitN(text, "+", 2)[0]
	parts = strings.SplitN(parts, "-", 2)[0]
	segs := strings.Split(parts, ".")
	if len(segs) < 2 {
		return ""
	}
	segs = segs[:len(segs)-1]
	last := segs[len(segs)-1]
	n, err := strconv.Atoi(last)
	if err != nil {
		return ""
	}
	segs[len(segs)-1] = strconv.Itoa(n + 1)
	return strings.Join(segs, ".")
}

// andGroup is a set of clauses that must all match (comma-separated).
type andGroup struct {
	clauses []clause
}

func (g andGroup) match(v Version) bool {
	for _, c := range g.clauses {
		if !c.match(v) {
			return false
		}
	}
	return true
}

// Spec is a parsed version constraint: an OR ("|") of AND (",") groups.
type Spec struct {
	raw    string
	groups []andGroup
}

// ParseSpec parses the VersionSpec grammar from spec.md §3/§4.1: "==",
// "!=", ">=", "<=", ">", "<", "~=" (compatible release), globs,
// comma-separated AND, "|" OR, and bare "=x.y.z" / exact-match
// shorthand.
func ParseSpec(s string) (*Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty version spec")
	}
	var groups []andGroup
	for _, orPart := range strings.Split(s, "|") {
		var clauses []clause
		for _, andPart := range strings.Split(orPart, ",") {
			andPart = strings.TrimSpace(andPart)
			if andPart == "" {
				continue
			}
			c, err := parseClause(andPart)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, c)
		}
		if len(clauses) == 0 {
			return nil, errors.Errorf("empty clause group in version spec %q", s)
		}
		groups = append(groups, andGroup{clauses: clauses})
	}
	return &Spec{raw: s, groups: groups}, nil
}

func parseClause(s string) (clause, error) {
	for _, t := range opTokens {
		if strings.HasPrefix(s, t.tok) {
			operand := strings.TrimSpace(s[len(t.tok):])
			return newClause(t.op, operand)
		}
	}
	// Bare version (no operator prefix) is exact-match shorthand, e.g.
	// "=1.2.3" written without the leading "=".
	return newClause(opEQ, s)
}

func newClause(o op, operand string) (clause, error) {
	if operand == "" {
		return clause{}, errors.Errorf("missing operand in version clause")
	}
	if strings.Contains(operand, "*") {
		if o != opEQ {
			return clause{}, errors.Errorf("glob operand %q only valid with == or bare match", operand)
		}
		return clause{op: opGlob, text: operand}, nil
	}
	v, err := Parse(operand)
	if err != nil {
		return clause{}, errors.Wrapf(err, "parsing version operand %q", operand)
	}
	return clause{op: o, text: operand, ver: v}, nil
}

// Match evaluates the parsed constraint tree against v, total and pure
// per spec.md §4.1.
func (s *Spec) Match(v Version) bool {
	for _, g := range s.groups {
		if g.match(v) {
			return true
		}
	}
	return false
}

// String round-trips canonical input: ParseSpec(s).String() == s for
// any spec written in the canonical "op+version[,op+version][|...]"
// form (spec.md §8 property test).
func (s *Spec) String() string {
	return s.raw
}
