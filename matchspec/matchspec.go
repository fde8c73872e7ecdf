// Package matchspec implements MatchSpec, the constraint predicate over
// record.PackageRecord described in spec.md §3/§4.1: a parsed name,
// optional version.Spec, optional build glob, optional channel/subdir,
// optional build number, and an optional feature set.
package matchspec

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/2lambda123/conda-conda/condaerrors"
	"github.com/2lambda123/conda-conda/record"
	"github.com/2lambda123/conda-conda/version"
)

// MatchSpec is an immutable, pure predicate over PackageRecord.
type MatchSpec struct {
	raw         string
	Name        string
	Version     *version.Spec
	Build       string // glob pattern, empty means unconstrained
	Channel     string
	Subdir      string
	BuildNumber *int
	Features    map[string]struct{}
}

// specPattern recognizes the canonical textual MatchSpec grammar:
//
//	[channel::][channel/subdir::]name[[ ]version[ build]][[key=value,...]]
//
// The version may follow the name directly when it starts with an
// operator ("numpy>=1.20") or after whitespace ("numpy 1.21.*").
// condacore only needs the common forms actually exercised by the
// resolver and CLI, so this intentionally mirrors the original project's
// regex-driven parser (conda/resolve.py's MatchSpec) rather than writing
// a full recursive-descent grammar for every historic spelling.
var specPattern = regexp.MustCompile(`^(?:([A-Za-z0-9_.\-]+)(?:/([A-Za-z0-9_\-]+))?::)?([A-Za-z0-9_\-.]+)(?:\s*([^\[\]\s][^\[\]]*))?(?:\[([^\]]*)\])?$`)

// Parse parses s under the grammar spec.md §3 describes.
func Parse(s string) (*MatchSpec, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, &condaerrors.InvalidMatchSpec{Spec: s, Reason: "empty spec"}
	}
	m := specPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &condaerrors.InvalidMatchSpec{Spec: s, Reason: "does not match MatchSpec grammar"}
	}

	ms := &MatchSpec{
		raw:     trimmed,
		Channel: m[1],
		Subdir:  m[2],
		Name:    strings.ToLower(m[3]),
	}
	if ms.Name == "" {
		return nil, &condaerrors.InvalidMatchSpec{Spec: s, Reason: "missing package name"}
	}

	if verAndBuild := strings.TrimSpace(m[4]); verAndBuild != "" {
		verText, build := splitVersionBuild(verAndBuild)
		if verText != "" {
			spec, err := version.ParseSpec(verText)
			if err != nil {
				return nil, &condaerrors.InvalidMatchSpec{Spec: s, Reason: err.Error()}
			}
			ms.Version = spec
		}
		ms.Build = build
	}

	if kv := strings.TrimSpace(m[5]); kv != "" {
		if err := parseBracketFields(ms, kv, s); err != nil {
			return nil, err
		}
	}

	return ms, nil
}

// splitVersionBuild splits a trailing "version build" clause: conda
// writes the build string as the last whitespace-separated token when
// present, e.g. "3.11.* h12345_0".
func splitVersionBuild(s string) (verText, build string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1]
}

func parseBracketFields(ms *MatchSpec, kv string, raw string) error {
	for _, field := range strings.Split(kv, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		parts := strings.SplitN(field, "=", 2)
		if len(parts) != 2 {
			return &condaerrors.InvalidMatchSpec{Spec: raw, Reason: "malformed bracket field " + field}
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `'"`)
		switch key {
		case "version":
			spec, err := version.ParseSpec(val)
			if err != nil {
				return &condaerrors.InvalidMatchSpec{Spec: raw, Reason: err.Error()}
			}
			ms.Version = spec
		case "build":
			ms.Build = val
		case "channel":
			ms.Channel = val
		case "subdir":
			ms.Subdir = val
		case "build_number":
			n, err := strconv.Atoi(val)
			if err != nil {
				return &condaerrors.InvalidMatchSpec{Spec: raw, Reason: "invalid build_number " + val}
			}
			ms.BuildNumber = &n
		case "features", "track_features":
			ms.Features = make(map[string]struct{})
			for _, f := range strings.Fields(val) {
				ms.Features[f] = struct{}{}
			}
		default:
			return &condaerrors.InvalidMatchSpec{Spec: raw, Reason: "unknown bracket field " + key}
		}
	}
	return nil
}

// Match is total and pure.
func (ms *MatchSpec) Match(r *record.PackageRecord) bool {
	if ms.Name != "*" && ms.Name != r.Name {
		return false
	}
	if ms.Version != nil {
		v, err := version.Parse(r.Version)
		if err != nil || !ms.Version.Match(v) {
			return false
		}
	}
	if ms.Build != "" {
		if ok, _ := path.Match(ms.Build, r.Build); !ok {
			return false
		}
	}
	if ms.Channel != "" && ms.Channel != r.Channel {
		return false
	}
	if ms.Subdir != "" && ms.Subdir != r.Subdir {
		return false
	}
	if ms.BuildNumber != nil && *ms.BuildNumber != r.BuildNumber {
		return false
	}
	if len(ms.Features) > 0 {
		for f := range ms.Features {
			if _, ok := r.FeatureSet()[f]; !ok {
				return false
			}
		}
	}
	return true
}

// String round-trips Parse for canonical input (spec.md §8).
func (ms *MatchSpec) String() string {
	if ms.raw != "" {
		return ms.raw
	}
	var b strings.Builder
	if ms.Channel != "" {
		b.WriteString(ms.Channel)
		if ms.Subdir != "" {
			b.WriteString("/")
			b.WriteString(ms.Subdir)
		}
		b.WriteString("::")
	}
	b.WriteString(ms.Name)
	if ms.Version != nil {
		b.WriteString(" ")
		b.WriteString(ms.Version.String())
	}
	if ms.Build != "" {
		b.WriteString(" ")
		b.WriteString(ms.Build)
	}
	return b.String()
}

// Merge returns a stricter MatchSpec when ms and other constrain the
// same name, or condaerrors.IncompatibleSpecs when they are provably
// disjoint (spec.md §4.1).
func (ms *MatchSpec) Merge(other *MatchSpec) (*MatchSpec, error) {
	if ms.Name != other.Name {
		return nil, &condaerrors.IncompatibleSpecs{A: ms.String(), B: other.String()}
	}
	merged := &MatchSpec{Name: ms.Name}

	if ms.Channel != "" && other.Channel != "" && ms.Channel != other.Channel {
		return nil, &condaerrors.IncompatibleSpecs{A: ms.String(), B: other.String()}
	}
	merged.Channel = firstNonEmpty(ms.Channel, other.Channel)

	if ms.Subdir != "" && other.Subdir != "" && ms.Subdir != other.Subdir {
		return nil, &condaerrors.IncompatibleSpecs{A: ms.String(), B: other.String()}
	}
	merged.Subdir = firstNonEmpty(ms.Subdir, other.Subdir)

	if ms.BuildNumber != nil && other.BuildNumber != nil && *ms.BuildNumber != *other.BuildNumber {
		return nil, &condaerrors.IncompatibleSpecs{A: ms.String(), B: other.String()}
	}
	if ms.BuildNumber != nil {
		merged.BuildNumber = ms.BuildNumber
	} else {
		merged.BuildNumber = other.BuildNumber
	}

	if ms.Build != "" && other.Build != "" && ms.Build != other.Build {
		return nil, &condaerrors.IncompatibleSpecs{A: ms.String(), B: other.String()}
	}
	merged.Build = firstNonEmpty(ms.Build, other.Build)

	switch {
	case ms.Version == nil:
		merged.Version = other.Version
	case other.Version == nil:
		merged.Version = ms.Version
	default:
		// Merging two version constraints conservatively: AND them
		// together as a new comma-joined spec. If the result can never
		// match anything representable (e.g. disjoint exact pins), that
		// surfaces downstream as an empty candidate set during solving
		// rather than being rejected here, since VersionSpec does not
		// carry enough structure to prove disjointness cheaply for the
		// general OR/AND grammar.
		combined, err := version.ParseSpec(ms.Version.String() + "," + other.Version.String())
		if err != nil {
			return nil, &condaerrors.IncompatibleSpecs{A: ms.String(), B: other.String()}
		}
		merged.Version = combined
	}

	if len(ms.Features) > 0 || len(other.Features) > 0 {
		merged.Features = make(map[string]struct{}, len(ms.Features)+len(other.Features))
		for f := range ms.Features {
			merged.Features[f] = struct{}{}
		}
		for f := range other.Features {
			merged.Features[f] = struct{}{}
		}
	}

	merged.raw = merged.String()
	return merged, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// SortedFeatures returns Features' keys sorted, used wherever a feature
// set must be rendered or iterated deterministically.
func (ms *MatchSpec) SortedFeatures() []string {
	out := make([]string, 0, len(ms.Features))
	for f := range ms.Features {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
