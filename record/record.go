// Package record defines PackageRecord and PrefixRecord, the identity
// and install-time data model described in spec.md §3.
package record

import (
	"fmt"
	"sort"

	"github.com/2lambda123/conda-conda/version"
)

// Noarch enumerates the noarch kinds spec.md §3 names.
type Noarch string

const (
	NoarchNone    Noarch = "none"
	NoarchPython  Noarch = "python"
	NoarchGeneric Noarch = "generic"
)

// Identity is the key spec.md §3 uses to decide PackageRecord equality:
// a tuple of every field two records must share to be considered the
// same artifact.
type Identity struct {
	Name    string
	Version string
	Build   string
	Subdir  string
	MD5     string
}

// PackageRecord is the immutable identity of a concrete package
// artifact, as described in spec.md §3.
type PackageRecord struct {
	Name          string
	Version       string
	Build         string
	BuildNumber   int
	Subdir        string
	Depends       []string
	Constrains    []string
	TrackFeatures []string
	Features      []string
	MD5           string
	SHA256        string
	Size          int64
	Channel       string
	Fn            string
	URL           string
	Timestamp     int64
	Noarch        Noarch

	// Priority is the channel priority this record was resolved against
	// (lower wins); attached by index.Engine during merge, not part of
	// on-the-wire repodata.
	Priority int
}

// Identity returns the equality key spec.md §3 defines.
func (r *PackageRecord) Identity() Identity {
	return Identity{Name: r.Name, Version: r.Version, Build: r.Build, Subdir: r.Subdir, MD5: r.MD5}
}

// IsVirtual reports whether this record is a synthetic virtual package
// (identity begins with "__"), per spec.md §3/§4.3.
func (r *PackageRecord) IsVirtual() bool {
	return len(r.Name) >= 2 && r.Name[:2] == "__"
}

// FeatureSet returns Features as a set, used by MatchSpec.Match.
func (r *PackageRecord) FeatureSet() map[string]struct{} {
	s := make(map[string]struct{}, len(r.Features))
	for _, f := range r.Features {
		s[f] = struct{}{}
	}
	return s
}

// TrackFeatureSet returns TrackFeatures as a set.
func (r *PackageRecord) TrackFeatureSet() map[string]struct{} {
	s := make(map[string]struct{}, len(r.TrackFeatures))
	for _, f := range r.TrackFeatures {
		s[f] = struct{}{}
	}
	return s
}

// Less implements the ordering spec.md §3 defines within a name:
// (VersionOrder(version), build_number, timestamp, build) ascending.
func (r *PackageRecord) Less(other *PackageRecord) bool {
	rv, rerr := version.Parse(r.Version)
	ov, oerr := version.Parse(other.Version)
	if rerr == nil && oerr == nil {
		if c := rv.Compare(ov); c != 0 {
			return c < 0
		}
	} else if r.Version != other.Version {
		return r.Version < other.Version
	}
	if r.BuildNumber != other.BuildNumber {
		return r.BuildNumber < other.BuildNumber
	}
	if r.Timestamp != other.Timestamp {
		return r.Timestamp < other.Timestamp
	}
	return r.Build < other.Build
}

// FilenameKey renders a deterministic sort key used by the resolver's
// tiebreak rule (spec.md §4.4: "deterministic tiebreak on sorted
// filenames").
func (r *PackageRecord) FilenameKey() string {
	if r.Fn != "" {
		return r.Fn
	}
	return fmt.Sprintf("%s-%s-%s", r.Name, r.Version, r.Build)
}

// SortRecords sorts a slice of records by name then FilenameKey,
// guaranteeing deterministic iteration anywhere a map would otherwise
// leak nondeterminism (Design Note §9).
func SortRecords(recs []*PackageRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Name != recs[j].Name {
			return recs[i].Name < recs[j].Name
		}
		return recs[i].FilenameKey() < recs[j].FilenameKey()
	})
}
