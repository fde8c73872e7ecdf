package resolver

import (
	"sort"

	"github.com/2lambda123/conda-conda/record"
	"github.com/2lambda123/conda-conda/version"
)

// preferenceContext carries the information the seven-stage optimization
// order from spec.md §4.4 needs to rank candidates for a single name:
// whether the name is currently installed (removals are penalized),
// which track_features are active in the environment, and whether a
// downgrade was requested.
type preferenceContext struct {
	installed     map[string]*record.PackageRecord // name -> currently installed record, if any
	toChange      map[string]bool
	changeAll     bool
	downgrade     bool
	activeTrack   map[string]bool // track_features currently "on" in the environment
	bestPriority  map[string]int  // name -> best (lowest) channel priority available
}

// orderCandidates sorts cands best-first according to the lexicographic
// objective spec.md §4.4 lists (items 2-7; item 1, "minimize specs
// violated", is enforced by the search itself only selecting candidates
// that satisfy matched specs). Rather than solve seven separate
// pseudo-Boolean minimizations, the search's decision heuristic tries
// candidates in this order and only backtracks on a hard constraint
// conflict — the value-ordering approach a CDCL solver uses to steer
// toward a preferred solution without exploring the whole search space
// (grounded on the teacher's versionQueue, which exists for exactly this
// purpose: present candidates to the solver in the order it should
// prefer to try them).
func (pc *preferenceContext) orderCandidates(name string, cands []*record.PackageRecord) []*record.PackageRecord {
	out := append([]*record.PackageRecord(nil), cands...)

	locked, wasLocked := pc.installed[name]
	changeRequested := pc.changeAll || pc.toChange[name]

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]

		// Stage 2: minimize packages removed relative to the current
		// prefix. A candidate identical to the locked record is
		// preferred over any other when no change was requested.
		if wasLocked && !changeRequested {
			aLocked := a.Identity() == locked.Identity()
			bLocked := b.Identity() == locked.Identity()
			if aLocked != bLocked {
				return aLocked
			}
		}

		// Stage 3: minimize track_features active in the solution.
		aTrack, bTrack := activeTrackCount(a, pc.activeTrack), activeTrackCount(b, pc.activeTrack)
		if aTrack != bTrack {
			return aTrack < bTrack
		}

		// Stage 4: minimize staleness weight (newer version ⇒ lower
		// weight; ties broken by higher build_number, then higher
		// timestamp). Downgrade flips the version preference only.
		av, aerr := version.Parse(a.Version)
		bv, berr := version.Parse(b.Version)
		sameVersion := a.Version == b.Version
		if aerr == nil && berr == nil {
			sameVersion = av.Equal(bv)
		}
		if !sameVersion {
			newer := b.Less(a) // a has the higher version
			if pc.downgrade {
				newer = !newer
			}
			return newer
		}
		if a.BuildNumber != b.BuildNumber {
			return a.BuildNumber > b.BuildNumber
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}

		// Stage 5: minimize number of *features* present.
		if len(a.Features) != len(b.Features) {
			return len(a.Features) < len(b.Features)
		}

		// Stage 6: minimize packages whose channel priority is worse
		// than the best available for that name.
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}

		// Final deterministic tiebreak on sorted filenames (spec.md
		// §4.4: "Solutions incomparable under the ordering are broken
		// by deterministic tiebreak on sorted filenames").
		return a.FilenameKey() < b.FilenameKey()
	})

	return out
}

func activeTrackCount(r *record.PackageRecord, active map[string]bool) int {
	n := 0
	for _, f := range r.TrackFeatures {
		if active[f] {
			n++
		}
	}
	return n
}
