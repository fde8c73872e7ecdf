// Package resolver implements the SAT/Pseudo-Boolean reduction of
// dependency selection described in spec.md §4.4: a CDCL-style
// backtracking solver, grounded on the teacher's own solver.go ("a
// CDCL-style constraint solver with satisfiability conditions hardcoded
// to the needs of" its domain), retargeted from Go module resolution to
// conda's package/version/build-string domain.
package resolver

import (
	"github.com/2lambda123/conda-conda/index"
	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

// atom is one candidate assignment: a specific PackageRecord considered
// for selection. Atoms are conda's analogue of the teacher's Boolean
// variables, one per candidate in the reduced index (spec.md §4.4).
type atom struct {
	rec *record.PackageRecord
}

// reducedIndex restricts candidates to those reachable from the user's
// specs by transitive dependency closure (spec.md §4.4: "the reduced
// index"), the same idea as the teacher's bridge/versionQueue machinery
// that avoids materializing every version of every package in the full
// index during solving.
type reducedIndex struct {
	byName map[string][]*record.PackageRecord
}

func (ri *reducedIndex) candidates(name string) []*record.PackageRecord {
	return ri.byName[name]
}

// buildReducedIndex performs the BFS dependency closure starting from
// the user specs and the installed prefix records (both must remain
// reachable so the solver can consider "keep installed" as a candidate
// outcome).
func buildReducedIndex(idx *index.Index, userSpecs []*matchspec.MatchSpec, installed []*record.PrefixRecord) (*reducedIndex, error) {
	ri := &reducedIndex{byName: make(map[string][]*record.PackageRecord)}
	seen := make(map[string]bool)

	var queueNames []string
	enqueue := func(name string) {
		if !seen[name] {
			seen[name] = true
			queueNames = append(queueNames, name)
		}
	}

	for _, ms := range userSpecs {
		enqueue(ms.Name)
	}
	for _, pr := range installed {
		enqueue(pr.Name)
	}

	for i := 0; i < len(queueNames); i++ {
		name := queueNames[i]
		// Virtual packages (names beginning with "__") are indexed like
		// any other name so depends referencing them can be satisfied,
		// but they carry no Depends of their own, so the BFS naturally
		// terminates there without special-casing.
		candidates := idx.QueryName(name)
		ri.byName[name] = candidates
		for _, cand := range candidates {
			for _, dep := range cand.Depends {
				depSpec, err := matchspec.Parse(dep)
				if err != nil {
					continue // malformed depends entries are skipped, not fatal
				}
				enqueue(depSpec.Name)
			}
		}
	}

	return ri, nil
}
