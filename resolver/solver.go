package resolver

import (
	"context"
	"sort"

	"github.com/2lambda123/conda-conda/condaerrors"
	"github.com/2lambda123/conda-conda/index"
	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

// SolveParameters holds the inputs to a single resolver run, mirroring
// the shape (if not every field) of the teacher's own SolveParameters:
// "Only RootDir and ImportRoot are absolutely required" there becomes
// "only Index and Specs are absolutely required" here.
type SolveParameters struct {
	Index *index.Index

	// Specs are the user-supplied top-level MatchSpecs this solve must
	// satisfy (spec.md §4.4 optimization objective 1).
	Specs []*matchspec.MatchSpec

	// Installed is the set of currently linked PrefixRecords.
	Installed []*record.PrefixRecord

	// ToChange lists names whose installed version should be treated as
	// unpinned for this solve, even though they are currently installed.
	ToChange []string

	// ChangeAll, when true, unpins every installed name (a full upgrade
	// pass), per spec.md §4.4.
	ChangeAll bool

	// Downgrade indicates the solver should prefer lower versions for
	// unpinned names rather than the default (prefer higher).
	Downgrade bool
}

// Solution is the solver's output: the ordered link/unlink set spec.md
// §3 describes as a "Transaction plan" precursor — the resolver itself
// only decides *what* the final state should be; transaction.Plan
// derives the ordered FETCH/EXTRACT/UNLINK/LINK instruction stream from
// this Solution.
type Solution struct {
	// Selected holds one PackageRecord per selected non-virtual name.
	Selected []*record.PackageRecord
}

// solver carries the mutable search state for one Solve call. It is
// constructed fresh per call (Design Note §9: no module-level shared
// state), the same "per-Engine instantiation" discipline as index.Engine.
type solver struct {
	params SolveParameters
	ri     *reducedIndex
	pc     *preferenceContext

	// selection maps name -> chosen record for every name decided so far.
	selection map[string]*record.PackageRecord
	// order records decision order, for deterministic backtracking.
	order []string

	attempts int
	maxAttempts int
}

// Solve runs the resolver described in spec.md §4.4 and returns a
// Solution or a *condaerrors.UnsatisfiableError carrying the minimal
// unsatisfiable subset of the top-level specs.
func Solve(ctx context.Context, params SolveParameters) (*Solution, error) {
	ri, err := buildReducedIndex(params.Index, params.Specs, params.Installed)
	if err != nil {
		return nil, err
	}

	installedByName := make(map[string]*record.PackageRecord, len(params.Installed))
	for _, pr := range params.Installed {
		rec := pr.PackageRecord
		installedByName[pr.Name] = &rec
	}
	toChange := make(map[string]bool, len(params.ToChange))
	for _, n := range params.ToChange {
		toChange[n] = true
	}

	s := &solver{
		params: params,
		ri:     ri,
		pc: &preferenceContext{
			installed:   installedByName,
			toChange:    toChange,
			changeAll:   params.ChangeAll,
			downgrade:   params.Downgrade,
			activeTrack: activeTrackFeatures(ri),
		},
		selection:   make(map[string]*record.PackageRecord),
		maxAttempts: 200000,
	}

	names := sortedNamesFrom(params.Specs, params.Installed)
	ok, err := s.search(ctx, names, 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		subset, uerr := minimalUnsatSubset(ctx, params)
		if uerr != nil {
			subset = nil
		}
		specTexts := make([]string, len(params.Specs))
		for i, sp := range params.Specs {
			specTexts[i] = sp.String()
		}
		return nil, &condaerrors.UnsatisfiableError{Specs: specTexts, Subset: subset}
	}

	out := make([]*record.PackageRecord, 0, len(s.selection))
	for _, rec := range s.selection {
		if rec.IsVirtual() {
			continue
		}
		out = append(out, rec)
	}
	record.SortRecords(out)
	return &Solution{Selected: out}, nil
}

// activeTrackFeatures computes which track_features are "on" in the
// environment: any feature declared by any candidate record anywhere in
// the reduced index (spec.md §4.4: "track_features in any record causes
// the feature to be 'on' in the environment").
func activeTrackFeatures(ri *reducedIndex) map[string]bool {
	active := make(map[string]bool)
	for _, cands := range ri.byName {
		for _, rec := range cands {
			for _, f := range rec.TrackFeatures {
				active[f] = true
			}
		}
	}
	return active
}

// sortedNamesFrom gathers every name the solver must decide, in a
// deterministic order: user specs first (by name), then installed
// records not already covered.
func sortedNamesFrom(specs []*matchspec.MatchSpec, installed []*record.PrefixRecord) []string {
	seen := make(map[string]bool)
	var names []string
	var specNames []string
	for _, ms := range specs {
		specNames = append(specNames, ms.Name)
	}
	sort.Strings(specNames)
	for _, n := range specNames {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	var instNames []string
	for _, pr := range installed {
		instNames = append(instNames, pr.Name)
	}
	sort.Strings(instNames)
	for _, n := range instNames {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	return names
}

// search performs the CDCL-style backtracking decision procedure: pick
// the next undecided name, try its candidates in preference order
// (§objective.go), recursing into any newly-discovered dependency names
// along the way, and backtrack on conflict.
func (s *solver) search(ctx context.Context, names []string, i int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.attempts++
	if s.attempts > s.maxAttempts {
		return false, nil
	}

	// Skip names already decided as a side effect of a dependency
	// expansion earlier in this branch.
	for i < len(names) {
		if _, ok := s.selection[names[i]]; ok {
			i++
			continue
		}
		break
	}
	if i >= len(names) {
		return s.verifySolution(), nil
	}

	name := names[i]
	cands := s.ri.candidates(name)
	if len(cands) == 0 {
		return false, nil
	}
	ordered := s.pc.orderCandidates(name, cands)

	for _, cand := range ordered {
		if !s.consistentWithSelection(cand) {
			continue
		}
		s.selection[name] = cand
		s.order = append(s.order, name)

		nextNames := names
		for _, dep := range cand.Depends {
			depSpec, err := matchspec.Parse(dep)
			if err != nil {
				continue
			}
			if _, ok := s.selection[depSpec.Name]; ok {
				continue
			}
			if len(s.ri.candidates(depSpec.Name)) == 0 {
				continue
			}
			alreadyQueued := false
			for _, n := range nextNames {
				if n == depSpec.Name {
					alreadyQueued = true
					break
				}
			}
			if !alreadyQueued {
				nextNames = append(nextNames, depSpec.Name)
			}
		}

		ok, err := s.search(ctx, nextNames, i+1)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		delete(s.selection, name)
		s.order = s.order[:len(s.order)-1]
	}

	return false, nil
}

// consistentWithSelection checks cand against every already-decided
// record: at-most-one per name is structural (the search only ever
// selects one record per name), so this checks the implication clauses
// (cand's depends must be satisfiable by some candidate not yet
// precluded) is deferred to recursion; here we only check the
// "candidate doesn't conflict with an already-selected dependent or
// dependency" relationship, i.e. if some already-selected record depends
// on `name` with a spec that excludes cand, this candidate cannot be
// chosen.
func (s *solver) consistentWithSelection(cand *record.PackageRecord) bool {
	for _, chosen := range s.selection {
		for _, dep := range chosen.Depends {
			depSpec, err := matchspec.Parse(dep)
			if err != nil {
				continue
			}
			if depSpec.Name != cand.Name {
				continue
			}
			if !depSpec.Match(cand) {
				return false
			}
		}
		for _, con := range chosen.Constrains {
			conSpec, err := matchspec.Parse(con)
			if err != nil {
				continue
			}
			if conSpec.Name != cand.Name {
				continue
			}
			if !conSpec.Match(cand) {
				return false
			}
		}
	}
	for _, ms := range s.params.Specs {
		if ms.Name == cand.Name && !ms.Match(cand) {
			return false
		}
	}
	return true
}

// verifySolution performs the final sweep spec.md §8 requires: every
// user spec has a matching record in S, and every dependency of every
// record in S has a matching record in S.
func (s *solver) verifySolution() bool {
	for _, ms := range s.params.Specs {
		rec, ok := s.selection[ms.Name]
		if !ok || !ms.Match(rec) {
			return false
		}
	}
	for _, rec := range s.selection {
		for _, dep := range rec.Depends {
			depSpec, err := matchspec.Parse(dep)
			if err != nil {
				continue
			}
			if len(s.ri.candidates(depSpec.Name)) == 0 {
				// Unindexed dependency (e.g. a non-conda system
				// requirement string) cannot be verified against the
				// index and is treated as advisory.
				continue
			}
			chosen, ok := s.selection[depSpec.Name]
			if !ok || !depSpec.Match(chosen) {
				return false
			}
		}
	}
	return true
}
