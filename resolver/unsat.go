package resolver

import (
	"context"

	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

// minimalUnsatSubset isolates a minimal subset of params.Specs that is
// itself unsatisfiable, so callers can report a focused conflict instead
// of dumping every requested spec. It uses the standard QuickXplain-style
// greedy deletion: drop one spec at a time and re-solve with everything
// else; a spec stays in the minimal subset iff removing it makes the
// remainder satisfiable. This trades solver calls (O(n) extra probes,
// n = len(Specs)) for a minimal, human-readable conflict set, the same
// trade the teacher's own error-reporting path makes when it walks
// failed versions to build a verbose explanation.
func minimalUnsatSubset(ctx context.Context, params SolveParameters) ([]string, error) {
	if len(params.Specs) <= 1 {
		out := make([]string, len(params.Specs))
		for i, sp := range params.Specs {
			out[i] = sp.String()
		}
		return out, nil
	}

	remaining := append([]*matchspec.MatchSpec(nil), params.Specs...)

	for i := 0; i < len(remaining); {
		trial := make([]*matchspec.MatchSpec, 0, len(remaining)-1)
		trial = append(trial, remaining[:i]...)
		trial = append(trial, remaining[i+1:]...)

		trialParams := params
		trialParams.Specs = trial

		ok, err := probeSatisfiable(ctx, trialParams)
		if err != nil {
			return nil, err
		}
		if ok {
			// Removing remaining[i] makes the rest satisfiable, so it is
			// part of the minimal conflicting subset: keep it and move on.
			i++
			continue
		}
		// Still unsatisfiable without remaining[i]: it wasn't necessary
		// for the conflict, drop it permanently.
		remaining = append(remaining[:i], remaining[i+1:]...)
	}

	out := make([]string, len(remaining))
	for i, sp := range remaining {
		out[i] = sp.String()
	}
	return out, nil
}

// probeSatisfiable runs the core backtracking search (without recursive
// unsat-subset computation, to avoid infinite mutual recursion with
// Solve) and reports only whether a solution exists.
func probeSatisfiable(ctx context.Context, params SolveParameters) (bool, error) {
	ri, err := buildReducedIndex(params.Index, params.Specs, params.Installed)
	if err != nil {
		return false, err
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
		maxAttempts: 50000,
	}

	names := sortedNamesFrom(params.Specs, params.Installed)
	return s.search(ctx, names, 0)
}
