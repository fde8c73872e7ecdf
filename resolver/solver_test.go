package resolver

import (
	"context"
	"testing"

	"github.com/2lambda123/conda-conda/condaerrors"
	"github.com/2lambda123/conda-conda/index"
	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

// buildTestIndex constructs an Index directly from records, bypassing
// repodata fetch entirely — the resolver package only ever consumes the
// Index's Query/QueryName surface.
func buildTestIndex(t *testing.T, recs ...*record.PackageRecord) *index.Index {
	t.Helper()
	return index.NewFromRecords(recs)
}

func rec(name, ver, build string, buildNum int, depends ...string) *record.PackageRecord {
	return &record.PackageRecord{
		Name:        name,
		Version:     ver,
		Build:       build,
		BuildNumber: buildNum,
		Subdir:      "linux-64",
		Depends:     depends,
		Fn:          name + "-" + ver + "-" + build + ".tar.bz2",
	}
}

func specs(t *testing.T, texts ...string) []*matchspec.MatchSpec {
	t.Helper()
	out := make([]*matchspec.MatchSpec, 0, len(texts))
	for _, s := range texts {
		ms, err := matchspec.Parse(s)
		if err != nil {
			t.Fatalf("parsing spec %q: %v", s, err)
		}
		out = append(out, ms)
	}
	return out
}

func TestSolveSimpleDependencyChain(t *testing.T) {
	idx := buildTestIndex(t,
		rec("a", "1.0", "0", 0, "b >=1.0"),
		rec("b", "1.0", "0", 0),
		rec("b", "2.0", "0", 0),
	)

	sol, err := Solve(context.Background(), SolveParameters{
		Index: idx,
		Specs: specs(t, "a"),
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	byName := map[string]*record.PackageRecord{}
	for _, r := range sol.Selected {
		byName[r.Name] = r
	}
	if byName["a"] == nil || byName["a"].Version != "1.0" {
		t.Fatalf("expected a-1.0 selected, got %v", byName["a"])
	}
	if byName["b"] == nil || byName["b"].Version != "2.0" {
		t.Fatalf("expected newest satisfying b (2.0), got %v", byName["b"])
	}
}

func TestSolvePrefersInstalledWhenNoChangeRequested(t *testing.T) {
	idx := buildTestIndex(t,
		rec("a", "1.0", "0", 0),
		rec("a", "2.0", "0", 0),
	)

	installed := []*record.PrefixRecord{
		{PackageRecord: *rec("a", "1.0", "0", 0), RequestedSpec: "a"},
	}

	sol, err := Solve(context.Background(), SolveParameters{
		Index:     idx,
		Specs:     specs(t, "a"),
		Installed: installed,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Selected) != 1 || sol.Selected[0].Version != "1.0" {
		t.Fatalf("expected installed a-1.0 to be kept, got %v", sol.Selected)
	}
}

func TestSolveChangeAllUpgradesInstalled(t *testing.T) {
	idx := buildTestIndex(t,
		rec("a", "1.0", "0", 0),
		rec("a", "2.0", "0", 0),
	)

	installed := []*record.PrefixRecord{
		{PackageRecord: *rec("a", "1.0", "0", 0), RequestedSpec: "a"},
	}

	sol, err := Solve(context.Background(), SolveParameters{
		Index:     idx,
		Specs:     specs(t, "a"),
		Installed: installed,
		ChangeAll: true,
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.Selected) != 1 || sol.Selected[0].Version != "2.0" {
		t.Fatalf("expected change_all to upgrade to a-2.0, got %v", sol.Selected)
	}
}

func TestSolveUnsatisfiableReturnsSubset(t *testing.T) {
	idx := buildTestIndex(t,
		rec("a", "1.0", "0", 0),
	)

	_, err := Solve(context.Background(), SolveParameters{
		Index: idx,
		Specs: specs(t, "a >=2.0"),
	})
	if err == nil {
		t.Fatal("expected unsatisfiable error, got nil")
	}
	uerr, ok := err.(*condaerrors.UnsatisfiableError)
	if !ok {
		t.Fatalf("expected *condaerrors.UnsatisfiableError, got %T: %v", err, err)
	}
	if len(uerr.Subset) == 0 {
		t.Fatal("expected a non-empty conflicting subset")
	}
}

func TestSolveConflictingUserSpecsIsolatesMinimalSubset(t *testing.T) {
	idx := buildTestIndex(t,
		rec("a", "1.0", "0", 0),
		rec("b", "1.0", "0", 0),
	)

	_, err := Solve(context.Background(), SolveParameters{
		Index: idx,
		Specs: specs(t, "a >=1.0", "a <1.0", "b"),
	})
	if err == nil {
		t.Fatal("expected unsatisfiable error, got nil")
	}
	uerr, ok := err.(*condaerrors.UnsatisfiableError)
	if !ok {
		t.Fatalf("expected *condaerrors.UnsatisfiableError, got %T", err)
	}
	for _, s := range uerr.Subset {
		if s == "b" {
			t.Fatalf("expected minimal subset to exclude unrelated spec b, got %v", uerr.Subset)
		}
	}
}
