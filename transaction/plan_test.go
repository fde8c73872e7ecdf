package transaction

import (
	"strings"
	"testing"

	"github.com/2lambda123/conda-conda/record"
)

func mkRec(name, ver, build string, depends ...string) *record.PackageRecord {
	return &record.PackageRecord{
		Name: name, Version: ver, Build: build,
		Subdir: "linux-64", Depends: depends,
		Fn: name + "-" + ver + "-" + build + ".tar.bz2",
	}
}

func TestBuildPlanOrdersLinksAfterDependencies(t *testing.T) {
	a := mkRec("a", "1.0", "0", "b")
	b := mkRec("b", "1.0", "0")

	plan := BuildPlan("/prefix", nil, []*record.PackageRecord{a, b}, func(*record.PackageRecord) bool { return true })

	var linkOrder []string
	for _, step := range plan.Steps {
		if step.Kind == StepLink {
			linkOrder = append(linkOrder, step.Rec.Name)
		}
	}
	if len(linkOrder) != 2 || linkOrder[0] != "b" || linkOrder[1] != "a" {
		t.Fatalf("expected link order [b a], got %v", linkOrder)
	}
}

func TestBuildPlanEmitsFetchExtractOnlyForCacheMiss(t *testing.T) {
	a := mkRec("a", "1.0", "0")
	b := mkRec("b", "1.0", "0")

	cached := map[string]bool{"a": true}
	plan := BuildPlan("/prefix", nil, []*record.PackageRecord{a, b}, func(r *record.PackageRecord) bool {
		return cached[r.Name]
	})

	var fetched []string
	for _, step := range plan.Steps {
		if step.Kind == StepFetch {
			fetched = append(fetched, step.Rec.Name)
		}
	}
	if len(fetched) != 1 || fetched[0] != "b" {
		t.Fatalf("expected only b to be fetched, got %v", fetched)
	}
}

func TestBuildPlanUnlinksRemovedPackages(t *testing.T) {
	installed := []*record.PrefixRecord{
		{PackageRecord: *mkRec("old", "1.0", "0")},
	}
	plan := BuildPlan("/prefix", installed, nil, nil)

	var unlinked []string
	for _, step := range plan.Steps {
		if step.Kind == StepUnlink {
			unlinked = append(unlinked, step.Rec.Name)
		}
	}
	if len(unlinked) != 1 || unlinked[0] != "old" {
		t.Fatalf("expected old to be unlinked, got %v", unlinked)
	}
}

func TestPlanSummaryReportsCounts(t *testing.T) {
	a := mkRec("a", "1.0", "0")
	a.Size = 2048
	plan := BuildPlan("/prefix", nil, []*record.PackageRecord{a}, func(*record.PackageRecord) bool { return false })

	summary := plan.Summary()
	if summary == "" {
		t.Fatal("expected non-empty summary")
	}
	if !strings.Contains(summary, "1 packages to install") {
		t.Fatalf("expected install count in summary, got %q", summary)
	}
	if !strings.Contains(summary, "2.0 KiB total download") {
		t.Fatalf("expected download size in summary, got %q", summary)
	}
}
