// Package transaction computes and executes the ordered
// FETCH/EXTRACT/UNLINK/LINK instruction stream spec.md §4.5 describes,
// turning a resolver.Solution into prefix state changes. It is grounded
// on the teacher's renameWithFallback/CopyFile atomic-write idiom
// (fs.go) generalized from "install a vendor tree" to "install a set of
// linked package directories".
package transaction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2lambda123/conda-conda/record"
)

// StepKind enumerates the instruction kinds spec.md §4.5 lists.
type StepKind string

const (
	StepPrefix       StepKind = "PREFIX"
	StepFetch        StepKind = "FETCH"
	StepExtract      StepKind = "EXTRACT"
	StepUnlink       StepKind = "UNLINK"
	StepLink         StepKind = "LINK"
	StepSymlinkConda StepKind = "SYMLINK_CONDA"
	StepRegisterEnv  StepKind = "REGISTER_ENV"
)

// Step is one instruction in a Plan.
type Step struct {
	Kind StepKind
	Rec  *record.PackageRecord // nil for PREFIX/SYMLINK_CONDA/REGISTER_ENV
}

// Plan is the ordered instruction stream a Transaction executes.
// Instructions appear in the fixed order spec.md §4.5 requires: PREFIX
// once, then FETCH/EXTRACT for every cache-miss, then UNLINK in reverse
// topological order, then LINK in topological order, then
// SYMLINK_CONDA, then REGISTER_ENV.
type Plan struct {
	PrefixPath string
	Steps      []Step

	// ToUnlink and ToLink are the raw sets the planner computed, kept
	// alongside Steps so Summary() can report counts/sizes without
	// re-deriving them from the instruction stream.
	ToUnlink []*record.PackageRecord
	ToLink   []*record.PackageRecord
}

// BuildPlan derives the ordered instruction stream from the current
// prefix state and the resolver's desired end state. cacheHasRecord
// reports whether a package's extracted files already exist in the
// package cache (skip FETCH/EXTRACT when true).
func BuildPlan(prefixPath string, installed []*record.PrefixRecord, desired []*record.PackageRecord, cacheHasRecord func(*record.PackageRecord) bool) *Plan {
	installedByIdentity := make(map[record.Identity]*record.PrefixRecord, len(installed))
	for _, pr := range installed {
		rec := pr.PackageRecord
		installedByIdentity[rec.Identity()] = pr
	}
	desiredByIdentity := make(map[record.Identity]*record.PackageRecord, len(desired))
	for _, rec := range desired {
		desiredByIdentity[rec.Identity()] = rec
	}

	var toUnlink []*record.PackageRecord
	for _, pr := range installed {
		rec := pr.PackageRecord
		if _, keep := desiredByIdentity[rec.Identity()]; !keep {
			toUnlink = append(toUnlink, &rec)
		}
	}
	var toLink []*record.PackageRecord
	for _, rec := range desired {
		if _, already := installedByIdentity[rec.Identity()]; !already {
			toLink = append(toLink, rec)
		}
	}

	record.SortRecords(toUnlink)
	record.SortRecords(toLink)

	linkOrder := topologicalOrder(toLink)
	unlinkOrder := reverseTopologicalOrder(toUnlink)

	p := &Plan{PrefixPath: prefixPath, ToUnlink: toUnlink, ToLink: toLink}
	p.Steps = append(p.Steps, Step{Kind: StepPrefix})

	for _, rec := range linkOrder {
		if cacheHasRecord == nil || !cacheHasRecord(rec) {
			p.Steps = append(p.Steps, Step{Kind: StepFetch, Rec: rec})
			p.Steps = append(p.Steps, Step{Kind: StepExtract, Rec: rec})
		}
	}
	for _, rec := range unlinkOrder {
		p.Steps = append(p.Steps, Step{Kind: StepUnlink, Rec: rec})
	}
	for _, rec := range linkOrder {
		p.Steps = append(p.Steps, Step{Kind: StepLink, Rec: rec})
	}
	p.Steps = append(p.Steps, Step{Kind: StepSymlinkConda})
	p.Steps = append(p.Steps, Step{Kind: StepRegisterEnv})

	return p
}

// topologicalOrder sorts recs so each record's Depends (by name) precede
// it, falling back to the deterministic name/filename order from
// record.SortRecords when no dependency edge constrains the order (the
// same "stable sort, only perturbed by real constraints" discipline the
// resolver's orderCandidates uses).
func topologicalOrder(recs []*record.PackageRecord) []*record.PackageRecord {
	byName := make(map[string]*record.PackageRecord, len(recs))
	for _, r := range recs {
		byName[r.Name] = r
	}

	visited := make(map[string]int) // 0 unvisited, 1 in-progress, 2 done
	var out []*record.PackageRecord

	var visit func(r *record.PackageRecord)
	visit = func(r *record.PackageRecord) {
		switch visited[r.Name] {
		case 1, 2:
			return
		}
		visited[r.Name] = 1
		depNames := dependencyNames(r)
		sort.Strings(depNames)
		for _, dn := range depNames {
			if dep, ok := byName[dn]; ok {
				visit(dep)
			}
		}
		visited[r.Name] = 2
		out = append(out, r)
	}

	ordered := append([]*record.PackageRecord(nil), recs...)
	record.SortRecords(ordered)
	for _, r := range ordered {
		visit(r)
	}
	return out
}

// reverseTopologicalOrder produces the UNLINK order: dependents removed
// before their dependencies, i.e. the reverse of topologicalOrder.
func reverseTopologicalOrder(recs []*record.PackageRecord) []*record.PackageRecord {
	fwd := topologicalOrder(recs)
	out := make([]*record.PackageRecord, len(fwd))
	for i, r := range fwd {
		out[len(fwd)-1-i] = r
	}
	return out
}

func dependencyNames(r *record.PackageRecord) []string {
	var names []string
	for _, d := range r.Depends {
		name := d
		if idx := strings.IndexAny(d, " <>=!~["); idx >= 0 {
			name = d[:idx]
		}
		names = append(names, name)
	}
	return names
}

// Summary renders the human-readable pre-confirmation report
// original_source/conda/cli/main_install.py prints before asking the
// user to proceed: counts of packages to install/remove and total
// download size for the FETCH steps.
func (p *Plan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prefix: %s\n", p.PrefixPath)
	fmt.Fprintf(&b, "  %d packages to install\n", len(p.ToLink))
	fmt.Fprintf(&b, "  %d packages to remove\n", len(p.ToUnlink))

	var totalSize int64
	for _, step := range p.Steps {
		if step.Kind == StepFetch && step.Rec != nil {
			totalSize += step.Rec.Size
		}
	}
	fmt.Fprintf(&b, "  %s total download\n", formatBytes(totalSize))

	if len(p.ToLink) > 0 {
		b.WriteString("\nThe following packages will be installed:\n")
		for _, rec := range p.ToLink {
			fmt.Fprintf(&b, "  + %s-%s-%s\n", rec.Name, rec.Version, rec.Build)
		}
	}
	if len(p.ToUnlink) > 0 {
		b.WriteString("\nThe following packages will be removed:\n")
		for _, rec := range p.ToUnlink {
			fmt.Fprintf(&b, "  - %s-%s-%s\n", rec.Name, rec.Version, rec.Build)
		}
	}
	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
