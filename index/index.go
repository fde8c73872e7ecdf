// Package index implements IndexEngine, the merge of repodata, prefix
// state, and virtual packages described in spec.md §4.3. Per Design
// Note §9 ("shared caches as module-level state → per-Engine caches"),
// every cache this package needs is a field of Engine; there is no
// package-level memoization, so tests can construct fresh engines
// freely.
package index

import (
	"context"
	"sort"

	"github.com/2lambda123/conda-conda/condaerrors"
	"github.com/2lambda123/conda-conda/config"
	"github.com/2lambda123/conda-conda/internal/telemetry"
	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
	"github.com/2lambda123/conda-conda/repodata"
)

// Index is the merged mapping from PackageRecord identity to
// PackageRecord, as described in spec.md §3. Channel priority decides
// which record is kept when two channels provide the same identity
// (lower Priority wins, see Engine.Build); Query and QueryName results
// are sorted by name and filename, not by priority.
type Index struct {
	byIdentity map[record.Identity]*record.PackageRecord
	byName     map[string][]*record.PackageRecord
}

// Query returns every record matching ms, per spec.md §4.3.
func (idx *Index) Query(ms *matchspec.MatchSpec) []*record.PackageRecord {
	var out []*record.PackageRecord
	for _, rec := range idx.byName[ms.Name] {
		if ms.Match(rec) {
			out = append(out, rec)
		}
	}
	record.SortRecords(out)
	return out
}

// QueryName returns every record for name regardless of MatchSpec,
// sorted deterministically; used by the resolver to build its reduced
// index.
func (idx *Index) QueryName(name string) []*record.PackageRecord {
	out := append([]*record.PackageRecord(nil), idx.byName[name]...)
	record.SortRecords(out)
	return out
}

// NewFromRecords builds an Index directly from a flat record list,
// bypassing repodata fetch. Used by tests across packages (resolver,
// transaction) that need a populated Index without a network or cache.
func NewFromRecords(recs []*record.PackageRecord) *Index {
	idx := &Index{
		byIdentity: make(map[record.Identity]*record.PackageRecord),
		byName:     make(map[string][]*record.PackageRecord),
	}
	for _, r := range recs {
		idx.put(r)
	}
	return idx
}

// Contains reports whether r's identity is present in the index.
func (idx *Index) Contains(r *record.PackageRecord) bool {
	_, ok := idx.byIdentity[r.Identity()]
	return ok
}

// Len returns the number of distinct identities in the index.
func (idx *Index) Len() int {
	return len(idx.byIdentity)
}

// Engine builds Index values from channels, subdirs, and prefix state.
// It is long-lived (constructed once per condacore invocation) but
// carries no cross-Build memoization; every Build call fetches fresh
// repodata through its own Cache.
type Engine struct {
	cfg   config.CoreConfig
	cache *repodata.Cache
	log   telemetry.Logger
	mx    *telemetry.Metrics
}

// NewEngine constructs an Engine. cache is typically shared across
// Engine instances within one process so its on-disk state and
// single-flight map are effective, but Engine itself holds no other
// mutable shared state.
func NewEngine(cfg config.CoreConfig, cache *repodata.Cache, log telemetry.Logger, mx *telemetry.Metrics) *Engine {
	return &Engine{cfg: cfg, cache: cache, log: log, mx: mx}
}

// Build fetches repodata for every (channel, subdir) in parallel,
// merges by identity (higher-priority channel — lower Priority number —
// wins), supplements with prefix records and virtual packages, and
// optionally injects pip as a python dependency, per spec.md §4.3.
func (e *Engine) Build(ctx context.Context, prefixRecords []*record.PrefixRecord) (*Index, error) {
	specs := make([]repodata.ChannelSpec, 0, len(e.cfg.Channels))
	for _, ch := range e.cfg.Channels {
		specs = append(specs, repodata.ChannelSpec{URL: ch.BaseURL, Key: ch.Name, Priority: ch.Priority})
	}

	results := e.cache.FetchAll(ctx, specs, e.cfg.Subdirs, e.cfg.FetchPoolSize)

	idx := &Index{
		byIdentity: make(map[record.Identity]*record.PackageRecord),
		byName:     make(map[string][]*record.PackageRecord),
	}
	priorityOf := make(map[record.Identity]int)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Priority != results[j].Priority {
			return results[i].Priority < results[j].Priority
		}
		if results[i].ChannelKey != results[j].ChannelKey {
			return results[i].ChannelKey < results[j].ChannelKey
		}
		return results[i].Subdir < results[j].Subdir
	})

	var firstErr error
	for _, res := range results {
		if res.Err != nil {
			if _, ok := res.Err.(*condaerrors.RepodataIsEmpty); ok {
				continue
			}
			if firstErr == nil {
				firstErr = res.Err
			}
			if e.log != nil {
				e.log.Warnf("repodata fetch failed for %s/%s: %v", res.ChannelKey, res.Subdir, res.Err)
			}
			continue
		}
		if res.Doc == nil {
			continue
		}
		for _, rec := range res.Doc.AllRecords() {
			rec.Channel = res.ChannelKey
			rec.Priority = res.Priority
			id := rec.Identity()
			if existingPriority, ok := priorityOf[id]; ok && existingPriority <= res.Priority {
				continue
			}
			idx.put(rec)
			priorityOf[id] = res.Priority
		}
	}
	if firstErr != nil && idx.Len() == 0 {
		return nil, firstErr
	}

	for _, pr := range prefixRecords {
		rec := pr.PackageRecord
		id := rec.Identity()
		if _, ok := idx.byIdentity[id]; !ok {
			idx.put(&rec)
		}
	}

	for _, vp := range virtualPackages(e.cfg) {
		idx.put(vp)
	}

	if e.cfg.AddPipAsPythonDependency {
		injectPipDependency(idx)
	}

	return idx, nil
}

func (idx *Index) put(rec *record.PackageRecord) {
	id := rec.Identity()
	idx.byIdentity[id] = rec
	idx.byName[rec.Name] = append(idx.byName[rec.Name], rec)
}

// injectPipDependency appends "pip" to every python record's Depends
// list when it is not already present, per spec.md §4.3 item 6.
func injectPipDependency(idx *Index) {
	for _, rec := range idx.byName["python"] {
		has := false
		for _, d := range rec.Depends {
			if d == "pip" || hasName(d, "pip") {
				has = true
				break
			}
		}
		if !has {
			rec.Depends = append(rec.Depends, "pip")
		}
	}
}

func hasName(dependSpec, name string) bool {
	ms, err := matchspec.Parse(dependSpec)
	if err != nil {
		return false
	}
	return ms.Name == name
}
