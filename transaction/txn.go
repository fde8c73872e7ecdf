package transaction

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/internal/lock"
	"github.com/2lambda123/conda-conda/internal/telemetry"
	"github.com/2lambda123/conda-conda/record"
)

// PackageCache is the narrow interface Transaction needs from the
// on-disk package cache: whether a record's extracted files already
// exist, how to fetch+extract one that doesn't, and where its extracted
// directory lives once it does. Kept as an interface (rather than a
// concrete *repodata.Cache dependency) so tests can fake it, the same
// seam the teacher draws around gps.SourceManager in solve.go.
type PackageCache interface {
	HasExtracted(rec *record.PackageRecord) bool
	FetchAndExtract(ctx context.Context, rec *record.PackageRecord) error
	ExtractedDir(rec *record.PackageRecord) string
}

// MetaStore is the narrow interface Transaction needs to read and write
// conda-meta/<pkg>.json records; prefix.Data implements this.
type MetaStore interface {
	Insert(pr *record.PrefixRecord) error
	Remove(name string) error
	Get(name string) (*record.PrefixRecord, bool)
	PackageDirs() []string // cache directories of every currently-linked package, for env_vars merge
}

// Transaction executes a Plan against a prefix: fetch/extract missing
// cache entries with retry, unlink removed packages, link new ones with
// prefix rewriting, and record the result atomically in conda-meta.
type Transaction struct {
	Prefix     string
	Cache      PackageCache
	Meta       MetaStore
	Log        telemetry.Logger
	Metrics    *telemetry.Metrics
	PyBinRel   string // e.g. "bin" or "Scripts", active Python's script dir relative to prefix
	PySiteRel  string // e.g. "lib/python3.11/site-packages"
	BuildShPrefix string // placeholder prefix baked into package files at build time
}

const (
	maxFetchRetries  = 4
	retryBaseBackoff = 200 * time.Millisecond
)

// Execute runs plan to completion. dryRun, when true, performs no side
// effects and returns DryRun(plan) immediately — the FETCH/EXTRACT
// retry loop and conda-meta writes never run.
func (t *Transaction) Execute(ctx context.Context, plan *Plan, dryRun bool, updateSpecs []string) Outcome {
	if dryRun {
		return DryRun(plan)
	}

	prefixLock := lock.New(filepath.Join(t.Prefix, "conda-meta", ".condalock"))
	if err := prefixLock.AcquireExclusive(ctx, 200*time.Millisecond); err != nil {
		return Failed(err)
	}
	defer prefixLock.Release()

	if err := os.MkdirAll(filepath.Join(t.Prefix, "conda-meta"), 0o755); err != nil {
		return Failed(errors.Wrap(err, "create conda-meta"))
	}

	// Snapshot of currently-linked PrefixRecords for rollback, matching
	// spec.md §4.5's "in-memory pre-transaction snapshot of conda-meta".
	snapshot := make(map[string]*record.PrefixRecord)
	for _, rec := range plan.ToUnlink {
		if pr, ok := t.Meta.Get(rec.Name); ok {
			snapshot[rec.Name] = pr
		}
	}

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return Failed(err)
		}

		switch step.Kind {
		case StepPrefix:
			// No-op: conda-meta directory already ensured above.

		case StepFetch, StepExtract:
			if step.Kind == StepExtract {
				continue // handled together with StepFetch below
			}
			if t.Cache.HasExtracted(step.Rec) {
				continue
			}
			if err := t.fetchExtractWithRetry(ctx, step.Rec); err != nil {
				return Failed(err)
			}

		case StepUnlink:
			if err := t.unlinkOne(step.Rec); err != nil {
				t.rollback(snapshot, plan)
				return Failed(err)
			}

		case StepLink:
			if err := t.linkOne(ctx, step.Rec); err != nil {
				t.rollback(snapshot, plan)
				return Failed(err)
			}

		case StepSymlinkConda:
			if err := t.symlinkConda(); err != nil {
				return Failed(err)
			}

		case StepRegisterEnv:
			if _, err := mergeEnvVars(t.Prefix, t.Meta.PackageDirs()); err != nil {
				return Failed(err)
			}
		}
	}

	if err := t.appendHistory(updateSpecs, plan.ToLink, plan.ToUnlink); err != nil {
		return Failed(err)
	}

	return Applied()
}

// fetchExtractWithRetry retries FETCH/EXTRACT with exponential backoff
// (spec.md §4.5: "FETCH/EXTRACT failures retry with exponential backoff
// then abort before any UNLINK/LINK runs"), grounded on the teacher's
// networking retry idiom in deduce.go's repeated-attempt HTTP fetch.
func (t *Transaction) fetchExtractWithRetry(ctx context.Context, rec *record.PackageRecord) error {
	var lastErr error
	for attempt := 0; attempt < maxFetchRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(retryBaseBackoff) * math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = t.Cache.FetchAndExtract(ctx, rec)
		if lastErr == nil {
			return nil
		}
		if t.Log != nil {
			t.Log.Warnf("fetch/extract attempt %d for %s failed: %v", attempt+1, rec.FilenameKey(), lastErr)
		}
	}
	return errors.Wrapf(lastErr, "fetch/extract %s: exhausted retries", rec.FilenameKey())
}

func (t *Transaction) unlinkOne(rec *record.PackageRecord) error {
	pr, ok := t.Meta.Get(rec.Name)
	if !ok {
		return nil
	}
	for _, p := range pr.Files {
		full := filepath.Join(t.Prefix, p)
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %s", full)
		}
	}
	// conda-meta record removed only after every file-level removal
	// succeeds, per spec.md §4.5's atomicity rule.
	return t.Meta.Remove(rec.Name)
}

func (t *Transaction) linkOne(ctx context.Context, rec *record.PackageRecord) error {
	cacheDir := t.Cache.ExtractedDir(rec)
	pr := &record.PrefixRecord{PackageRecord: *rec}

	placeholders := loadPrefixPlaceholders(cacheDir)

	err := filepath.Walk(cacheDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(cacheDir, path)
		if err != nil {
			return err
		}
		// info/ carries build-time package metadata (index.json,
		// paths.json, files, has_prefix); it is never installed into
		// the prefix, only the payload alongside it.
		if rel == "info" || strings.HasPrefix(rel, "info"+string(filepath.Separator)) {
			return nil
		}

		dst := filepath.Join(t.Prefix, rel)
		noarchRelocated := false
		if rec.Noarch == record.NoarchPython {
			dst, noarchRelocated = noarchPythonDest(t.Prefix, t.PySiteRel, t.PyBinRel, rel)
		}

		pd, hasPD := placeholders[rel]

		var actual record.LinkType
		if hasPD && pd.NoLink {
			actual, err = copyFile(path, dst)
		} else {
			var lt record.LinkType
			lt, err = probeLinkType(path, filepath.Dir(dst))
			if err == nil {
				actual, err = linkFile(path, dst, lt)
			}
		}
		if err != nil {
			return errors.Wrapf(err, "linking %s", rel)
		}

		if hasPD && pd.PrefixPlaceholder != "" {
			if err := rewritePrefixPlaceholder(dst, pd.PrefixPlaceholder, t.Prefix, pd.FileMode); err != nil {
				return errors.Wrapf(err, "rewriting prefix placeholder in %s", rel)
			}
		}
		if strings.HasPrefix(rel, "bin/") && !noarchRelocated {
			_ = rewriteShebang(dst, t.BuildShPrefix, t.Prefix)
		}

		entry := record.PathData{Path: rel, PathType: pathFileModeFor(actual)}
		if hasPD {
			entry.Sha256 = pd.Sha256
			entry.SizeInBytes = pd.SizeInBytes
			entry.PrefixPlaceholder = pd.PrefixPlaceholder
			entry.FileMode = pd.FileMode
			entry.NoLink = pd.NoLink
		}
		pr.Files = append(pr.Files, rel)
		pr.PathsData = append(pr.PathsData, entry)
		pr.Link = record.LinkInfo{Source: cacheDir, Type: actual}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "linking %s", rec.FilenameKey())
	}

	// conda-meta/<pkg>.json written only after every file-level LINK
	// succeeds.
	return t.Meta.Insert(pr)
}

// loadPrefixPlaceholders reads an extracted package's info/paths.json
// (preferred) or, failing that, the legacy info/has_prefix format, and
// returns per-relative-path prefix-rewrite data. A package with neither
// file (or with no placeholders at all) yields an empty map, and every
// file links without a rewrite pass.
func loadPrefixPlaceholders(cacheDir string) map[string]record.PathData {
	if data, err := os.ReadFile(filepath.Join(cacheDir, "info", "paths.json")); err == nil {
		if paths, err := record.UnmarshalPathsJSON(data); err == nil {
			out := make(map[string]record.PathData, len(paths))
			for _, p := range paths {
				out[filepath.FromSlash(p.Path)] = p
			}
			return out
		}
	}

	out := make(map[string]record.PathData)
	data, err := os.ReadFile(filepath.Join(cacheDir, "info", "has_prefix"))
	if err != nil {
		return out
	}
	entries, err := record.ParseHasPrefix(data)
	if err != nil {
		return out
	}
	for relSlash, e := range entries {
		rel := filepath.FromSlash(relSlash)
		out[rel] = record.PathData{Path: rel, PrefixPlaceholder: e.Placeholder, FileMode: e.FileMode}
	}
	return out
}

func pathFileModeFor(lt record.LinkType) record.PathFileMode {
	switch lt {
	case record.LinkHard:
		return record.FileModeHardlink
	case record.LinkSoft:
		return record.FileModeSoftlink
	default:
		return record.FileModeCopy
	}
}

func (t *Transaction) rollback(snapshot map[string]*record.PrefixRecord, plan *Plan) {
	for _, rec := range plan.ToLink {
		if pr, ok := t.Meta.Get(rec.Name); ok {
			for _, p := range pr.Files {
				os.Remove(filepath.Join(t.Prefix, p))
			}
			t.Meta.Remove(rec.Name)
		}
	}
	for _, pr := range snapshot {
		t.Meta.Insert(pr)
	}
}

func (t *Transaction) symlinkConda() error {
	condaBin, err := os.Executable()
	if err != nil {
		return nil // best effort; not fatal to the transaction
	}
	dst := filepath.Join(t.Prefix, "condabin", "conda")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "mkdir condabin")
	}
	os.Remove(dst)
	if err := os.Symlink(condaBin, dst); err != nil {
		return errors.Wrap(err, "symlink condabin/conda")
	}
	return nil
}

func (t *Transaction) appendHistory(updateSpecs []string, linked, unlinked []*record.PackageRecord) error {
	historyPath := filepath.Join(t.Prefix, "conda-meta", "history")
	f, err := os.OpenFile(historyPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open conda-meta/history")
	}
	defer f.Close()

	entry := FormatHistoryEntry(time.Now().UTC(), updateSpecs, linked, unlinked)
	if _, err := f.WriteString(entry); err != nil {
		return errors.Wrap(err, "append conda-meta/history")
	}
	return nil
}
