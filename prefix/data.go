// Package prefix implements PrefixData, the queryable view over an
// installed environment's conda-meta directory described in spec.md
// §4.6, plus the append-only history log and the user-level
// environments registry.
package prefix

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

// Data is the queryable, mutable view over one prefix's conda-meta
// directory. Each mutating method (Insert/Remove) is a single atomic
// file write or delete; Data itself does not batch writes across calls,
// matching spec.md §4.6's "each one atomic single-file write/delete".
type Data struct {
	prefixPath string

	mu      sync.RWMutex
	byName  map[string]*record.PrefixRecord
}

// Open loads every conda-meta/*.json record for prefixPath into memory.
// Malformed files are skipped with a returned error only if the
// conda-meta directory itself cannot be listed; individual bad JSON
// files are tolerated (skipped) the way a half-written conda-meta entry
// from an interrupted transaction should be.
func Open(prefixPath string) (*Data, error) {
	d := &Data{prefixPath: prefixPath, byName: make(map[string]*record.PrefixRecord)}

	metaDir := filepath.Join(prefixPath, "conda-meta")
	entries, err := os.ReadDir(metaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, errors.Wrapf(err, "reading %s", metaDir)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if e.Name() == "state" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(metaDir, e.Name()))
		if err != nil {
			continue
		}
		pr, err := record.UnmarshalPrefixRecord(data)
		if err != nil {
			continue
		}
		d.byName[pr.Name] = pr
	}

	return d, nil
}

// IterRecords returns every PrefixRecord sorted by name.
func (d *Data) IterRecords() []*record.PrefixRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*record.PrefixRecord, 0, len(d.byName))
	for _, pr := range d.byName {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Query returns every installed record matching ms.
func (d *Data) Query(ms *matchspec.MatchSpec) []*record.PrefixRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*record.PrefixRecord
	for _, pr := range d.byName {
		rec := pr.PackageRecord
		if ms.Match(&rec) {
			out = append(out, pr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the installed record for name, if any.
func (d *Data) Get(name string) (*record.PrefixRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pr, ok := d.byName[name]
	return pr, ok
}

// Insert atomically writes conda-meta/<pkg>.json and updates the
// in-memory view. Implements transaction.MetaStore.
func (d *Data) Insert(pr *record.PrefixRecord) error {
	data, err := record.MarshalPrefixRecord(pr)
	if err != nil {
		return errors.Wrap(err, "marshal prefix record")
	}

	metaDir := filepath.Join(d.prefixPath, "conda-meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		return errors.Wrap(err, "mkdir conda-meta")
	}

	dst := filepath.Join(metaDir, pr.FileNameOnDisk())
	tmp := dst + ".condatmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write conda-meta temp file")
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename conda-meta file into place")
	}

	d.mu.Lock()
	d.byName[pr.Name] = pr
	d.mu.Unlock()
	return nil
}

// Remove atomically deletes name's conda-meta/<pkg>.json and updates
// the in-memory view. Implements transaction.MetaStore.
func (d *Data) Remove(name string) error {
	d.mu.Lock()
	pr, ok := d.byName[name]
	if ok {
		delete(d.byName, name)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}

	path := filepath.Join(d.prefixPath, "conda-meta", pr.FileNameOnDisk())
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", path)
	}
	return nil
}

// PackageDirs returns each linked package's cache source directory, for
// transaction.mergeEnvVars to scan. Implements transaction.MetaStore.
func (d *Data) PackageDirs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []string
	for _, pr := range d.byName {
		if pr.Link.Source != "" {
			out = append(out, pr.Link.Source)
		}
	}
	sort.Strings(out)
	return out
}

// SetEnvironmentEnvVars overwrites conda-meta/state's env_vars map
// directly (e.g. via `conda env config vars set`), independent of the
// package-merge path transaction.mergeEnvVars drives during LINK/UNLINK.
func (d *Data) SetEnvironmentEnvVars(vars map[string]string) error {
	return writeState(d.prefixPath, vars)
}
