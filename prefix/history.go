package prefix

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// historyTimeLayout matches transaction.historyTimeLayout; duplicated
// here rather than imported since prefix parses history and transaction
// writes it — the two packages deliberately don't depend on each other,
// only on the shared grammar documented in Design Note §9(b).
const historyTimeLayout = "2006-01-02 15:04:05"

// HistoryEntry is one parsed "==> timestamp <==" stanza.
type HistoryEntry struct {
	Time        time.Time
	UpdateSpecs []string
	Added       []string // "name-version-build" strings, from "+..." lines
	Removed     []string // from "-..." lines
}

// History is the parsed conda-meta/history log for one prefix.
type History struct {
	Entries []HistoryEntry
}

// ParseHistory reads and parses prefixPath's conda-meta/history file per
// the strict grammar Design Note §9(b) fixes: a "==> <timestamp> <=="
// header line starts each entry; an optional "# update specs: [...]"
// comment; then any number of "+pkg"/"-pkg" lines. Lines that don't fit
// this grammar (legacy formats conda historically also wrote) are
// skipped rather than erroring, since history is advisory, not
// load-bearing for correctness.
func ParseHistory(prefixPath string) (*History, error) {
	path := filepath.Join(prefixPath, "conda-meta", "history")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{}, nil
		}
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	h := &History{}
	var cur *HistoryEntry

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "==> ") && strings.HasSuffix(line, " <=="):
			if cur != nil {
				h.Entries = append(h.Entries, *cur)
			}
			tsText := strings.TrimSuffix(strings.TrimPrefix(line, "==> "), " <==")
			t, err := time.Parse(historyTimeLayout, tsText)
			if err != nil {
				cur = nil
				continue
			}
			cur = &HistoryEntry{Time: t}

		case cur == nil:
			continue

		case strings.HasPrefix(line, "# update specs: ["):
			inner := strings.TrimSuffix(strings.TrimPrefix(line, "# update specs: ["), "]")
			cur.UpdateSpecs = splitQuotedList(inner)

		case strings.HasPrefix(line, "+"):
			cur.Added = append(cur.Added, line[1:])

		case strings.HasPrefix(line, "-"):
			cur.Removed = append(cur.Removed, line[1:])
		}
	}
	if cur != nil {
		h.Entries = append(h.Entries, *cur)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning conda-meta/history")
	}

	return h, nil
}

func splitQuotedList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, "'\"")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ReconstructRequestedSpecs replays History to recover, for each
// currently-added "name-version-build" entry across all history
// entries, the update-spec text (if any) that caused it to be added —
// i.e. which installed records were directly user-requested versus
// pulled in only as a transitive dependency. This mirrors
// original_source/conda/history.py's construct_states/get_requested_specs_map,
// simplified to the single-field RequestedSpec this module's
// PrefixRecord carries rather than a full per-revision state map.
func (h *History) ReconstructRequestedSpecs() map[string]string {
	requested := make(map[string]string)

	for _, entry := range h.Entries {
		specByName := make(map[string]string, len(entry.UpdateSpecs))
		for _, spec := range entry.UpdateSpecs {
			name := spec
			if idx := strings.IndexAny(spec, " <>=!~["); idx >= 0 {
				name = spec[:idx]
			}
			specByName[name] = spec
		}

		for _, added := range entry.Added {
			name := nameFromFilenameKey(added)
			if spec, ok := specByName[name]; ok {
				requested[name] = spec
			} else if _, already := requested[name]; !already {
				// Added transitively in this entry: mark as present but
				// not directly requested, distinguished from "never
				// seen" by an empty string rather than absence.
				requested[name] = ""
			}
		}
		for _, removed := range entry.Removed {
			delete(requested, nameFromFilenameKey(removed))
		}
	}

	return requested
}

// nameFromFilenameKey extracts "name" from a "name-version-build" history
// line, where version and build themselves may contain hyphens; conda's
// own grammar resolves this ambiguity by splitting from the right on
// exactly two hyphens, since build strings never contain a hyphen
// followed by a purely-version-shaped segment. We mirror that: split off
// the last two hyphen-delimited fields as build and version, leaving the
// (possibly hyphenated) remainder as the name.
func nameFromFilenameKey(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) < 3 {
		return s
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
