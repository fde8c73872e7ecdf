// Package repodata implements the on-disk per-URL JSON cache with state
// sidecar, staleness rules, and conditional HTTP/file fetch described in
// spec.md §4.2.
package repodata

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// State is the sidecar file spec.md §3 describes for each
// (channel_url, subdir, repodata_name) cache entry.
type State struct {
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"mod,omitempty"`
	CacheControl string `json:"cache_control,omitempty"`
	RefreshNS    int64  `json:"refresh_ns"`
	MtimeNS      int64  `json:"mtime_ns"`
	Size         int64  `json:"size"`
	HasZst       bool   `json:"has_zst,omitempty"`
	HasJLAP      bool   `json:"has_jlap,omitempty"`
}

// cacheKey derives the filename-safe hash spec.md §6 describes
// ("<pkgs_dir>/cache/<md5-prefix>.json"), named by hash of channel URL.
func cacheKey(channelURL, subdir, repodataName string) string {
	sum := md5.Sum([]byte(channelURL + "/" + subdir + "/" + repodataName))
	return hex.EncodeToString(sum[:])[:8]
}

func (c *Cache) paths(channelURL, subdir, repodataName string) (jsonPath, statePath string) {
	key := cacheKey(channelURL, subdir, repodataName)
	return filepath.Join(c.dir, key+".json"), filepath.Join(c.dir, key+".info.json")
}

func readState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading cache state %s", path)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(err, "decoding cache state %s", path)
	}
	return &st, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating cache dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing temp file %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "fsyncing temp file %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing temp file %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "renaming %s to %s", tmp.Name(), path)
	}
	return nil
}

// tamperedOrMissing implements the tamper-detection invariant from
// spec.md §3: if the JSON payload's actual stat (size, mtime) differs
// from what state recorded, etag/last_modified must be treated as
// invalid and a full revalidation forced.
func tamperedOrMissing(jsonPath string, st *State) (bool, error) {
	fi, err := os.Stat(jsonPath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "stat %s", jsonPath)
	}
	if st == nil {
		return true, nil
	}
	return fi.Size() != st.Size || fi.ModTime().UnixNano() != st.MtimeNS, nil
}

// isFresh implements the staleness rule in spec.md §4.2.
func isFresh(st *State, ttl time.Duration, now time.Time) bool {
	if st == nil {
		return false
	}
	if ttl < 0 {
		// local_repodata_ttl == 1: honor Cache-Control max-age.
		maxAge, ok := parseMaxAge(st.CacheControl)
		if !ok {
			return false
		}
		ttl = maxAge
	}
	if ttl <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, st.RefreshNS)) <= ttl
}
