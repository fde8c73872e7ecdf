package repodata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/condaerrors"
	"github.com/2lambda123/conda-conda/internal/telemetry"
)

const repodataName = "repodata.json"

// Cache is the per-(channel_url, subdir, repodata_name) on-disk JSON
// cache spec.md §4.2 describes, exposing fetch_latest_parsed,
// fetch_latest_str, and fetch_latest_path.
type Cache struct {
	dir    string
	ttl    time.Duration
	client *http.Client
	log    telemetry.Logger
	mx     *telemetry.Metrics

	inflight   sync.Map // key -> *sync.WaitGroup, single-flight per (channel,subdir)
	inflightMu sync.Mutex

	allowNonChannelURLs bool
}

// NewCache constructs a Cache rooted at dir (conventionally
// "<pkgs_dir>/cache"), per Design Note §9's "per-Engine caches": no
// package-level state, every field lives on this value so tests can
// construct a fresh Cache per case.
func NewCache(dir string, ttl time.Duration, log telemetry.Logger, mx *telemetry.Metrics) *Cache {
	return &Cache{
		dir:    dir,
		ttl:    ttl,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
		mx:     mx,
	}
}

// Result is what the three fetch_latest_* operations return: the
// payload in whichever form was requested, plus the sidecar state.
type Result struct {
	State *State
}

// FetchLatestParsed returns the decoded repodata payload (top-level
// "info"/"packages"/"packages.conda"/"removed" keys, spec.md §6) and its
// sidecar state.
func (c *Cache) FetchLatestParsed(ctx context.Context, channelURL, subdir string) (*Document, *State, error) {
	data, st, err := c.FetchLatestPath(ctx, channelURL, subdir)
	if err != nil {
		return nil, nil, err
	}
	raw, err := os.ReadFile(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading cached payload %s", data)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, nil, err
	}
	return doc, st, nil
}

// FetchLatestStr returns the raw JSON text and sidecar state.
func (c *Cache) FetchLatestStr(ctx context.Context, channelURL, subdir string) (string, *State, error) {
	path, st, err := c.FetchLatestPath(ctx, channelURL, subdir)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "reading cached payload %s", path)
	}
	return string(data), st, nil
}

// FetchLatestPath ensures the cache entry for (channelURL, subdir) is
// fresh and returns the path to its JSON payload plus sidecar state.
// This is the one real implementation; FetchLatestParsed/Str are thin
// projections over it, per spec.md §4.2.
func (c *Cache) FetchLatestPath(ctx context.Context, channelURL, subdir string) (string, *State, error) {
	key := channelURL + "|" + subdir
	c.inflightMu.Lock()
	if wgAny, ok := c.inflight.Load(key); ok {
		c.inflightMu.Unlock()
		wg := wgAny.(*sync.WaitGroup)
		wg.Wait()
	} else {
		wg := &sync.WaitGroup{}
		wg.Add(1)
		c.inflight.Store(key, wg)
		c.inflightMu.Unlock()
		defer func() {
			c.inflight.Delete(key)
			wg.Done()
		}()
	}

	return c.fetchLatestPathLocked(ctx, channelURL, subdir)
}

func (c *Cache) fetchLatestPathLocked(ctx context.Context, channelURL, subdir string) (string, *State, error) {
	jsonPath, statePath := c.paths(channelURL, subdir, repodataName)

	st, err := readState(statePath)
	if err != nil {
		return "", nil, err
	}

	tampered, err := tamperedOrMissing(jsonPath, st)
	if err != nil {
		return "", nil, err
	}
	if tampered {
		st = nil
	}

	now := time.Now()
	if isFresh(st, c.ttl, now) {
		if c.mx != nil {
			c.mx.CacheHits.Inc()
		}
		return jsonPath, st, nil
	}
	if c.mx != nil {
		c.mx.CacheMisses.Inc()
	}

	return c.revalidate(ctx, channelURL, subdir, jsonPath, statePath, st, now)
}

func (c *Cache) revalidate(ctx context.Context, channelURL, subdir, jsonPath, statePath string, st *State, now time.Time) (string, *State, error) {
	tp, err := transportFor(joinChannelSubdir(channelURL, subdir, repodataName), httpConfig{client: c.client})
	if err != nil {
		return "", nil, err
	}

	etag, lastMod := "", ""
	if st != nil {
		etag, lastMod = st.ETag, st.LastModified
	}

	if jlapDoc, jlapSt, jerr := c.tryJLAP(ctx, channelURL, subdir, jsonPath, st); jerr == nil {
		return c.commit(jsonPath, statePath, jlapDoc, jlapSt)
	}

	resp, err := tp.fetch(ctx, joinChannelSubdir(channelURL, subdir, repodataName), etag, lastMod)
	if err != nil {
		return "", nil, err
	}

	switch {
	case resp.NotModified:
		st.RefreshNS = now.UnixNano()
		if err := c.saveState(statePath, st); err != nil {
			return "", nil, err
		}
		return jsonPath, st, nil

	case resp.StatusCode == http.StatusNotFound:
		if subdir == "noarch" || c.allowEmpty(channelURL) {
			empty := []byte(`{"info":{},"packages":{},"packages.conda":{}}`)
			newState := &State{URL: channelURL, RefreshNS: now.UnixNano()}
			return c.commit(jsonPath, statePath, empty, newState)
		}
		return "", nil, &condaerrors.ChannelNotAvailable{Channel: channelURL, Subdir: subdir}

	case resp.StatusCode == http.StatusOK:
		newState := &State{
			URL:          channelURL,
			ETag:         resp.ETag,
			LastModified: resp.LastModified,
			CacheControl: resp.CacheControl,
			RefreshNS:    now.UnixNano(),
		}
		return c.commit(jsonPath, statePath, resp.Body, newState)

	default:
		return "", nil, &condaerrors.HTTPError{URL: channelURL, StatusCode: resp.StatusCode}
	}
}

// allowEmpty is a placeholder hook for the allow_non_channel_urls
// configuration flag; Cache is constructed per engine without a full
// CoreConfig to keep it independently testable, so callers that need the
// allow-flag behavior wrap Cache and override this via WithAllowEmpty.
func (c *Cache) allowEmpty(string) bool { return c.allowNonChannelURLs }

// WithAllowEmpty returns a shallow copy of c configured to treat any
// subdir's 404 (not only noarch's) as an empty, successful repodata
// response, per spec.md §4.2's allow_non_channel_urls carve-out.
func (c *Cache) WithAllowEmpty(allow bool) *Cache {
	cp := *c
	cp.allowNonChannelURLs = allow
	return &cp
}

func (c *Cache) commit(jsonPath, statePath string, body []byte, st *State) (string, *State, error) {
	if err := writeAtomic(jsonPath, body); err != nil {
		return "", nil, err
	}
	fi, err := os.Stat(jsonPath)
	if err != nil {
		return "", nil, errors.Wrapf(err, "stat %s after write", jsonPath)
	}
	st.Size = fi.Size()
	st.MtimeNS = fi.ModTime().UnixNano()
	if err := c.saveState(statePath, st); err != nil {
		return "", nil, err
	}
	return jsonPath, st, nil
}

func (c *Cache) saveState(path string, st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding cache state")
	}
	return writeAtomic(path, data)
}

func joinChannelSubdir(channelURL, subdir, name string) string {
	u, err := url.Parse(channelURL)
	if err != nil {
		return channelURL + "/" + subdir + "/" + name
	}
	u.Path = filepath.ToSlash(filepath.Join(u.Path, subdir, name))
	return u.String()
}
