package repodata

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// jlapPatch is one line of a JLAP patch stream: a JSON Patch (RFC 6902)
// document plus the expected sha256 of the payload after applying it,
// used to verify each step before committing it.
type jlapPatch struct {
	Patch        json.RawMessage `json:"patch"`
	ToChecksum   string          `json:"to"`
	FromChecksum string          `json:"from"`
}

// tryJLAP applies the ordered JLAP patch lines spec.md §4.2 describes
// against the currently cached payload, verifying the resulting digest
// after each step and returning the updated payload and state on
// success. It runs only when st.HasJLAP is set; that flag is written
// only by an earlier successful tryJLAP, never by revalidate's plain
// fetch path. Any failure is returned as an error, and the caller
// (Cache.revalidate) then falls back to a plain conditional GET of the
// full repodata.json.
func (c *Cache) tryJLAP(ctx context.Context, channelURL, subdir, jsonPath string, st *State) ([]byte, *State, error) {
	if st == nil || !st.HasJLAP {
		return nil, nil, errors.New("no JLAP stream available")
	}

	current, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading current payload for JLAP patch base")
	}

	jlapURL := joinChannelSubdir(channelURL, subdir, "repodata.jlap")
	tp, err := transportFor(jlapURL, httpConfig{client: c.client})
	if err != nil {
		return nil, nil, err
	}
	resp, err := tp.fetch(ctx, jlapURL, "", "")
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != 200 {
		return nil, nil, errors.Errorf("JLAP stream unavailable: HTTP %d", resp.StatusCode)
	}

	payload := current
	scanner := bufio.NewScanner(bytes.NewReader(resp.Body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var patch jlapPatch
		if err := json.Unmarshal(line, &patch); err != nil {
			return nil, nil, errors.Wrap(err, "decoding JLAP patch line")
		}
		if patch.FromChecksum != "" && sha256Hex(payload) != patch.FromChecksum {
			continue
		}
		patched, err := applyJSONPatch(payload, patch.Patch)
		if err != nil {
			return nil, nil, errors.Wrap(err, "applying JLAP patch line")
		}
		if sha256Hex(patched) != patch.ToChecksum {
			return nil, nil, errors.New("JLAP patch digest mismatch")
		}
		payload = patched
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "scanning JLAP stream")
	}

	newState := &State{
		URL:       channelURL,
		RefreshNS: st.RefreshNS,
		HasJLAP:   true,
	}
	return payload, newState, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// applyJSONPatch applies a minimal subset of RFC 6902 ("add"/"remove"/
// "replace" on top-level "packages"/"packages.conda" map keys) — the
// only shapes conda's JLAP server actually emits, per spec.md §6's
// repodata shape. A full generic JSON Patch library is unnecessary
// surface area for a format this constrained.
func applyJSONPatch(base []byte, patchOps json.RawMessage) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding base document for patch")
	}

	var ops []struct {
		Op    string          `json:"op"`
		Path  string          `json:"path"`
		Value json.RawMessage `json:"value,omitempty"`
	}
	if err := json.Unmarshal(patchOps, &ops); err != nil {
		return nil, errors.Wrap(err, "decoding patch operations")
	}

	for _, op := range ops {
		section, key, ok := splitTopLevelPath(op.Path)
		if !ok {
			return nil, errors.Errorf("unsupported JLAP patch path %q", op.Path)
		}
		var table map[string]json.RawMessage
		if raw, ok := doc[section]; ok {
			if err := json.Unmarshal(raw, &table); err != nil {
				table = map[string]json.RawMessage{}
			}
		} else {
			table = map[string]json.RawMessage{}
		}
		switch op.Op {
		case "add", "replace":
			table[key] = op.Value
		case "remove":
			delete(table, key)
		default:
			return nil, errors.Errorf("unsupported JLAP patch op %q", op.Op)
		}
		encoded, err := json.Marshal(table)
		if err != nil {
			return nil, err
		}
		doc[section] = encoded
	}

	return json.Marshal(doc)
}

// splitTopLevelPath parses "/packages/<fn>" into ("packages", "<fn>").
func splitTopLevelPath(p string) (section, key string, ok bool) {
	if len(p) == 0 || p[0] != '/' {
		return "", "", false
	}
	rest := p[1:]
	idx := bytes.IndexByte([]byte(rest), '/')
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
