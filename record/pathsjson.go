package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// rawPathsJSON mirrors a package archive's info/paths.json (spec.md §6:
// "tar containing info/ (with index.json, files, paths.json, optional
// has_prefix, no_link)"), the "paths_version": 1 shape real conda
// packages ship.
type rawPathsJSON struct {
	PathsVersion int            `json:"paths_version"`
	Paths        []rawPathEntry `json:"paths"`
}

type rawPathEntry struct {
	Path              string `json:"_path"`
	PathType          string `json:"path_type,omitempty"`
	Sha256            string `json:"sha256,omitempty"`
	SizeInBytes       int64  `json:"size_in_bytes,omitempty"`
	PrefixPlaceholder string `json:"prefix_placeholder,omitempty"`
	FileMode          string `json:"file_mode,omitempty"`
	NoLink            bool   `json:"no_link,omitempty"`
}

// UnmarshalPathsJSON decodes an extracted package's info/paths.json into
// the per-path placeholder/mode data the link step needs.
func UnmarshalPathsJSON(data []byte) ([]PathData, error) {
	var raw rawPathsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding paths.json")
	}
	out := make([]PathData, len(raw.Paths))
	for i, p := range raw.Paths {
		out[i] = PathData{
			Path:              p.Path,
			PathType:          PathFileMode(p.PathType),
			Sha256:            p.Sha256,
			SizeInBytes:       p.SizeInBytes,
			PrefixPlaceholder: p.PrefixPlaceholder,
			FileMode:          p.FileMode,
			NoLink:            p.NoLink,
		}
	}
	return out, nil
}

// MarshalPathsJSON is the inverse of UnmarshalPathsJSON: it renders
// PathData entries in the "paths_version": 1 paths.json shape.
func MarshalPathsJSON(paths []PathData) ([]byte, error) {
	raw := rawPathsJSON{PathsVersion: 1, Paths: make([]rawPathEntry, len(paths))}
	for i, p := range paths {
		raw.Paths[i] = rawPathEntry{
			Path:              p.Path,
			PathType:          string(p.PathType),
			Sha256:            p.Sha256,
			SizeInBytes:       p.SizeInBytes,
			PrefixPlaceholder: p.PrefixPlaceholder,
			FileMode:          p.FileMode,
			NoLink:            p.NoLink,
		}
	}
	return json.MarshalIndent(raw, "", "  ")
}

// ParseHasPrefix decodes the legacy info/has_prefix format spec.md §6
// names as an alternative to paths.json's per-entry fields: one line per
// file needing prefix rewriting, either "placeholder path" (text mode)
// or "placeholder mode path" (mode one of "text"/"binary").
func ParseHasPrefix(data []byte) (map[string]struct {
	Placeholder string
	FileMode    string
}, error) {
	out := make(map[string]struct {
		Placeholder string
		FileMode    string
	})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		switch len(fields) {
		case 2:
			out[fields[1]] = struct {
				Placeholder string
				FileMode    string
			}{Placeholder: fields[0], FileMode: "text"}
		case 3:
			out[fields[2]] = struct {
				Placeholder string
				FileMode    string
			}{Placeholder: fields[0], FileMode: fields[1]}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning has_prefix")
	}
	return out, nil
}
