package record

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// rawPackageRecord mirrors the wire shape of a repodata "packages" /
// "packages.conda" entry or an info/index.json payload (spec.md §6).
// It is kept separate from PackageRecord, the way the teacher's
// rawManifest/possibleProps separate wire shape from domain type.
// UnmarshalPackageRecord does not fill Extra, so fields outside this
// struct are dropped on decode rather than carried along.
type rawPackageRecord struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Build         string   `json:"build"`
	BuildNumber   int      `json:"build_number"`
	Subdir        string   `json:"subdir,omitempty"`
	Depends       []string `json:"depends,omitempty"`
	Constrains    []string `json:"constrains,omitempty"`
	TrackFeatures []string `json:"track_features,omitempty"`
	Features      []string `json:"features,omitempty"`
	MD5           string   `json:"md5,omitempty"`
	SHA256        string   `json:"sha256,omitempty"`
	Size          int64    `json:"size,omitempty"`
	Timestamp     int64    `json:"timestamp,omitempty"`
	Noarch        string   `json:"noarch,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// splitTrackFeatures handles repodata's historic encoding of
// track_features as either a JSON array or a single space-separated
// string; both forms are present across real channel repodata.
func splitTrackFeatures(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var asSlice []string
	if err := json.Unmarshal(raw, &asSlice); err == nil {
		return asSlice
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		var out []string
		start := 0
		for i := 0; i <= len(asString); i++ {
			if i == len(asString) || asString[i] == ' ' || asString[i] == ',' {
				if i > start {
					out = append(out, asString[start:i])
				}
				start = i + 1
			}
		}
		return out
	}
	return nil
}

// UnmarshalPackageRecord decodes one repodata entry (the value side of
// the "packages"/"packages.conda" map) into a PackageRecord. Fields
// condacore does not model are tolerated but not kept.
func UnmarshalPackageRecord(fn string, data []byte) (*PackageRecord, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, errors.Wrapf(err, "decoding repodata entry %s", fn)
	}

	var raw rawPackageRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "decoding repodata entry %s", fn)
	}
	if tf, ok := generic["track_features"]; ok {
		raw.TrackFeatures = splitTrackFeatures(tf)
	}

	if raw.Name == "" {
		return nil, errors.Errorf("repodata entry %s missing required field name", fn)
	}

	noarch := NoarchNone
	switch raw.Noarch {
	case "python":
		noarch = NoarchPython
	case "generic", "True", "true":
		noarch = NoarchGeneric
	}

	return &PackageRecord{
		Name:          raw.Name,
		Version:       raw.Version,
		Build:         raw.Build,
		BuildNumber:   raw.BuildNumber,
		Subdir:        raw.Subdir,
		Depends:       raw.Depends,
		Constrains:    raw.Constrains,
		TrackFeatures: raw.TrackFeatures,
		Features:      raw.Features,
		MD5:           raw.MD5,
		SHA256:        raw.SHA256,
		Size:          raw.Size,
		Timestamp:     raw.Timestamp,
		Noarch:        noarch,
		Fn:            fn,
	}, nil
}

// MarshalPrefixRecord encodes a PrefixRecord into the
// conda-meta/<name>-<version>-<build>.json shape spec.md §6 specifies.
func MarshalPrefixRecord(pr *PrefixRecord) ([]byte, error) {
	type rawPathData struct {
		Path              string `json:"_path"`
		Sha256            string `json:"sha256,omitempty"`
		SizeInBytes       int64  `json:"size_in_bytes,omitempty"`
		PathType          string `json:"path_type"`
		PrefixPlaceholder string `json:"prefix_placeholder,omitempty"`
		FileMode          string `json:"file_mode,omitempty"`
		NoLink            bool   `json:"no_link,omitempty"`
	}
	type rawPrefixRecord struct {
		Name          string        `json:"name"`
		Version       string        `json:"version"`
		Build         string        `json:"build"`
		BuildNumber   int           `json:"build_number"`
		Subdir        string        `json:"subdir,omitempty"`
		Depends       []string      `json:"depends,omitempty"`
		Constrains    []string      `json:"constrains,omitempty"`
		TrackFeatures []string      `json:"track_features,omitempty"`
		Features      []string      `json:"features,omitempty"`
		MD5           string        `json:"md5,omitempty"`
		SHA256        string        `json:"sha256,omitempty"`
		Size          int64         `json:"size,omitempty"`
		Channel       string        `json:"channel,omitempty"`
		Fn            string        `json:"fn,omitempty"`
		URL           string        `json:"url,omitempty"`
		Timestamp     int64         `json:"timestamp,omitempty"`
		Noarch        string        `json:"noarch,omitempty"`
		Files         []string      `json:"files"`
		PathsData     []rawPathData `json:"paths_data"`
		LinkSource    string        `json:"link_source,omitempty"`
		LinkType      string        `json:"link_type,omitempty"`
		RequestedSpec string        `json:"requested_spec,omitempty"`
	}

	paths := make([]rawPathData, len(pr.PathsData))
	for i, p := range pr.PathsData {
		paths[i] = rawPathData{
			Path:              p.Path,
			Sha256:            p.Sha256,
			SizeInBytes:       p.SizeInBytes,
			PathType:          string(p.PathType),
			PrefixPlaceholder: p.PrefixPlaceholder,
			FileMode:          p.FileMode,
			NoLink:            p.NoLink,
		}
	}

	raw := rawPrefixRecord{
		Name:          pr.Name,
		Version:       pr.Version,
		Build:         pr.Build,
		BuildNumber:   pr.BuildNumber,
		Subdir:        pr.Subdir,
		Depends:       pr.Depends,
		Constrains:    pr.Constrains,
		TrackFeatures: pr.TrackFeatures,
		Features:      pr.Features,
		MD5:           pr.MD5,
		SHA256:        pr.SHA256,
		Size:          pr.Size,
		Channel:       pr.Channel,
		Fn:            pr.Fn,
		URL:           pr.URL,
		Timestamp:     pr.Timestamp,
		Noarch:        string(pr.Noarch),
		Files:         pr.Files,
		PathsData:     paths,
		LinkSource:    pr.Link.Source,
		LinkType:      string(pr.Link.Type),
		RequestedSpec: pr.RequestedSpec,
	}
	if raw.Files == nil {
		raw.Files = []string{}
	}
	return json.MarshalIndent(raw, "", "  ")
}

// UnmarshalPrefixRecord decodes a conda-meta/*.json payload.
func UnmarshalPrefixRecord(data []byte) (*PrefixRecord, error) {
	type rawPathData struct {
		Path              string `json:"_path"`
		Sha256            string `json:"sha256,omitempty"`
		SizeInBytes       int64  `json:"size_in_bytes,omitempty"`
		PathType          string `json:"path_type"`
		PrefixPlaceholder string `json:"prefix_placeholder,omitempty"`
		FileMode          string `json:"file_mode,omitempty"`
		NoLink            bool   `json:"no_link,omitempty"`
	}
	type rawPrefixRecord struct {
		Name          string        `json:"name"`
		Version       string        `json:"version"`
		Build         string        `json:"build"`
		BuildNumber   int           `json:"build_number"`
		Subdir        string        `json:"subdir,omitempty"`
		Depends       []string      `json:"depends,omitempty"`
		Constrains    []string      `json:"constrains,omitempty"`
		TrackFeatures []string      `json:"track_features,omitempty"`
		Features      []string      `json:"features,omitempty"`
		MD5           string        `json:"md5,omitempty"`
		SHA256        string        `json:"sha256,omitempty"`
		Size          int64         `json:"size,omitempty"`
		Channel       string        `json:"channel,omitempty"`
		Fn            string        `json:"fn,omitempty"`
		URL           string        `json:"url,omitempty"`
		Timestamp     int64         `json:"timestamp,omitempty"`
		Noarch        string        `json:"noarch,omitempty"`
		Files         []string      `json:"files"`
		PathsData     []rawPathData `json:"paths_data"`
		LinkSource    string        `json:"link_source,omitempty"`
		LinkType      string        `json:"link_type,omitempty"`
		RequestedSpec string        `json:"requested_spec,omitempty"`
	}

	var raw rawPrefixRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding prefix record")
	}

	paths := make([]PathData, len(raw.PathsData))
	for i, p := range raw.PathsData {
		paths[i] = PathData{
			Path:              p.Path,
			Sha256:            p.Sha256,
			SizeInBytes:       p.SizeInBytes,
			PathType:          PathFileMode(p.PathType),
			PrefixPlaceholder: p.PrefixPlaceholder,
			FileMode:          p.FileMode,
			NoLink:            p.NoLink,
		}
	}

	return &PrefixRecord{
		PackageRecord: PackageRecord{
			Name:          raw.Name,
			Version:       raw.Version,
			Build:         raw.Build,
			BuildNumber:   raw.BuildNumber,
			Subdir:        raw.Subdir,
			Depends:       raw.Depends,
			Constrains:    raw.Constrains,
			TrackFeatures: raw.TrackFeatures,
			Features:      raw.Features,
			MD5:           raw.MD5,
			SHA256:        raw.SHA256,
			Size:          raw.Size,
			Channel:       raw.Channel,
			Fn:            raw.Fn,
			URL:           raw.URL,
			Timestamp:     raw.Timestamp,
			Noarch:        Noarch(raw.Noarch),
		},
		Files:         raw.Files,
		PathsData:     paths,
		Link:          LinkInfo{Source: raw.LinkSource, Type: LinkType(raw.LinkType)},
		RequestedSpec: raw.RequestedSpec,
	}, nil
}
