package repodata

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/record"
)

// Document is the parsed shape of a repodata.json payload, per spec.md
// §6: top-level info (subdir/platform/arch), packages, packages.conda
// (newer format, same shape), and optional removed.
type Document struct {
	Info struct {
		Subdir   string `json:"subdir"`
		Platform string `json:"platform,omitempty"`
		Arch     string `json:"arch,omitempty"`
	} `json:"info"`
	Packages      map[string]*record.PackageRecord
	PackagesConda map[string]*record.PackageRecord
	Removed       []string `json:"removed,omitempty"`
}

// ParseDocument decodes raw repodata JSON via
// record.UnmarshalPackageRecord (which ignores and drops unknown
// per-record fields), tolerating a missing packages/packages.conda key
// (an empty channel subdir).
func ParseDocument(raw []byte) (*Document, error) {
	var generic struct {
		Info struct {
			Subdir   string `json:"subdir"`
			Platform string `json:"platform,omitempty"`
			Arch     string `json:"arch,omitempty"`
		} `json:"info"`
		Packages      map[string]json.RawMessage `json:"packages"`
		PackagesConda map[string]json.RawMessage `json:"packages.conda"`
		Removed       []string                   `json:"removed,omitempty"`
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(err, "decoding repodata document")
	}

	doc := &Document{
		Info:          generic.Info,
		Packages:      make(map[string]*record.PackageRecord, len(generic.Packages)),
		PackagesConda: make(map[string]*record.PackageRecord, len(generic.PackagesConda)),
		Removed:       generic.Removed,
	}
	for fn, entry := range generic.Packages {
		rec, err := record.UnmarshalPackageRecord(fn, entry)
		if err != nil {
			return nil, err
		}
		if rec.Subdir == "" {
			rec.Subdir = doc.Info.Subdir
		}
		doc.Packages[fn] = rec
	}
	for fn, entry := range generic.PackagesConda {
		rec, err := record.UnmarshalPackageRecord(fn, entry)
		if err != nil {
			return nil, err
		}
		if rec.Subdir == "" {
			rec.Subdir = doc.Info.Subdir
		}
		doc.PackagesConda[fn] = rec
	}
	return doc, nil
}

// AllRecords returns every record from both the legacy "packages" and
// newer "packages.conda" maps, with packages.conda entries winning on
// filename-stem collision (the newer format is preferred when both
// describe the same build).
func (d *Document) AllRecords() []*record.PackageRecord {
	byStem := make(map[string]*record.PackageRecord, len(d.Packages)+len(d.PackagesConda))
	for fn, rec := range d.Packages {
		byStem[stem(fn)] = rec
	}
	for fn, rec := range d.PackagesConda {
		byStem[stem(fn)] = rec
	}
	out := make([]*record.PackageRecord, 0, len(byStem))
	for _, rec := range byStem {
		out = append(out, rec)
	}
	return out
}

func stem(fn string) string {
	for _, suffix := range []string{".tar.bz2", ".conda"} {
		if len(fn) > len(suffix) && fn[len(fn)-len(suffix):] == suffix {
			return fn[:len(fn)-len(suffix)]
		}
	}
	return fn
}
