package record

// LinkType enumerates how a package's files were placed in a prefix.
type LinkType string

const (
	LinkHard LinkType = "hardlink"
	LinkSoft LinkType = "softlink"
	LinkCopy LinkType = "copy"
)

// PathFileMode enumerates how a single path in PathsData came to exist.
type PathFileMode string

const (
	FileModeHardlink  PathFileMode = "hardlink"
	FileModeSoftlink  PathFileMode = "softlink"
	FileModeCopy      PathFileMode = "copy"
	FileModeDirectory PathFileMode = "directory"
)

// PathData is one entry of a PrefixRecord's install-time manifest.
type PathData struct {
	Path               string
	Sha256             string
	SizeInBytes        int64
	PathType           PathFileMode
	PrefixPlaceholder  string // empty if this file has no prefix placeholder
	FileMode           string // "text" or "binary", only meaningful when PrefixPlaceholder != ""
	NoLink             bool
}

// LinkInfo records where a package's cache directory lives and which
// LinkType was used to place its files in the prefix.
type LinkInfo struct {
	Source string
	Type   LinkType
}

// PrefixRecord augments a PackageRecord with the manifest spec.md §3
// describes: files created in the prefix, per-file path data, link
// provenance, and the MatchSpec that requested it (if any).
type PrefixRecord struct {
	PackageRecord

	Files         []string
	PathsData     []PathData
	Link          LinkInfo
	RequestedSpec string // MatchSpec text; empty if only installed transitively
}

// FileNameOnDisk is the conda-meta/<name>-<version>-<build>.json file
// name spec.md §6 specifies.
func (pr *PrefixRecord) FileNameOnDisk() string {
	return pr.Name + "-" + pr.Version + "-" + pr.Build + ".json"
}
