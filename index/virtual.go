package index

import (
	"runtime"

	"github.com/2lambda123/conda-conda/config"
	"github.com/2lambda123/conda-conda/record"
)

// virtualPackages builds the fixed set of synthetic host-capability
// records spec.md §4.3 names: __linux, __osx, __win, __unix, __glibc,
// __cuda, __archspec, __conda. runtime.GOOS selects which OS records are
// emitted; their versions are fixed defaults (for example __glibc 2.17),
// not values probed from the host, and the CONDA_OVERRIDE_* environment
// variables threaded through CoreConfig replace them. __cuda is emitted
// only when overridden. Virtual packages are never fetched, extracted,
// linked, or unlinked (spec.md §4.4); they exist solely as resolver
// constraints: resolver.Solve drops virtual records (IsVirtual) from
// Solution.Selected, so the transaction planner never sees them.
func virtualPackages(cfg config.CoreConfig) []*record.PackageRecord {
	var out []*record.PackageRecord

	add := func(name, version string) {
		if version == "" {
			return
		}
		out = append(out, &record.PackageRecord{
			Name:     name,
			Version:  version,
			Build:    "0",
			Subdir:   "noarch",
			Channel:  "@",
			Fn:       name,
			Priority: -1,
		})
	}

	switch runtime.GOOS {
	case "linux":
		add("__linux", firstNonEmpty(cfg.OverrideLinux, "0"))
		add("__unix", "0")
		add("__glibc", firstNonEmpty(cfg.OverrideGlibc, "2.17"))
	case "darwin":
		add("__osx", firstNonEmpty(cfg.OverrideOSX, "0"))
		add("__unix", "0")
	case "windows":
		add("__win", "0")
	}

	if cfg.OverrideCUDA != "" {
		add("__cuda", cfg.OverrideCUDA)
	}
	add("__archspec", firstNonEmpty(cfg.OverrideArchspec, "1"))
	add("__conda", "24.0.0")

	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
