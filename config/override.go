package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// OverrideFileName is the optional TOML file condacore reads after
// FromEnvironment to let a deployment pin values environment variables
// don't cover well (a channel list with explicit priorities). This is
// deliberately not .condarc: .condarc parsing is out of scope per
// spec.md §1, and this file uses a different grammar (TOML, not YAML)
// and a narrower set of keys, the way the teacher keeps its registry
// credentials in a small Gopkg.reg TOML file (registry_config.go)
// alongside the Gopkg.toml manifest rather than folding them into it.
const OverrideFileName = "condacore.toml"

type rawOverride struct {
	Channels      []rawChannel `toml:"channel"`
	FetchPoolSize int          `toml:"fetch_pool_size"`
	PkgsDirs      []string     `toml:"pkgs_dirs"`
	EnvsDirs      []string     `toml:"envs_dirs"`
}

type rawChannel struct {
	Name     string `toml:"name"`
	BaseURL  string `toml:"base_url"`
	Priority int    `toml:"priority"`
}

// ApplyOverrideFile reads path, a TOML file shaped like:
//
//	fetch_pool_size = 20
//
//	[[channel]]
//	name = "defaults"
//	base_url = "https://repo.anaconda.com/pkgs/main"
//	priority = 0
//
// and layers it onto cfg. A missing file is not an error: the override
// file is optional, unlike FromEnvironment's variables which always
// apply. Present-but-zero-value fields (an empty Channels list,
// FetchPoolSize == 0) leave cfg's existing value untouched.
func ApplyOverrideFile(cfg CoreConfig, path string) (CoreConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "reading override file %s", path)
	}

	var raw rawOverride
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, errors.Wrapf(err, "parsing override file %s as TOML", path)
	}

	if len(raw.Channels) > 0 {
		channels := make([]Channel, len(raw.Channels))
		for i, rc := range raw.Channels {
			channels[i] = Channel{Name: rc.Name, BaseURL: rc.BaseURL, Priority: rc.Priority}
		}
		cfg.Channels = channels
	}
	if raw.FetchPoolSize > 0 {
		cfg.FetchPoolSize = raw.FetchPoolSize
	}
	if len(raw.PkgsDirs) > 0 {
		cfg.PkgsDirs = raw.PkgsDirs
	}
	if len(raw.EnvsDirs) > 0 {
		cfg.EnvsDirs = raw.EnvsDirs
	}

	return cfg, nil
}
