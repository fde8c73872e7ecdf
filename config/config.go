// Package config defines CoreConfig, the explicit, immutable
// configuration struct every condacore engine takes as its first
// constructor argument, replacing the source's process-wide context.*
// global reads (Design Note §9: "global mutable context → explicit
// configuration struct"), generalizing the teacher's own *dep.Ctx
// pattern (derived once in NewContext, threaded through LoadProject and
// SourceManager).
package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Channel is a named repodata/package source with an associated
// priority; lower Priority wins on identity conflicts (spec.md §3/§4.3).
type Channel struct {
	Name     string
	BaseURL  string
	Priority int
}

// CoreConfig is derived once at process startup and passed by value (it
// is small and intended to be copied) to every public engine
// constructor.
type CoreConfig struct {
	Channels []Channel
	Subdirs  []string // e.g. ["linux-64", "noarch"]

	PkgsDirs []string
	EnvsDirs []string

	LocalRepodataTTL time.Duration // spec.md §4.2 local_repodata_ttl, pre-resolved to a duration
	FetchPoolSize    int           // bounded concurrent fetch pool, default 10

	AddPipAsPythonDependency bool
	AllowNonChannelURLs      bool
	SSLVerify                bool

	HTTPProxy  string
	HTTPSProxy string

	OverrideLinux    string
	OverrideGlibc    string
	OverrideOSX      string
	OverrideCUDA     string
	OverrideArchspec string
}

// FromEnvironment builds a CoreConfig from the environment variables
// spec.md §6 lists, the way the teacher's NewContext derives Ctx from
// GOPATH rather than a parsed config file (.condarc parsing is out of
// scope per spec.md §1).
func FromEnvironment() CoreConfig {
	cfg := CoreConfig{
		FetchPoolSize:       10,
		LocalRepodataTTL:    24 * time.Hour,
		AllowNonChannelURLs: boolEnv("CONDA_ALLOW_NON_CHANNEL_URLS", false),
		SSLVerify:           boolEnv("CONDA_SSL_VERIFY", true),
		HTTPProxy:           firstNonEmptyEnv("HTTP_PROXY", "http_proxy"),
		HTTPSProxy:          firstNonEmptyEnv("HTTPS_PROXY", "https_proxy"),
		OverrideLinux:       os.Getenv("CONDA_OVERRIDE_LINUX"),
		OverrideGlibc:       os.Getenv("CONDA_OVERRIDE_GLIBC"),
		OverrideOSX:         os.Getenv("CONDA_OVERRIDE_OSX"),
		OverrideCUDA:        os.Getenv("CONDA_OVERRIDE_CUDA"),
		OverrideArchspec:    os.Getenv("CONDA_OVERRIDE_ARCHSPEC"),
	}

	if subdir := os.Getenv("CONDA_SUBDIR"); subdir != "" {
		cfg.Subdirs = []string{subdir, "noarch"}
	} else {
		cfg.Subdirs = []string{defaultSubdir(), "noarch"}
	}

	if v := os.Getenv("CONDA_LOCAL_REPODATA_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			switch {
			case n <= 0:
				cfg.LocalRepodataTTL = 0
			case n == 1:
				cfg.LocalRepodataTTL = -1 // sentinel: honor Cache-Control max-age
			default:
				cfg.LocalRepodataTTL = time.Duration(n) * time.Second
			}
		}
	}

	cfg.AddPipAsPythonDependency = boolEnv("CONDA_ADD_PIP_AS_PYTHON_DEPENDENCY", true)

	if dirs := os.Getenv("CONDA_PKGS_DIRS"); dirs != "" {
		cfg.PkgsDirs = strings.Split(dirs, string(os.PathListSeparator))
	}
	if dirs := os.Getenv("CONDA_ENVS_DIRS"); dirs != "" {
		cfg.EnvsDirs = strings.Split(dirs, string(os.PathListSeparator))
	}

	return cfg
}

func defaultSubdir() string {
	goos := runtime.GOOS
	arch := runtime.GOARCH
	switch goos {
	case "linux":
		switch arch {
		case "amd64":
			return "linux-64"
		case "arm64":
			return "linux-aarch64"
		case "386":
			return "linux-32"
		}
	case "darwin":
		switch arch {
		case "arm64":
			return "osx-arm64"
		default:
			return "osx-64"
		}
	case "windows":
		switch arch {
		case "amd64":
			return "win-64"
		default:
			return "win-32"
		}
	}
	return "noarch"
}

func boolEnv(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func firstNonEmptyEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
