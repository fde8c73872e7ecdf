// Package prefix: environment.yml export.
//
// This is the export-only half of the domain-stack table's YAML entry:
// rendering an already-resolved prefix into the environment.yml shape
// `conda env export` produces, for interop with other environment
// management tooling. Reading an environment.yml back into MatchSpecs
// to drive a resolve is explicitly out of scope (spec.md §1: "does not
// interpret environment YAML spec files"), so there is deliberately no
// Parse/Load counterpart here, and nothing in this module consumes
// exportedEnvironment as an input.
package prefix

import (
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// exportedEnvironment mirrors the on-disk shape of environment.yml,
// grounded on original_source's conda/env/env.py Environment.to_dict.
type exportedEnvironment struct {
	Name         string        `yaml:"name,omitempty"`
	Channels     []string      `yaml:"channels,omitempty"`
	Dependencies []interface{} `yaml:"dependencies"`
	Prefix       string        `yaml:"prefix,omitempty"`
}

// ExportOptions controls the shape of an environment.yml export.
type ExportOptions struct {
	Name     string
	Channels []string
	NoBuilds bool // omit the build string, matching `conda env export --no-builds`
}

// ExportEnvironmentYAML renders d's currently linked records as an
// environment.yml document. This is a one-way snapshot: there is no
// path back from the returned bytes into a resolve.
func (d *Data) ExportEnvironmentYAML(opts ExportOptions) ([]byte, error) {
	recs := d.IterRecords()

	deps := make([]interface{}, 0, len(recs))
	for _, pr := range recs {
		if opts.NoBuilds {
			deps = append(deps, pr.Name+"="+pr.Version)
		} else {
			deps = append(deps, pr.Name+"="+pr.Version+"="+pr.Build)
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].(string) < deps[j].(string) })

	env := exportedEnvironment{
		Name:         opts.Name,
		Channels:     opts.Channels,
		Dependencies: deps,
		Prefix:       d.prefixPath,
	}

	out, err := yaml.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling environment.yml export")
	}
	return out, nil
}
