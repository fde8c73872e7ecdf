package transaction

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// mergeEnvVars implements spec.md §4.5's environment-variable merge:
// etc/conda/env_vars.d/*.json files are merged in the order packageDirs
// lists them (Transaction passes MetaStore.PackageDirs, which prefix.Data
// sorts by cache directory path), later packages overriding earlier ones
// for the same key, and the result is
// written to conda-meta/state.
func mergeEnvVars(prefixPath string, packageDirs []string) (map[string]string, error) {
	merged := make(map[string]string)

	for _, dir := range packageDirs {
		envDir := filepath.Join(dir, "etc", "conda", "env_vars.d")
		entries, err := os.ReadDir(envDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "reading %s", envDir)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			data, err := os.ReadFile(filepath.Join(envDir, name))
			if err != nil {
				return nil, errors.Wrapf(err, "reading %s", name)
			}
			var vars map[string]string
			if err := json.Unmarshal(data, &vars); err != nil {
				return nil, errors.Wrapf(err, "parsing %s", name)
			}
			for k, v := range vars {
				merged[k] = v
			}
		}
	}

	return merged, writeEnvVarsState(prefixPath, merged)
}

type condaMetaState struct {
	EnvVars map[string]string `json:"env_vars"`
}

func writeEnvVarsState(prefixPath string, vars map[string]string) error {
	statePath := filepath.Join(prefixPath, "conda-meta", "state")
	data, err := json.MarshalIndent(condaMetaState{EnvVars: vars}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal conda-meta/state")
	}
	tmp := statePath + ".condatmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write conda-meta/state temp file")
	}
	if err := os.Rename(tmp, statePath); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename conda-meta/state into place")
	}
	return nil
}

// removeEnvVarsForUnlink drops an unlinked package's env_vars.d file
// from consideration by recomputing the merge over the remaining
// packages; called by the executor after an UNLINK step.
func removeEnvVarsForUnlink(prefixPath string, remainingPackageDirs []string) error {
	_, err := mergeEnvVars(prefixPath, remainingPackageDirs)
	return err
}
