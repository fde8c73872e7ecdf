package prefix

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type metaState struct {
	EnvVars map[string]string `json:"env_vars"`
}

func writeState(prefixPath string, vars map[string]string) error {
	statePath := filepath.Join(prefixPath, "conda-meta", "state")
	if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
		return errors.Wrap(err, "mkdir conda-meta")
	}
	data, err := json.MarshalIndent(metaState{EnvVars: vars}, "", "  ")
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

// readState reads conda-meta/state's env_vars, returning an empty map
// if the file does not exist.
func readState(prefixPath string) (map[string]string, error) {
	statePath := filepath.Join(prefixPath, "conda-meta", "state")
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrap(err, "reading conda-meta/state")
	}
	var st metaState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, "parsing conda-meta/state")
	}
	if st.EnvVars == nil {
		st.EnvVars = map[string]string{}
	}
	return st.EnvVars, nil
}
