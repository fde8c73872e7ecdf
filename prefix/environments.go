package prefix

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/internal/lock"
)

// EnvironmentsFile returns the default path to the user-level
// environments registry, ~/.conda/environments.txt.
func EnvironmentsFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".conda", "environments.txt"), nil
}

// RegisterEnvironment appends prefixPath to the environments registry if
// it is not already present, under an exclusive file lock so concurrent
// conda invocations don't interleave partial lines.
func RegisterEnvironment(ctx context.Context, registryPath, prefixPath string) error {
	l := lock.New(registryPath)
	if err := l.AcquireExclusive(ctx, 100*time.Millisecond); err != nil {
		return err
	}
	defer l.Release()

	existing, err := readEnvironmentsLocked(registryPath)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if p == prefixPath {
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(registryPath), 0o755); err != nil {
		return errors.Wrap(err, "mkdir registry parent")
	}
	f, err := os.OpenFile(registryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open environments.txt")
	}
	defer f.Close()
	_, err = f.WriteString(prefixPath + "\n")
	return errors.Wrap(err, "append to environments.txt")
}

// ListEnvironments reads the registry, deduplicated, skipping any prefix
// that no longer exists on disk (a crashed or manually-removed
// environment shouldn't linger in the list forever).
func ListEnvironments(ctx context.Context, registryPath string) ([]string, error) {
	l := lock.New(registryPath)
	if err := l.AcquireShared(ctx, 100*time.Millisecond); err != nil {
		return nil, err
	}
	defer l.Release()

	all, err := readEnvironmentsLocked(registryPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(all))
	var out []string
	for _, p := range all {
		if seen[p] {
			continue
		}
		seen[p] = true
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func readEnvironmentsLocked(registryPath string) ([]string, error) {
	f, err := os.Open(registryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "opening environments.txt")
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			out = append(out, line)
		}
	}
	return out, errors.Wrap(scanner.Err(), "scanning environments.txt")
}
