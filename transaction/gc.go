package transaction

import (
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// FindOrphanFiles walks prefixPath and returns every regular file not
// claimed by any of owned (the relative paths every currently-linked
// PrefixRecord's Files lists) and not under conda-meta itself. This
// backs a `conda clean`-style orphan-file report: files left behind by
// an interrupted transaction or a manually-deleted package.
//
// godirwalk.Walk is used instead of filepath.Walk for the same reason
// the teacher's internal/fs package historically reached for a faster
// walker on large vendor trees: it avoids an os.Lstat call per entry by
// reading directory entry types directly from readdir, which matters
// here because a populated prefix can have hundreds of thousands of
// files.
func FindOrphanFiles(prefixPath string, owned map[string]bool) ([]string, error) {
	var orphans []string

	err := godirwalk.Walk(prefixPath, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(prefixPath, path)
			if err != nil {
				return err
			}
			if rel == "conda-meta" || hasPathPrefix(rel, "conda-meta") {
				return nil
			}
			if !owned[rel] {
				orphans = append(orphans, rel)
			}
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking prefix %s", prefixPath)
	}
	return orphans, nil
}

func hasPathPrefix(rel, dir string) bool {
	return rel == dir || (len(rel) > len(dir) && rel[:len(dir)+1] == dir+string(filepath.Separator))
}
