package transaction

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/record"
)

// probeLinkType decides how a single file should be placed in the
// prefix: hardlink when src and dst share a device ID, softlink as the
// next preference, copy as the universal fallback — the order spec.md
// §4.5 specifies. Grounded on the teacher's renameWithFallback, which
// probes os.Rename first and only falls back to copy on a detected
// cross-device error; here the probe runs up front instead of reacting
// to an error, since conda needs to choose per-file whether hardlinks
// are even possible before it starts linking a package.
func probeLinkType(src, dstDir string) (record.LinkType, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", errors.Wrap(err, "stat source file")
	}
	dstInfo, err := os.Stat(dstDir)
	if err != nil {
		return "", errors.Wrap(err, "stat destination directory")
	}

	if sameDevice(srcInfo, dstInfo) {
		return record.LinkHard, nil
	}
	if runtime.GOOS != "windows" {
		return record.LinkSoft, nil
	}
	return record.LinkCopy, nil
}

func sameDevice(a, b os.FileInfo) bool {
	as, aok := a.Sys().(*syscall.Stat_t)
	bs, bok := b.Sys().(*syscall.Stat_t)
	if !aok || !bok {
		return false
	}
	return as.Dev == bs.Dev
}

// linkFile places one cache file at dst using the given link type,
// falling back to copy when the OS refuses hardlink/symlink (the same
// EXDEV-triggered fallback renameWithFallback implements for rename).
func linkFile(src, dst string, lt record.LinkType) (record.LinkType, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "mkdir destination parent")
	}

	switch lt {
	case record.LinkHard:
		if err := os.Link(src, dst); err != nil {
			if linkErr, ok := err.(*os.LinkError); ok && linkErr.Err == syscall.EXDEV {
				return copyFile(src, dst)
			}
			return "", errors.Wrapf(err, "hardlink %s -> %s", src, dst)
		}
		return record.LinkHard, nil
	case record.LinkSoft:
		if err := os.Symlink(src, dst); err != nil {
			return copyFile(src, dst)
		}
		return record.LinkSoft, nil
	default:
		return copyFile(src, dst)
	}
}

func copyFile(src, dst string) (record.LinkType, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return "", errors.Wrap(err, "open source")
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat source")
	}

	tmp := dst + ".condatmp"
	dstFile, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return "", errors.Wrap(err, "create destination")
	}
	if _, err := dstFile.ReadFrom(srcFile); err != nil {
		dstFile.Close()
		os.Remove(tmp)
		return "", errors.Wrap(err, "copy file contents")
	}
	if err := dstFile.Close(); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "close destination")
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "rename into place")
	}
	return record.LinkCopy, nil
}

// rewritePrefixPlaceholder replaces the build-time placeholder byte
// sequence with the real install prefix in a single file, either as a
// text substitution or as a NUL-padded binary substitution, matching
// PathData.FileMode ("text" or "binary"). It is called after a file is
// linked and only when PathData.PrefixPlaceholder is non-empty.
func rewritePrefixPlaceholder(dst, placeholder, newPrefix, fileMode string) error {
	if placeholder == "" {
		return nil
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		return errors.Wrap(err, "read file for prefix rewrite")
	}

	var out []byte
	switch fileMode {
	case "binary":
		out = rewriteBinaryPlaceholder(data, placeholder, newPrefix)
	default:
		out = bytes.ReplaceAll(data, []byte(placeholder), []byte(newPrefix))
	}
	if bytes.Equal(out, data) {
		return nil
	}

	info, err := os.Stat(dst)
	if err != nil {
		return errors.Wrap(err, "stat file for prefix rewrite")
	}
	return os.WriteFile(dst, out, info.Mode())
}

// rewriteBinaryPlaceholder replaces placeholder with newPrefix in a
// fixed-width field, NUL-padding the remainder so the file's total
// length — and therefore every absolute offset after the field — is
// unchanged. Binary placeholders are always padded to be at least as
// long as any real prefix that might replace them, so newPrefix is
// expected to be no longer than placeholder; if it is, the field is
// truncated at the placeholder's width rather than shifting file
// offsets.
func rewriteBinaryPlaceholder(data []byte, placeholder, newPrefix string) []byte {
	old := []byte(placeholder)
	repl := []byte(newPrefix)
	if len(repl) > len(old) {
		repl = repl[:len(old)]
	}
	padded := make([]byte, len(old))
	copy(padded, repl)
	for i := len(repl); i < len(padded); i++ {
		padded[i] = 0
	}
	return bytes.ReplaceAll(data, old, padded)
}

// rewriteShebang rewrites the first line of a script under bin/ that
// begins with "#!" and references the build-time prefix, pointing it at
// the install prefix's interpreter instead.
func rewriteShebang(dst, buildPrefix, installPrefix string) error {
	data, err := os.ReadFile(dst)
	if err != nil {
		return errors.Wrap(err, "read script for shebang rewrite")
	}
	nl := bytes.IndexByte(data, '\n')
	if nl < 0 || !bytes.HasPrefix(data, []byte("#!")) {
		return nil
	}
	line := string(data[:nl])
	if !strings.Contains(line, buildPrefix) {
		return nil
	}
	newLine := strings.ReplaceAll(line, buildPrefix, installPrefix)
	out := append([]byte(newLine), data[nl:]...)

	info, err := os.Stat(dst)
	if err != nil {
		return errors.Wrap(err, "stat script for shebang rewrite")
	}
	return os.WriteFile(dst, out, info.Mode())
}

// noarchPythonDest maps a noarch-python package's cache-relative path
// (site-packages/foo.py or python-scripts/foo) onto the correct
// location under the active Python's site-packages/bin in the target
// prefix, per spec.md §4.5's noarch-python relocation rule.
func noarchPythonDest(prefixPath, pySitePackagesRel, pyBinRel, relPath string) (string, bool) {
	const sitePrefix = "site-packages/"
	const scriptsPrefix = "python-scripts/"

	switch {
	case strings.HasPrefix(relPath, sitePrefix):
		return filepath.Join(prefixPath, pySitePackagesRel, strings.TrimPrefix(relPath, sitePrefix)), true
	case strings.HasPrefix(relPath, scriptsPrefix):
		return filepath.Join(prefixPath, pyBinRel, strings.TrimPrefix(relPath, scriptsPrefix)), true
	default:
		return filepath.Join(prefixPath, relPath), false
	}
}
