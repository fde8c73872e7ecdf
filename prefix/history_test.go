package prefix

import (
	"os"
	"path/filepath"
	"testing"
)

func writeHistory(t *testing.T, prefixPath, content string) {
	t.Helper()
	metaDir := filepath.Join(prefixPath, "conda-meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "history"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseHistoryRoundTripsBasicGrammar(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir, "==> 2026-01-02 03:04:05 <==\n"+
		"# update specs: ['numpy>=1.20']\n"+
		"+numpy-1.26.0-py311_0\n"+
		"-numpy-1.25.0-py311_0\n")

	h, err := ParseHistory(dir)
	if err != nil {
		t.Fatalf("ParseHistory: %v", err)
	}
	if len(h.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(h.Entries))
	}
	e := h.Entries[0]
	if len(e.UpdateSpecs) != 1 || e.UpdateSpecs[0] != "numpy>=1.20" {
		t.Fatalf("unexpected update specs: %v", e.UpdateSpecs)
	}
	if len(e.Added) != 1 || e.Added[0] != "numpy-1.26.0-py311_0" {
		t.Fatalf("unexpected added: %v", e.Added)
	}
	if len(e.Removed) != 1 || e.Removed[0] != "numpy-1.25.0-py311_0" {
		t.Fatalf("unexpected removed: %v", e.Removed)
	}
}

func TestReconstructRequestedSpecsDistinguishesDirectFromTransitive(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir, "==> 2026-01-02 03:04:05 <==\n"+
		"# update specs: ['numpy']\n"+
		"+numpy-1.26.0-py311_0\n"+
		"+libopenblas-0.3.2-0\n")

	h, err := ParseHistory(dir)
	if err != nil {
		t.Fatalf("ParseHistory: %v", err)
	}
	reqs := h.ReconstructRequestedSpecs()
	if reqs["numpy"] != "numpy" {
		t.Fatalf("expected numpy requested directly, got %q", reqs["numpy"])
	}
	if spec, ok := reqs["libopenblas"]; !ok || spec != "" {
		t.Fatalf("expected libopenblas present but not directly requested, got %q ok=%v", spec, ok)
	}
}

func TestNameFromFilenameKeyHandlesHyphenatedNames(t *testing.T) {
	got := nameFromFilenameKey("my-cool-package-1.2.3-py311h_0")
	if got != "my-cool-package" {
		t.Fatalf("expected 'my-cool-package', got %q", got)
	}
}
