package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyOverrideFileMissingIsNotError(t *testing.T) {
	cfg := CoreConfig{FetchPoolSize: 10}
	got, err := ApplyOverrideFile(cfg, filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing override file, got %v", err)
	}
	if got.FetchPoolSize != 10 {
		t.Fatalf("expected cfg unchanged, got %+v", got)
	}
}

func TestApplyOverrideFileLayersChannelsAndPoolSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, OverrideFileName)
	contents := `
fetch_pool_size = 25

[[channel]]
name = "defaults"
base_url = "https://repo.anaconda.com/pkgs/main"
priority = 0

[[channel]]
name = "conda-forge"
base_url = "https://conda.anaconda.org/conda-forge"
priority = 1
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := CoreConfig{FetchPoolSize: 10}
	got, err := ApplyOverrideFile(cfg, path)
	if err != nil {
		t.Fatalf("ApplyOverrideFile: %v", err)
	}
	if got.FetchPoolSize != 25 {
		t.Fatalf("expected pool size 25, got %d", got.FetchPoolSize)
	}
	if len(got.Channels) != 2 || got.Channels[1].Name != "conda-forge" {
		t.Fatalf("expected two channels with conda-forge second, got %+v", got.Channels)
	}
}
