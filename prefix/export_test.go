package prefix

import (
	"strings"
	"testing"

	"github.com/2lambda123/conda-conda/record"
	"gopkg.in/yaml.v2"
)

func TestExportEnvironmentYAMLRendersLinkedRecords(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	d.Insert(&record.PrefixRecord{PackageRecord: record.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0"}})
	d.Insert(&record.PrefixRecord{PackageRecord: record.PackageRecord{Name: "scipy", Version: "1.11.0", Build: "py311_0"}})

	out, err := d.ExportEnvironmentYAML(ExportOptions{Name: "myenv", Channels: []string{"defaults"}})
	if err != nil {
		t.Fatalf("ExportEnvironmentYAML: %v", err)
	}

	var back exportedEnvironment
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("round-trip unmarshal: %v", err)
	}
	if back.Name != "myenv" {
		t.Fatalf("expected name myenv, got %q", back.Name)
	}
	if len(back.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %v", back.Dependencies)
	}
	if !strings.Contains(string(out), "numpy=1.26.0=py311_0") {
		t.Fatalf("expected numpy entry with build string, got %s", out)
	}
}

func TestExportEnvironmentYAMLNoBuildsOmitsBuildString(t *testing.T) {
	dir := t.TempDir()
	d, _ := Open(dir)
	d.Insert(&record.PrefixRecord{PackageRecord: record.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0"}})

	out, err := d.ExportEnvironmentYAML(ExportOptions{NoBuilds: true})
	if err != nil {
		t.Fatalf("ExportEnvironmentYAML: %v", err)
	}
	if strings.Contains(string(out), "py311_0") {
		t.Fatalf("expected no build string with NoBuilds, got %s", out)
	}
}
