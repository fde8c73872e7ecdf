package prefix

import (
	"testing"

	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

func TestDataInsertGetRemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	pr := &record.PrefixRecord{
		PackageRecord: record.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0"},
	}
	if err := d.Insert(pr); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := d.Get("numpy")
	if !ok || got.Version != "1.26.0" {
		t.Fatalf("expected numpy-1.26.0 after insert, got %v ok=%v", got, ok)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.Get("numpy"); !ok {
		t.Fatal("expected numpy to persist across reopen")
	}

	if err := d.Remove("numpy"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := d.Get("numpy"); ok {
		t.Fatal("expected numpy removed")
	}
}

func TestDataQueryMatchesSpec(t *testing.T) {
	dir := t.TempDir()
	d, _ := Open(dir)
	d.Insert(&record.PrefixRecord{PackageRecord: record.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0"}})
	d.Insert(&record.PrefixRecord{PackageRecord: record.PackageRecord{Name: "scipy", Version: "1.11.0", Build: "py311_0"}})

	ms, err := matchspec.Parse("numpy>=1.20")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	results := d.Query(ms)
	if len(results) != 1 || results[0].Name != "numpy" {
		t.Fatalf("expected only numpy to match, got %v", results)
	}
}
