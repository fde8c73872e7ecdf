package index

import (
	"testing"

	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/record"
)

func TestNewFromRecordsQueryFiltersByMatchSpec(t *testing.T) {
	idx := NewFromRecords([]*record.PackageRecord{
		{Name: "numpy", Version: "1.20.0", Build: "py39h_0", Subdir: "linux-64"},
		{Name: "numpy", Version: "1.21.0", Build: "py39h_0", Subdir: "linux-64"},
		{Name: "scipy", Version: "1.7.0", Build: "py39h_0", Subdir: "linux-64"},
	})

	if idx.Len() != 3 {
		t.Fatalf("expected 3 distinct identities, got %d", idx.Len())
	}

	ms, err := matchspec.Parse("numpy >=1.21")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := idx.Query(ms)
	if len(got) != 1 || got[0].Version != "1.21.0" {
		t.Fatalf("expected exactly numpy 1.21.0, got %+v", got)
	}
}

func TestQueryNameReturnsAllVersionsSorted(t *testing.T) {
	idx := NewFromRecords([]*record.PackageRecord{
		{Name: "numpy", Version: "1.21.0", Build: "py39h_0"},
		{Name: "numpy", Version: "1.20.0", Build: "py39h_0"},
	})

	got := idx.QueryName("numpy")
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Version != "1.20.0" || got[1].Version != "1.21.0" {
		t.Fatalf("expected ascending version order, got %+v", got)
	}
}

func TestContainsReflectsIdentity(t *testing.T) {
	rec := &record.PackageRecord{Name: "numpy", Version: "1.21.0", Build: "py39h_0"}
	idx := NewFromRecords([]*record.PackageRecord{rec})

	if !idx.Contains(rec) {
		t.Fatalf("expected index to contain its own record")
	}
	other := &record.PackageRecord{Name: "numpy", Version: "1.22.0", Build: "py39h_0"}
	if idx.Contains(other) {
		t.Fatalf("expected index not to contain an unrelated identity")
	}
}
