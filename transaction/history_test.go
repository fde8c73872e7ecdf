package transaction

import (
	"strings"
	"testing"
	"time"

	"github.com/2lambda123/conda-conda/record"
)

func TestFormatHistoryEntryGrammar(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	linked := []*record.PackageRecord{{Name: "numpy", Version: "1.26.0", Build: "py311_0"}}
	entry := FormatHistoryEntry(at, []string{"numpy>=1.20"}, linked, nil)

	if !strings.HasPrefix(entry, "==> 2026-01-02 03:04:05 <==\n") {
		t.Fatalf("unexpected header: %q", entry)
	}
	if !strings.Contains(entry, "# update specs: ['numpy>=1.20']") {
		t.Fatalf("expected update specs line, got %q", entry)
	}
	if !strings.Contains(entry, "+numpy-1.26.0-py311_0\n") {
		t.Fatalf("expected +numpy line, got %q", entry)
	}
}
