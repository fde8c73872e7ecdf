package transaction

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/2lambda123/conda-conda/record"
)

// historyTimeLayout is the strict timestamp grammar Design Note §9(b)
// fixes for conda-meta/history: no legacy format support, one layout,
// always UTC.
const historyTimeLayout = "2006-01-02 15:04:05"

// FormatHistoryEntry renders one conda-meta/history stanza: the
// "==> <timestamp> <==" header, an optional "# update specs: [...]"
// comment line, and one "+name-version-build"/"-name-version-build"
// line per record touched by the transaction. at is expected to already
// be in UTC; the caller (the Transaction executor) is responsible for
// that, matching the teacher's convention of pushing time-zone
// normalization to the call site rather than burying it in a formatter.
func FormatHistoryEntry(at time.Time, updateSpecs []string, linked, unlinked []*record.PackageRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "==> %s <==\n", at.Format(historyTimeLayout))

	if len(updateSpecs) > 0 {
		sorted := append([]string(nil), updateSpecs...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "# update specs: [%s]\n", strings.Join(quoteAll(sorted), ", "))
	}

	linkedSorted := append([]*record.PackageRecord(nil), linked...)
	record.SortRecords(linkedSorted)
	for _, rec := range linkedSorted {
		fmt.Fprintf(&b, "+%s-%s-%s\n", rec.Name, rec.Version, rec.Build)
	}

	unlinkedSorted := append([]*record.PackageRecord(nil), unlinked...)
	record.SortRecords(unlinkedSorted)
	for _, rec := range unlinkedSorted {
		fmt.Fprintf(&b, "-%s-%s-%s\n", rec.Name, rec.Version, rec.Build)
	}

	return b.String()
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = "'" + s + "'"
	}
	return out
}
