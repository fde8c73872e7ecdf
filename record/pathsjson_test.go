package record

import "testing"

func TestUnmarshalPathsJSONRoundTripsViaMarshal(t *testing.T) {
	want := []PathData{
		{Path: "bin/tool", Sha256: "abc123", SizeInBytes: 42, PrefixPlaceholder: "/opt/anaconda1anaconda2anaconda3", FileMode: "text"},
		{Path: "lib/libfoo.so", Sha256: "def456", SizeInBytes: 1024},
	}

	data, err := MarshalPathsJSON(want)
	if err != nil {
		t.Fatalf("MarshalPathsJSON: %v", err)
	}

	got, err := UnmarshalPathsJSON(data)
	if err != nil {
		t.Fatalf("UnmarshalPathsJSON: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Path != want[i].Path || got[i].Sha256 != want[i].Sha256 ||
			got[i].SizeInBytes != want[i].SizeInBytes ||
			got[i].PrefixPlaceholder != want[i].PrefixPlaceholder ||
			got[i].FileMode != want[i].FileMode {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestUnmarshalPathsJSONRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalPathsJSON([]byte("not json")); err == nil {
		t.Fatalf("expected an error decoding malformed paths.json")
	}
}

func TestParseHasPrefixTextAndBinaryModes(t *testing.T) {
	data := []byte("/opt/anaconda1anaconda2anaconda3 bin/tool\n" +
		"/opt/anaconda1anaconda2anaconda3 binary lib/libfoo.so\n" +
		"\n")

	entries, err := ParseHasPrefix(data)
	if err != nil {
		t.Fatalf("ParseHasPrefix: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(entries), entries)
	}

	text, ok := entries["bin/tool"]
	if !ok {
		t.Fatalf("expected an entry for bin/tool")
	}
	if text.FileMode != "text" || text.Placeholder != "/opt/anaconda1anaconda2anaconda3" {
		t.Fatalf("unexpected text-mode entry: %+v", text)
	}

	binary, ok := entries["lib/libfoo.so"]
	if !ok {
		t.Fatalf("expected an entry for lib/libfoo.so")
	}
	if binary.FileMode != "binary" {
		t.Fatalf("expected binary file mode, got %+v", binary)
	}
}
