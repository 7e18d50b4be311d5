package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"test-00000-of-00001.parquet": FormatParquet,
		"data.jsonl":                  FormatJSONL,
		"wiki.test.raw":               FormatText,
		"notes.TXT":                   FormatText,
	}
	for in, want := range cases {
		got, err := DetectFormat(in)
		if err != nil || got != want {
			t.Errorf("DetectFormat(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := DetectFormat("data.csv"); err == nil {
		t.Error("DetectFormat(data.csv) should fail")
	}
}

func TestLoadParquet_PreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.parquet")
	rows := []Record{{Text: " = Robert Boulter = \n"}, {Text: ""}, {Text: "Robert Boulter is an English actor ."}}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 3 {
		t.Fatalf("Len = %d, want 3", got.Len())
	}
	for i, r := range rows {
		if got.Text(i) != r.Text {
			t.Errorf("Text(%d) = %q, want %q", i, got.Text(i), r.Text)
		}
	}
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.jsonl")
	body := `{"text": "first"}
{"text": "second", "id": 2}
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, FormatJSONL)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 2 || got.Text(0) != "first" || got.Text(1) != "second" {
		t.Errorf("got %+v", got)
	}
}

func TestLoadJSONL_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.jsonl")
	if err := os.WriteFile(path, []byte("{\"text\": \"ok\"}\n{oops\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadJSONL(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadText_KeepsEmptyLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiki.test.raw")
	if err := os.WriteFile(path, []byte("a\n\nb\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Len() != 3 || got.Text(1) != "" {
		t.Errorf("got %+v, want 3 records with an empty middle one", got)
	}
}

func TestLoadText_KeepsLineTerminator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiki.test.raw")
	if err := os.WriteFile(path, []byte(" = Title = \n\n body\nlast"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadText(path)
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	want := []string{" = Title = \n", "", " body\n", "last"}
	if got.Len() != len(want) {
		t.Fatalf("Len = %d, want %d (%+v)", got.Len(), len(want), got)
	}
	for i, w := range want {
		if got.Text(i) != w {
			t.Errorf("record %d = %q, want %q", i, got.Text(i), w)
		}
	}
}
