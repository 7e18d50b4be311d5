package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shayne-snap/quanteval/internal/config"
)

func TestResolveDataset(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/datasets/Salesforce/wikitext/resolve/main/test.jsonl" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"text":"hello"}` + "\n"))
	}))
	defer server.Close()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := t.TempDir()

	tests := []struct {
		name     string
		dataset  config.Dataset
		wantPath string
		wantErr  string
		wantHits int
	}{
		{
			name:     "local path short-circuits",
			dataset:  config.Dataset{Path: "/data/wiki.parquet", HFRepo: "not a repo"},
			wantPath: "/data/wiki.parquet",
		},
		{
			name:    "single segment",
			dataset: config.Dataset{HFRepo: "wikitext", HFFile: "test.jsonl"},
			wantErr: "not a HuggingFace repo id",
		},
		{
			name:    "three segments",
			dataset: config.Dataset{HFRepo: "Salesforce/wikitext/x", HFFile: "test.jsonl"},
			wantErr: "not a HuggingFace repo id",
		},
		{
			name:    "empty owner",
			dataset: config.Dataset{HFRepo: "/wikitext", HFFile: "test.jsonl"},
			wantErr: "not a HuggingFace repo id",
		},
		{
			name:    "blank",
			dataset: config.Dataset{HFRepo: " \t", HFFile: "test.jsonl"},
			wantErr: "not a HuggingFace repo id",
		},
		{
			name:     "valid repo downloads",
			dataset:  config.Dataset{HFRepo: " Salesforce/wikitext\n", HFRevision: "main", HFFile: "test.jsonl", HFEndpoint: server.URL, CacheDir: cache},
			wantPath: filepath.Join(cache, "datasets", "Salesforce", "wikitext", "main", "test.jsonl"),
			wantHits: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits = 0
			got, err := resolveDataset(context.Background(), tt.dataset, logger)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				if !strings.HasPrefix(err.Error(), "dataset.hf_repo:") {
					t.Errorf("err = %v, want dataset.hf_repo prefix", err)
				}
			} else if err != nil {
				t.Fatalf("resolveDataset: %v", err)
			}
			if got != tt.wantPath {
				t.Errorf("path = %q, want %q", got, tt.wantPath)
			}
			if hits != tt.wantHits {
				t.Errorf("server hits = %d, want %d", hits, tt.wantHits)
			}
		})
	}

	data, err := os.ReadFile(filepath.Join(cache, "datasets", "Salesforce", "wikitext", "main", "test.jsonl"))
	if err != nil || !strings.Contains(string(data), "hello") {
		t.Errorf("cached file = %q, %v", data, err)
	}
}

func TestParseRepoID(t *testing.T) {
	for in, want := range map[string]string{
		"Salesforce/wikitext":     "Salesforce/wikitext",
		"org/repo\n":              "org/repo",
		"EleutherAI/lambada_open": "EleutherAI/lambada_open",
		"a.b/c-d":                 "a.b/c-d",
	} {
		got, err := parseRepoID(in)
		if err != nil || got != want {
			t.Errorf("parseRepoID(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "only", "a/b/c", "org/repo name", "org/", "-org/repo"} {
		if _, err := parseRepoID(in); err == nil {
			t.Errorf("parseRepoID(%q) should fail", in)
		}
	}
}
