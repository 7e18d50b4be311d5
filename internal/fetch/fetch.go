// Package fetch downloads evaluation datasets from the HuggingFace Hub into a local cache.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const userAgent = "quanteval/0.1.0"

// DefaultEndpoint is the Hub used when Source.Endpoint is empty.
const DefaultEndpoint = "https://huggingface.co"

// Source names one file of a HuggingFace dataset repo.
type Source struct {
	// Endpoint is the Hub base URL, e.g. a mirror; empty means DefaultEndpoint.
	Endpoint string
	Repo     string
	// Revision defaults to main.
	Revision string
	File     string
	// Token, when non-empty, is sent as a bearer token for gated repos.
	Token string
}

func (s Source) url() string {
	base := strings.TrimSuffix(s.Endpoint, "/")
	if base == "" {
		base = DefaultEndpoint
	}
	return base + "/datasets/" + s.Repo + "/resolve/" + s.Revision + "/" + strings.TrimPrefix(s.File, "/")
}

// CacheDir returns dir if set, else the per-user cache directory for quanteval.
func CacheDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cache dir: %w", err)
	}
	return filepath.Join(base, "quanteval"), nil
}

// LocalPath is where DatasetFile stores file of repo at revision under destDir.
func LocalPath(destDir, repo, revision, file string) string {
	return filepath.Join(destDir, "datasets", filepath.FromSlash(repo), revision, filepath.FromSlash(file))
}

// DatasetFile downloads src into destDir and returns its local path. A file
// already present in destDir is returned without network access.
func DatasetFile(ctx context.Context, src Source, destDir string) (string, error) {
	if src.Repo == "" || src.File == "" {
		return "", fmt.Errorf("dataset: repo and file are required")
	}
	if src.Revision == "" {
		src.Revision = "main"
	}
	dest := LocalPath(destDir, src.Repo, src.Revision, src.File)
	if fi, err := os.Stat(dest); err == nil && fi.Size() > 0 {
		return dest, nil
	}

	url := src.url()
	err := retry.Do(
		func() error { return download(ctx, url, src.Token, dest) },
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.MaxDelay(2*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("dataset download failed, retrying", "attempt", n+1, "max_attempts", retryAttempts, "error", err)
		}),
	)
	if err != nil {
		return "", err
	}
	return dest, nil
}

var (
	retryAttempts uint = 3
	retryDelay         = 500 * time.Millisecond
)

// download fetches url into dest through a temporary file. Client errors
// (4xx) are not retried.
func download(ctx context.Context, url, token, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("dataset: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not download dataset: %v (check network)", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return retry.Unrecoverable(fmt.Errorf("could not download dataset: HTTP %s (set HF_TOKEN for gated repos)", resp.Status))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return retry.Unrecoverable(fmt.Errorf("could not download dataset: HTTP %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("could not download dataset: HTTP %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return retry.Unrecoverable(fmt.Errorf("dataset: %w", err))
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("dataset: %w", err))
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("could not download dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return retry.Unrecoverable(fmt.Errorf("dataset: %w", err))
	}
	return nil
}
