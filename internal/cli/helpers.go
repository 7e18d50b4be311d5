package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/shayne-snap/quanteval/internal/config"
	"github.com/shayne-snap/quanteval/internal/fetch"
	"github.com/shayne-snap/quanteval/internal/hardware"
	"github.com/shayne-snap/quanteval/internal/harness"
	"github.com/shayne-snap/quanteval/internal/llamacpp"
	"github.com/shayne-snap/quanteval/internal/quant"
	"github.com/shayne-snap/quanteval/internal/scorer"
)

// Replaced in tests.
var (
	detectHardware = hardware.Detect
	newScorer      = func(ctx context.Context, cfg config.Scorer) (harness.Scorer, error) {
		return scorer.FromConfig(ctx, cfg)
	}
)

// loadConfig resolves the effective configuration. A .env file in the
// working directory is loaded first; variables already set win over it.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return nil, err
	}
	if globalJSON {
		cfg.Output.JSON = true
	}
	return cfg, nil
}

// repoIDPattern matches a Hub repo id: owner/name, each segment made of
// letters, digits, '-', '_' or '.'.
var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*/[A-Za-z0-9][A-Za-z0-9._-]*$`)

// parseRepoID trims s and checks that it names a HuggingFace dataset repo.
func parseRepoID(s string) (string, error) {
	id := strings.TrimSpace(s)
	if !repoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%q is not a HuggingFace repo id (owner/name)", s)
	}
	return id, nil
}

// resolveDataset returns the local corpus path: dataset.path when set,
// otherwise the configured HuggingFace file, downloaded into the cache.
func resolveDataset(ctx context.Context, d config.Dataset, logger *slog.Logger) (string, error) {
	if d.Path != "" {
		return d.Path, nil
	}
	repo, err := parseRepoID(d.HFRepo)
	if err != nil {
		return "", fmt.Errorf("dataset.hf_repo: %w", err)
	}
	dir, err := fetch.CacheDir(d.CacheDir)
	if err != nil {
		return "", err
	}
	logger.Debug("resolving dataset", "repo", repo, "revision", d.HFRevision, "file", d.HFFile, "cache_dir", dir)
	path, err := fetch.DatasetFile(ctx, fetch.Source{
		Endpoint: d.HFEndpoint,
		Repo:     repo,
		Revision: d.HFRevision,
		File:     d.HFFile,
		Token:    d.HFToken,
	}, dir)
	if err != nil {
		return "", err
	}
	attrs := []any{"path", path}
	if fi, err := os.Stat(path); err == nil {
		attrs = append(attrs, "size", humanize.Bytes(uint64(fi.Size())))
	}
	logger.Info("dataset ready", attrs...)
	return path, nil
}

// newProbe returns a started memory probe for the configured device, or nil
// when tracking is disabled or the device is absent.
func newProbe(m config.Memory, logger *slog.Logger) (*hardware.NvidiaProbe, *hardware.GpuInfo, error) {
	if !m.Enabled {
		return nil, nil, nil
	}
	specs, err := detectHardware()
	if err != nil {
		return nil, nil, err
	}
	gpu, ok := specs.Device(m.Device)
	if !ok {
		logger.Warn("no NVIDIA device found, memory usage will be reported as 0", "device", m.Device)
		return nil, nil, nil
	}
	p := hardware.NewNvidiaProbe(gpu.Index, m.SampleInterval)
	p.Start()
	return p, &gpu, nil
}

// weightsGB prefers the GGUF file size reported by the server and falls back
// to the parameter count at the parsed quantization.
func weightsGB(meta llamacpp.Meta, label quant.Label) float64 {
	if meta.SizeBytes > 0 {
		return float64(meta.SizeBytes) / (1024 * 1024 * 1024)
	}
	if meta.NParams > 0 && label.BytesPerParam > 0 {
		return label.EstimateWeightsGB(meta.NParams)
	}
	return 0
}
