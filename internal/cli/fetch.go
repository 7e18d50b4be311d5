package cli

import (
	"fmt"

	"github.com/shayne-snap/quanteval/internal/logging"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [REPO [FILE]]",
	Short: "Download the evaluation dataset from HuggingFace into the cache",
	Long:  "Download a dataset file from the HuggingFace Hub into the local cache and print its path. REPO and FILE default to dataset.hf_repo and dataset.hf_file; HF_TOKEN is sent for gated repos.",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		repo, err := parseRepoID(args[0])
		if err != nil {
			return err
		}
		cfg.Dataset.HFRepo = repo
	}
	if len(args) > 1 {
		cfg.Dataset.HFFile = args[1]
	}
	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	// A local path would short-circuit the download.
	cfg.Dataset.Path = ""
	path, err := resolveDataset(ctx, cfg.Dataset, logger)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
