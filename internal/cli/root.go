package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set by main from ldflags or "dev". Used for --version / -v.
var Version string

var (
	configPath  string
	globalJSON  bool
	showVersion bool
)

var rootCmd = &cobra.Command{
	Use:          "quanteval",
	Short:        "Evaluate a quantized language model served by llama.cpp",
	Long:         "quanteval measures a quantized checkpoint: it splits corpus records into prompt and reference, generates greedily through a llama.cpp server, records inference time and accelerator memory per sample, and scores predictions against references with embedding-based precision, recall and F1.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			if Version == "" {
				Version = "dev"
			}
			fmt.Fprintln(cmd.OutOrStdout(), Version)
			os.Exit(0)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./quanteval.yaml or ./.quanteval.yaml)")
	rootCmd.PersistentFlags().BoolVar(&globalJSON, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Print version and exit")

	rootCmd.AddCommand(evalCmd, systemCmd, fetchCmd, configCmd)
}

// Execute runs the root command. Returns error for exit code handling.
// SIGINT and SIGTERM cancel the running evaluation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
