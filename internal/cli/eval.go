package cli

import (
	"fmt"
	"os"

	"github.com/shayne-snap/quanteval/internal/config"
	"github.com/shayne-snap/quanteval/internal/corpus"
	"github.com/shayne-snap/quanteval/internal/display"
	"github.com/shayne-snap/quanteval/internal/harness"
	"github.com/shayne-snap/quanteval/internal/llamacpp"
	"github.com/shayne-snap/quanteval/internal/logging"
	"github.com/shayne-snap/quanteval/internal/quant"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	evalSamples      int
	evalPromptLength int
	evalGenLength    int
	evalLanguage     string
	evalDataset      string
	evalServer       string
	evalOutput       string
	evalTable        bool
	evalNoMemory     bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate the checkpoint served by llama.cpp on a text corpus",
	Long:  "Evaluate the checkpoint served by llama.cpp. The first N corpus records long enough to hold prompt plus reference are split into a prompt and the reference that follows it; the model continues each prompt and the continuation is scored against the reference.",
	Args:  cobra.NoArgs,
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().IntVarP(&evalSamples, "samples", "n", 0, "Number of corpus records to consider")
	evalCmd.Flags().IntVar(&evalPromptLength, "prompt-length", 0, "Prompt length in characters")
	evalCmd.Flags().IntVar(&evalGenLength, "gen-length", 0, "Reference length in characters, also the generation token limit")
	evalCmd.Flags().StringVar(&evalLanguage, "lang", "", "Language hint for the scorer")
	evalCmd.Flags().StringVar(&evalDataset, "dataset", "", "Local corpus file (.parquet, .jsonl, .txt); default fetches the configured HuggingFace file")
	evalCmd.Flags().StringVar(&evalServer, "server", "", "llama.cpp server URL")
	evalCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Write per-sample results as JSONL to this file")
	evalCmd.Flags().BoolVar(&evalTable, "table", false, "Print per-sample results as a table")
	evalCmd.Flags().BoolVar(&evalNoMemory, "no-memory", false, "Disable accelerator memory tracking")
}

func applyEvalFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("samples") {
		cfg.Eval.Samples = evalSamples
	}
	if f.Changed("prompt-length") {
		cfg.Eval.PromptLength = evalPromptLength
	}
	if f.Changed("gen-length") {
		cfg.Eval.GenLength = evalGenLength
	}
	if f.Changed("lang") {
		cfg.Eval.Language = evalLanguage
	}
	if f.Changed("dataset") {
		cfg.Dataset.Path = evalDataset
	}
	if f.Changed("server") {
		cfg.Server.URL = evalServer
	}
	if f.Changed("output") {
		cfg.Output.SamplesFile = evalOutput
	}
	if f.Changed("table") {
		cfg.Output.Table = evalTable
	}
	if f.Changed("no-memory") {
		cfg.Memory.Enabled = !evalNoMemory
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	applyEvalFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	path, err := resolveDataset(ctx, cfg.Dataset, logger)
	if err != nil {
		return err
	}
	records, err := corpus.Load(path, corpus.Format(cfg.Dataset.Format))
	if err != nil {
		return err
	}
	logger.Debug("corpus loaded", "path", path, "records", records.Len())

	client := llamacpp.New(cfg.Server.URL, cfg.Server.Timeout, cfg.Server.SpecialTokens)
	props, err := client.Props(ctx)
	if err != nil {
		return fmt.Errorf("llama.cpp server at %s: %w", cfg.Server.URL, err)
	}
	label, ok := quant.ParseLabel(props.ModelPath)
	if !ok {
		logger.Warn("could not infer quantization from model path", "model_path", props.ModelPath)
	}
	meta, err := client.ModelMeta(ctx)
	if err != nil {
		logger.Debug("model metadata unavailable", "err", err)
	}

	sc, err := newScorer(ctx, cfg.Scorer)
	if err != nil {
		return err
	}

	probe, gpu, err := newProbe(cfg.Memory, logger)
	if err != nil {
		return err
	}
	// A nil *NvidiaProbe must not become a non-nil interface.
	var mp harness.MemoryProbe
	if probe != nil {
		defer probe.Close()
		mp = probe
	}

	info := display.RunInfo{
		RunID:        runID,
		ModelPath:    props.ModelPath,
		Label:        label,
		ContextSize:  props.ContextSize,
		Params:       meta.NParams,
		WeightsGB:    weightsGB(meta, label),
		ServerURL:    cfg.Server.URL,
		Dataset:      path,
		Samples:      cfg.Eval.Samples,
		PromptLength: cfg.Eval.PromptLength,
		GenLength:    cfg.Eval.GenLength,
	}
	if gpu != nil {
		info.MemoryDevice = fmt.Sprintf("GPU %d: %s", gpu.Index, gpu.Name)
		if info.WeightsGB > 0 && gpu.VRAMGB > 0 {
			fit := quant.CheckFit(info.WeightsGB, gpu.VRAMGB)
			info.Fit = fit.String()
			if fit == quant.FitTooTight {
				logger.Warn("checkpoint weights exceed device memory; the server is likely offloading to CPU",
					"weights_gb", info.WeightsGB, "vram_gb", gpu.VRAMGB)
			}
		}
	}
	out := cmd.OutOrStdout()
	if !cfg.Output.JSON {
		display.Banner(out, info)
	}

	ev := &harness.Evaluator{
		Generator: harness.NewGenerator(client, client, mp, cfg.Eval.GenLength),
		Scorer:    sc,
		Options: harness.Options{
			NumSamples:   cfg.Eval.Samples,
			PromptLength: cfg.Eval.PromptLength,
			GenLength:    cfg.Eval.GenLength,
			Language:     cfg.Eval.Language,
		},
		Logger: logger,
	}
	rep, err := ev.Run(ctx, records)
	if err != nil {
		return err
	}

	if cfg.Output.SamplesFile != "" {
		if err := writeSamplesFile(cfg.Output.SamplesFile, rep.Samples); err != nil {
			return err
		}
		logger.Info("per-sample results written", "path", cfg.Output.SamplesFile, "samples", len(rep.Samples))
	}
	return display.Report(out, rep, info, cfg.Output.JSON, cfg.Output.Table)
}

func writeSamplesFile(path string, rows []harness.SampleResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("samples file: %w", err)
	}
	if err := display.WriteSamplesJSONL(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("samples file: %w", err)
	}
	return f.Close()
}
