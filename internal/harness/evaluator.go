package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Options are the fixed parameters of one evaluation run.
type Options struct {
	NumSamples   int
	PromptLength int
	GenLength    int
	// Language is passed through to the Scorer.
	Language string
}

// Evaluator drives selection, generation, aggregation and scoring.
type Evaluator struct {
	Generator *Generator
	Scorer    Scorer
	Options   Options
	Logger    *slog.Logger
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Run evaluates the first Options.NumSamples records of c. Any collaborator
// error aborts the run and no partial report is returned.
func (e *Evaluator) Run(ctx context.Context, c Corpus) (*Report, error) {
	opts := e.Options
	log := e.logger()

	var (
		agg      Aggregator
		samples  []Sample
		outcomes []Outcome
	)
	for s := range Select(c, opts.NumSamples, opts.PromptLength, opts.GenLength) {
		out, err := e.Generator.Generate(ctx, s)
		if err != nil {
			return nil, err
		}
		agg.Add(s, out)
		samples = append(samples, s)
		outcomes = append(outcomes, out)
		log.Info("sample evaluated", "index", s.Index, "inference_time", out.InferenceTime, "memory_tracked", out.PeakMemoryDelta != nil)
	}
	skipped := min(opts.NumSamples, c.Len()) - agg.Len()
	if skipped > 0 {
		log.Debug("records too short for prompt+reference", "skipped", skipped, "min_length", opts.PromptLength+opts.GenLength)
	}

	// Called even when nothing survived selection; the scorer decides what
	// empty inputs mean.
	scores, err := e.Scorer.Score(ctx, agg.Predictions(), agg.References(), opts.Language)
	if err != nil {
		return nil, fmt.Errorf("score: %w", err)
	}
	n := agg.Len()
	if len(scores.Precision) != n || len(scores.Recall) != n || len(scores.F1) != n {
		return nil, fmt.Errorf("score: got %d/%d/%d scores for %d samples", len(scores.Precision), len(scores.Recall), len(scores.F1), n)
	}

	avgMem, maxMem := agg.MemoryStats()
	total := agg.TotalTime().Seconds()
	rep := &Report{
		Precision: mean(scores.Precision),
		Recall:    mean(scores.Recall),
		F1:        mean(scores.F1),
		// Divided by the requested count, not the evaluated one: skipped
		// records dilute the average.
		AvgInferenceTime:   total / float64(opts.NumSamples),
		AvgMemoryMB:        avgMem,
		MaxMemoryMB:        maxMem,
		TotalInferenceTime: total,
		Requested:          opts.NumSamples,
		Evaluated:          n,
		Skipped:            skipped,
		Samples:            make([]SampleResult, 0, n),
	}
	for i, s := range samples {
		o := outcomes[i]
		r := SampleResult{
			Index:            s.Index,
			Reference:        s.Reference,
			Prediction:       o.Prediction,
			InferenceSeconds: o.InferenceTime.Seconds(),
			Precision:        scores.Precision[i],
			Recall:           scores.Recall[i],
			F1:               scores.F1[i],
		}
		if o.PeakMemoryDelta != nil {
			mb := float64(*o.PeakMemoryDelta) / bytesPerMB
			r.MemoryMB = &mb
		}
		rep.Samples = append(rep.Samples, r)
	}
	return rep, nil
}

// mean of an empty series is NaN, like the tensor mean it stands in for.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
