// Package harness runs the quantized-checkpoint evaluation: sample selection, instrumented generation, aggregation and scoring.
package harness

import (
	"context"
	"time"
)

// Corpus is an ordered, read-only collection of text records.
type Corpus interface {
	Len() int
	Text(i int) string
}

// Tokenizer converts between text and the model's token ids.
type Tokenizer interface {
	Encode(ctx context.Context, prompt string) ([]int, error)
	Decode(ctx context.Context, tokens []int, skipSpecial bool) (string, error)
}

// Model runs autoregressive generation. The returned sequence holds the input
// followed by the generated tokens; maxLength bounds its total length.
type Model interface {
	Generate(ctx context.Context, input []int, maxLength int) ([]int, error)
}

// MemoryProbe reads accelerator allocator counters. The counters are process
// (or device) wide: callers must not overlap generations while using them.
type MemoryProbe interface {
	ResetPeak() error
	Allocated() (int64, error)
	PeakAllocated() (int64, error)
}

// Scores holds per-sample similarity scores, index-aligned with the inputs.
type Scores struct {
	Precision []float64
	Recall    []float64
	F1        []float64
}

// Scorer compares predictions against references.
type Scorer interface {
	Score(ctx context.Context, predictions, references []string, lang string) (Scores, error)
}

// Sample is one prompt/reference split of a corpus record.
type Sample struct {
	Index     int    `json:"index"`
	Prompt    string `json:"prompt"`
	Reference string `json:"reference"`
}

// Outcome is the result of generating for one Sample.
type Outcome struct {
	Prediction    string        `json:"prediction"`
	InferenceTime time.Duration `json:"inference_time"`
	// PeakMemoryDelta is nil when no accelerator probe is active.
	PeakMemoryDelta *int64 `json:"peak_memory_delta_bytes,omitempty"`
}

// SampleResult is the per-sample row of a Report.
type SampleResult struct {
	Index            int      `json:"index"`
	Reference        string   `json:"reference"`
	Prediction       string   `json:"prediction"`
	InferenceSeconds float64  `json:"inference_seconds"`
	MemoryMB         *float64 `json:"memory_mb,omitempty"`
	Precision        float64  `json:"precision"`
	Recall           float64  `json:"recall"`
	F1               float64  `json:"f1"`
}

// Report is the aggregate result of one evaluation run.
type Report struct {
	Precision          float64 `json:"precision"`
	Recall             float64 `json:"recall"`
	F1                 float64 `json:"f1"`
	AvgInferenceTime   float64 `json:"avg_inference_time"`
	AvgMemoryMB        float64 `json:"avg_memory_usage_mb"`
	MaxMemoryMB        float64 `json:"max_memory_usage_mb"`
	TotalInferenceTime float64 `json:"total_inference_time"`
	Requested          int     `json:"requested"`
	Evaluated          int     `json:"evaluated"`
	// Skipped counts inspected records too short for prompt plus reference.
	// Requested-Evaluated-Skipped slots lie past the end of the corpus.
	Skipped int            `json:"skipped"`
	Samples []SampleResult `json:"samples,omitempty"`
}

// bytesPerMB matches the decimal megabytes used in the reports.
const bytesPerMB = 1e6
