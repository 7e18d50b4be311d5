package harness

import (
	"context"
	"fmt"
	"time"
)

// Generator wraps one generation call with wall-clock timing and, when a
// MemoryProbe is set, peak accelerator memory capture.
type Generator struct {
	Tokenizer Tokenizer
	Model     Model
	// Probe is nil when no accelerator is active; memory is then not tracked.
	Probe MemoryProbe
	// MaxLength bounds the total generated sequence (prompt included).
	MaxLength int

	now func() time.Time
}

// NewGenerator returns a Generator over the given collaborators. probe may be nil.
func NewGenerator(tok Tokenizer, model Model, probe MemoryProbe, maxLength int) *Generator {
	return &Generator{Tokenizer: tok, Model: model, Probe: probe, MaxLength: maxLength}
}

func (g *Generator) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}

// Generate runs exactly one generation for s. Collaborator errors are returned
// wrapped and nothing is retried.
func (g *Generator) Generate(ctx context.Context, s Sample) (Outcome, error) {
	var baseline int64
	if g.Probe != nil {
		if err := g.Probe.ResetPeak(); err != nil {
			return Outcome{}, fmt.Errorf("memory probe: %w", err)
		}
		b, err := g.Probe.Allocated()
		if err != nil {
			return Outcome{}, fmt.Errorf("memory probe: %w", err)
		}
		baseline = b
	}

	input, err := g.Tokenizer.Encode(ctx, s.Prompt)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode sample %d: %w", s.Index, err)
	}

	// Second reset: the baseline above is read before it, the peak after it.
	if g.Probe != nil {
		if err := g.Probe.ResetPeak(); err != nil {
			return Outcome{}, fmt.Errorf("memory probe: %w", err)
		}
	}

	start := g.clock()
	tokens, err := g.Model.Generate(ctx, input, g.MaxLength)
	elapsed := g.clock().Sub(start)
	if err != nil {
		return Outcome{}, fmt.Errorf("generate sample %d: %w", s.Index, err)
	}

	prediction, err := g.Tokenizer.Decode(ctx, tokens, true)
	if err != nil {
		return Outcome{}, fmt.Errorf("decode sample %d: %w", s.Index, err)
	}

	out := Outcome{Prediction: prediction, InferenceTime: elapsed}
	if g.Probe != nil {
		peak, err := g.Probe.PeakAllocated()
		if err != nil {
			return Outcome{}, fmt.Errorf("memory probe: %w", err)
		}
		delta := peak - baseline
		out.PeakMemoryDelta = &delta
	}
	return out, nil
}
