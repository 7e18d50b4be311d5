// Package scorer computes BERTScore-style precision, recall and F1 by greedy
// cosine matching of word embeddings served by an embedding model.
package scorer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/shayne-snap/quanteval/internal/harness"
)

// batchSize bounds the number of strings sent per embedding request.
const batchSize = 256

// Scorer scores prediction/reference pairs. Each language hint maps to its own embedder.
type Scorer struct {
	embedders map[string]embedding.Embedder
}

// New returns a Scorer using embedders keyed by language hint.
func New(embedders map[string]embedding.Embedder) *Scorer {
	return &Scorer{embedders: embedders}
}

// Score returns per-pair scores, index-aligned with the inputs. Empty inputs
// yield empty results without contacting the embedder.
func (s *Scorer) Score(ctx context.Context, predictions, references []string, lang string) (harness.Scores, error) {
	if len(predictions) != len(references) {
		return harness.Scores{}, fmt.Errorf("got %d predictions and %d references", len(predictions), len(references))
	}
	emb, ok := s.embedders[lang]
	if !ok {
		return harness.Scores{}, fmt.Errorf("no embedding model for language %q", lang)
	}
	out := harness.Scores{
		Precision: make([]float64, 0, len(predictions)),
		Recall:    make([]float64, 0, len(predictions)),
		F1:        make([]float64, 0, len(predictions)),
	}
	if len(predictions) == 0 {
		return out, nil
	}

	cands := make([][]string, len(predictions))
	refs := make([][]string, len(references))
	var vocab []string
	seen := make(map[string]bool)
	for i := range predictions {
		cands[i] = tokenize(predictions[i])
		refs[i] = tokenize(references[i])
		for _, words := range [][]string{cands[i], refs[i]} {
			for _, w := range words {
				if !seen[w] {
					seen[w] = true
					vocab = append(vocab, w)
				}
			}
		}
	}

	vecs, err := embedAll(ctx, emb, vocab)
	if err != nil {
		return harness.Scores{}, err
	}
	for i := range predictions {
		p, r, f := greedyMatch(lookup(vecs, cands[i]), lookup(vecs, refs[i]))
		out.Precision = append(out.Precision, p)
		out.Recall = append(out.Recall, r)
		out.F1 = append(out.F1, f)
	}
	return out, nil
}

func tokenize(s string) []string {
	return strings.Fields(s)
}

func embedAll(ctx context.Context, emb embedding.Embedder, words []string) (map[string][]float64, error) {
	vecs := make(map[string][]float64, len(words))
	for start := 0; start < len(words); start += batchSize {
		batch := words[start:min(start+batchSize, len(words))]
		got, err := emb.EmbedStrings(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed: %w", err)
		}
		if len(got) != len(batch) {
			return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(got), len(batch))
		}
		for i, w := range batch {
			vecs[w] = got[i]
		}
	}
	return vecs, nil
}

func lookup(vecs map[string][]float64, words []string) [][]float64 {
	out := make([][]float64, len(words))
	for i, w := range words {
		out[i] = vecs[w]
	}
	return out
}

// greedyMatch matches every candidate token to its most similar reference
// token (precision) and every reference token to its most similar candidate
// token (recall).
func greedyMatch(cand, ref [][]float64) (p, r, f float64) {
	if len(cand) == 0 || len(ref) == 0 {
		return 0, 0, 0
	}
	sim := make([][]float64, len(cand))
	for i := range cand {
		sim[i] = make([]float64, len(ref))
		for j := range ref {
			sim[i][j] = cosine(cand[i], ref[j])
		}
	}
	for i := range cand {
		best := math.Inf(-1)
		for j := range ref {
			best = max(best, sim[i][j])
		}
		p += best
	}
	for j := range ref {
		best := math.Inf(-1)
		for i := range cand {
			best = max(best, sim[i][j])
		}
		r += best
	}
	p /= float64(len(cand))
	r /= float64(len(ref))
	if p+r == 0 {
		return p, r, 0
	}
	return p, r, 2 * p * r / (p + r)
}

func cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
