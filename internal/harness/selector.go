package harness

import "iter"

// Select yields prompt/reference splits from the first n records of c.
//
// Exactly n record slots are inspected: a record shorter than
// promptLen+genLen is skipped and does not count toward n, and the walk does
// not advance past slot n-1 to compensate. Fewer than n samples may result.
// Lengths are counted in runes.
func Select(c Corpus, n, promptLen, genLen int) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		limit := min(n, c.Len())
		for i := 0; i < limit; i++ {
			s, ok := split(c.Text(i), promptLen, genLen)
			if !ok {
				continue
			}
			s.Index = i
			if !yield(s) {
				return
			}
		}
	}
}

func split(text string, promptLen, genLen int) (Sample, bool) {
	r := []rune(text)
	if len(r) < promptLen+genLen {
		return Sample{}, false
	}
	return Sample{
		Prompt:    string(r[:promptLen]),
		Reference: string(r[promptLen : promptLen+genLen]),
	}, true
}
