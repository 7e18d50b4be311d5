package harness

import "time"

// Aggregator accumulates outcomes in evaluation order.
type Aggregator struct {
	predictions []string
	references  []string
	memoryMB    []float64
	total       time.Duration
}

// Add records one evaluated sample. Memory is only recorded when the outcome
// carries a delta, so CPU-only runs leave the memory series empty.
func (a *Aggregator) Add(s Sample, o Outcome) {
	a.predictions = append(a.predictions, o.Prediction)
	a.references = append(a.references, s.Reference)
	a.total += o.InferenceTime
	if o.PeakMemoryDelta != nil {
		a.memoryMB = append(a.memoryMB, float64(*o.PeakMemoryDelta)/bytesPerMB)
	}
}

// Len returns the number of samples recorded.
func (a *Aggregator) Len() int { return len(a.predictions) }

// TotalTime is the sum of per-sample inference times.
func (a *Aggregator) TotalTime() time.Duration { return a.total }

func (a *Aggregator) Predictions() []string { return a.predictions }

func (a *Aggregator) References() []string { return a.references }

// MemoryStats returns the mean and max memory delta in MB, or 0, 0 when no
// delta was recorded.
func (a *Aggregator) MemoryStats() (avg, peak float64) {
	if len(a.memoryMB) == 0 {
		return 0, 0
	}
	var sum float64
	peak = a.memoryMB[0]
	for _, v := range a.memoryMB {
		sum += v
		peak = max(peak, v)
	}
	return sum / float64(len(a.memoryMB)), peak
}
