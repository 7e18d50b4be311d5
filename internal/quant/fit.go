package quant

import (
	"fmt"
	"math"
	"strconv"
)

// FitLevel is how well a checkpoint's weights fit the device memory.
type FitLevel int

const (
	FitPerfect FitLevel = iota
	FitGood
	FitMarginal
	FitTooTight
)

func (f FitLevel) String() string {
	switch f {
	case FitPerfect:
		return "Perfect"
	case FitGood:
		return "Good"
	case FitMarginal:
		return "Marginal"
	default:
		return "Too Tight"
	}
}

// runtimeOverhead covers KV cache and compute buffers on top of the weights.
const runtimeOverhead = 1.2

// CheckFit grades weightsGB against availableGB of device memory.
// Perfect leaves room for twice the weights, Good for the runtime overhead.
func CheckFit(weightsGB, availableGB float64) FitLevel {
	required := weightsGB * runtimeOverhead
	switch {
	case weightsGB > availableGB:
		return FitTooTight
	case weightsGB*2 <= availableGB:
		return FitPerfect
	case required <= availableGB:
		return FitGood
	default:
		return FitMarginal
	}
}

// FormatParamCount renders a parameter count as 7B, 1.5B, 600M or 1K.
func FormatParamCount(n uint64) string {
	if n >= 1_000_000_000 {
		val := float64(n) / 1e9
		if val == math.Trunc(val) {
			return strconv.Itoa(int(val)) + "B"
		}
		return fmt.Sprintf("%.1fB", val)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.0fM", float64(n)/1e6)
	}
	return fmt.Sprintf("%.0fK", float64(n)/1e3)
}
