// Package quant identifies the quantization of a served GGUF checkpoint from its file name.
package quant

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Label describes the quantization of a checkpoint.
type Label struct {
	Name          string  `json:"name"`
	Bits          int     `json:"bits"`
	BytesPerParam float64 `json:"bytes_per_param"`
}

// String returns e.g. "8-bit (Q8_0)".
func (l Label) String() string {
	if l.Name == "" {
		return "unknown"
	}
	return strconv.Itoa(l.Bits) + "-bit (" + l.Name + ")"
}

var tagRe = regexp.MustCompile(`(?i)(?:^|[.\-_])(I?Q[1-8](?:_[0-9]|_K(?:_[SML]|_XL)?|_[SML]|_XXS|_XS)*|BF16|F16|F32)(?:$|[.\-])`)

// ParseLabel extracts the quantization tag from a model path such as
// "models/llama-2-7b.Q8_0.gguf". ok is false when no tag is present.
func ParseLabel(modelPath string) (l Label, ok bool) {
	base := filepath.Base(modelPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	m := tagRe.FindAllStringSubmatch(base, -1)
	if len(m) == 0 {
		return Label{}, false
	}
	name := strings.ToUpper(m[len(m)-1][1])
	return Label{Name: name, Bits: nominalBits(name), BytesPerParam: BytesPerParam(name)}, true
}

func nominalBits(name string) int {
	switch name {
	case "F32":
		return 32
	case "F16", "BF16":
		return 16
	}
	digits := strings.TrimPrefix(strings.TrimPrefix(name, "I"), "Q")
	if len(digits) > 0 {
		if n, err := strconv.Atoi(digits[:1]); err == nil {
			return n
		}
	}
	return 0
}

// BytesPerParam returns the approximate bytes per parameter for the quantization.
func BytesPerParam(name string) float64 {
	switch name {
	case "F32":
		return 4.0
	case "F16", "BF16":
		return 2.0
	case "Q8_0":
		return 1.05
	case "Q6_K":
		return 0.80
	case "Q5_K_M", "Q5_K_S", "Q5_0", "Q5_1":
		return 0.68
	case "Q4_K_M", "Q4_K_S", "Q4_0", "Q4_1":
		return 0.58
	case "Q3_K_M", "Q3_K_L", "Q3_K_S":
		return 0.48
	case "Q2_K":
		return 0.37
	default:
		if b := nominalBits(name); b > 0 {
			return float64(b) / 8
		}
		return 0
	}
}

// EstimateWeightsGB returns the approximate weight footprint of a model with
// params parameters at this quantization.
func (l Label) EstimateWeightsGB(params uint64) float64 {
	return float64(params) * l.BytesPerParam / (1024 * 1024 * 1024)
}
