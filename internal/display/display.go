// Package display handles CLI text, table and JSON output for evaluation reports and system specs.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/template"

	"github.com/olekukonko/tablewriter"

	"github.com/shayne-snap/quanteval/internal/hardware"
	"github.com/shayne-snap/quanteval/internal/harness"
	"github.com/shayne-snap/quanteval/internal/quant"
)

var (
	systemTpl *template.Template
	reportTpl *template.Template
	bannerTpl *template.Template
)

func init() {
	systemTpl = template.Must(template.New("system").Parse(
		`
=== System Specifications ===
CPU: {{.CPUName}} ({{.TotalCPUCores}} cores)
Total RAM: {{.TotalRAMGB}}
Available RAM: {{.AvailableRAMGB}}
Backend: {{.Backend}}
{{.GpuBlock}}

`))
	bannerTpl = template.Must(template.New("banner").Parse(
		`{{if .Bits}}{{.Bits}}-bit quantized{{else}}Quantized{{end}} model loaded successfully!
{{- if .ModelPath}}
Model: {{.ModelPath}}{{if .Quant}} ({{.Quant}}){{end}}{{end}}
{{- if .ContextSize}}
Context: {{.ContextSize}} tokens{{end}}
{{- if .ParamsText}}
Parameters: {{.ParamsText}}{{if .WeightsGB}} ({{printf "%.2f" .WeightsGB}} GB weights){{end}}{{end}}
{{- if .Fit}}
Device fit: {{.Fit}}{{end}}
Server: {{.ServerURL}}
Dataset: {{.Dataset}}
Samples: {{.Samples}} (prompt {{.PromptLength}} chars, reference {{.GenLength}} chars)
{{if .MemoryDevice}}Memory probe: {{.MemoryDevice}}{{else}}Memory probe: disabled{{end}}
Evaluating the quantized model...
`))
	reportTpl = template.Must(template.New("report").Parse(
		`
Evaluation Results:
Precision Score (BERTScore): {{printf "%.4f" .Precision}}
Recall Score (BERTScore): {{printf "%.4f" .Recall}}
F1 Score (BERTScore): {{printf "%.4f" .F1}}
Average Inference Time: {{printf "%.4f" .AvgInferenceTime}}s
Average Memory Usage: {{printf "%.4f" .AvgMemoryMB}}MB
Max Memory Usage: {{printf "%.4f" .MaxMemoryMB}}MB
`))
}

// RunInfo describes the checkpoint and settings of one evaluation, shown before it starts.
type RunInfo struct {
	RunID       string
	ModelPath   string
	Label       quant.Label
	ContextSize int
	Params      uint64
	WeightsGB   float64
	// Fit grades WeightsGB against the probed device; empty when unknown.
	Fit          string
	ServerURL    string
	Dataset      string
	Samples      int
	PromptLength int
	GenLength    int
	// MemoryDevice is empty when no probe is active.
	MemoryDevice string
}

// Banner prints the pre-evaluation banner to out.
func Banner(out io.Writer, info RunInfo) {
	data := struct {
		RunInfo
		Bits       int
		Quant      string
		ParamsText string
	}{RunInfo: info, Bits: info.Label.Bits, Quant: info.Label.Name}
	if info.Params > 0 {
		data.ParamsText = quant.FormatParamCount(info.Params)
	}
	_ = bannerTpl.Execute(out, data)
}

// Report prints the evaluation summary to out. With useJSON the report and
// its per-sample rows are written as one JSON document; with table the
// per-sample rows follow the summary as a table.
func Report(out io.Writer, rep *harness.Report, info RunInfo, useJSON, table bool) error {
	if useJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"model":  runJSON(info),
			"report": reportJSON(rep),
		})
	}
	if err := reportTpl.Execute(out, rep); err != nil {
		return err
	}
	if rep.Evaluated < rep.Requested {
		fmt.Fprintf(out, "Evaluated %d of %d requested samples (%d too short", rep.Evaluated, rep.Requested, rep.Skipped)
		if missing := rep.Requested - rep.Evaluated - rep.Skipped; missing > 0 {
			fmt.Fprintf(out, ", %d past the end of the corpus", missing)
		}
		fmt.Fprintln(out, ")")
	}
	if table {
		Samples(out, rep.Samples)
	}
	return nil
}

// Samples prints per-sample results as a table.
func Samples(out io.Writer, rows []harness.SampleResult) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "\nNo samples evaluated.")
		return
	}
	fmt.Fprintln(out, "\n=== Per-sample Results ===")
	tbl := tablewriter.NewWriter(out)
	tbl.Header("Record", "Time (s)", "Memory (MB)", "Precision", "Recall", "F1", "Prediction")
	for _, r := range rows {
		memCol := "-"
		if r.MemoryMB != nil {
			memCol = fmt.Sprintf("%.2f", *r.MemoryMB)
		}
		tbl.Append([]string{
			fmt.Sprintf("%d", r.Index),
			fmt.Sprintf("%.3f", r.InferenceSeconds),
			memCol,
			fmt.Sprintf("%.4f", r.Precision),
			fmt.Sprintf("%.4f", r.Recall),
			fmt.Sprintf("%.4f", r.F1),
			preview(r.Prediction, 40),
		})
	}
	_ = tbl.Render()
}

// WriteSamplesJSONL writes one JSON object per sample to w.
func WriteSamplesJSONL(w io.Writer, rows []harness.SampleResult) error {
	enc := json.NewEncoder(w)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// preview returns the last n runes of s on one line; the prediction starts
// with the prompt, so its tail is the generated part.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n:])
}

func runJSON(info RunInfo) map[string]interface{} {
	m := map[string]interface{}{
		"run_id":        info.RunID,
		"model_path":    info.ModelPath,
		"server_url":    info.ServerURL,
		"dataset":       info.Dataset,
		"samples":       info.Samples,
		"prompt_length": info.PromptLength,
		"gen_length":    info.GenLength,
		"memory_probe":  info.MemoryDevice != "",
	}
	if info.Label.Name != "" {
		m["quantization"] = info.Label
	}
	if info.ContextSize > 0 {
		m["context_size"] = info.ContextSize
	}
	if info.Params > 0 {
		m["n_params"] = info.Params
	}
	if info.WeightsGB > 0 {
		m["weights_gb"] = round2(info.WeightsGB)
	}
	if info.Fit != "" {
		m["device_fit"] = info.Fit
	}
	return m
}

// reportJSON maps NaN scores (empty selection) to null; encoding/json rejects NaN.
func reportJSON(rep *harness.Report) map[string]interface{} {
	samples := rep.Samples
	if samples == nil {
		samples = []harness.SampleResult{}
	}
	return map[string]interface{}{
		"precision":            finite(rep.Precision),
		"recall":               finite(rep.Recall),
		"f1":                   finite(rep.F1),
		"avg_inference_time":   rep.AvgInferenceTime,
		"avg_memory_usage_mb":  rep.AvgMemoryMB,
		"max_memory_usage_mb":  rep.MaxMemoryMB,
		"total_inference_time": rep.TotalInferenceTime,
		"requested":            rep.Requested,
		"evaluated":            rep.Evaluated,
		"skipped":              rep.Skipped,
		"samples":              samples,
	}
}

func finite(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// System prints system specs to out (text or JSON).
func System(out io.Writer, specs *hardware.SystemSpecs, useJSON bool) {
	if useJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{
			"system": systemJSON(specs),
		})
		return
	}
	data := struct {
		CPUName, Backend, GpuBlock string
		TotalCPUCores              int
		TotalRAMGB, AvailableRAMGB string
	}{
		CPUName:        specs.CPUName,
		TotalCPUCores:  specs.TotalCPUCores,
		TotalRAMGB:     fmt.Sprintf("%.2f GB", specs.TotalRAMGB),
		AvailableRAMGB: fmt.Sprintf("%.2f GB", specs.AvailableRAMGB),
		Backend:        specs.Backend.String(),
		GpuBlock:       buildSystemGpuBlock(specs),
	}
	_ = systemTpl.Execute(out, data)
}

func buildSystemGpuBlock(specs *hardware.SystemSpecs) string {
	if len(specs.Gpus) == 0 {
		return "GPU: Not detected"
	}
	lines := make([]string, 0, len(specs.Gpus))
	for _, g := range specs.Gpus {
		if g.VRAMGB > 0 {
			lines = append(lines, fmt.Sprintf("GPU %d: %s (%.2f GB VRAM)", g.Index, g.Name, g.VRAMGB))
		} else {
			lines = append(lines, fmt.Sprintf("GPU %d: %s (VRAM unknown)", g.Index, g.Name))
		}
	}
	return strings.Join(lines, "\n")
}

func systemJSON(specs *hardware.SystemSpecs) map[string]interface{} {
	gpus := make([]map[string]interface{}, 0, len(specs.Gpus))
	for _, g := range specs.Gpus {
		gpus = append(gpus, map[string]interface{}{
			"index":   g.Index,
			"name":    g.Name,
			"vram_gb": round2(g.VRAMGB),
		})
	}
	return map[string]interface{}{
		"total_ram_gb":     round2(specs.TotalRAMGB),
		"available_ram_gb": round2(specs.AvailableRAMGB),
		"cpu_cores":        specs.TotalCPUCores,
		"cpu_name":         specs.CPUName,
		"has_gpu":          specs.HasGPU,
		"backend":          specs.Backend.String(),
		"gpus":             gpus,
	}
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
