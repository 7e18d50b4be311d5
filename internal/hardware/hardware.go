// Package hardware detects system specs (RAM, CPU, NVIDIA GPUs) and reads accelerator memory.
package hardware

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// GpuBackend is the acceleration backend available to the model server.
type GpuBackend int

const (
	BackendCuda GpuBackend = iota
	BackendCpuArm
	BackendCpuX86
)

func (b GpuBackend) String() string {
	switch b {
	case BackendCuda:
		return "CUDA"
	case BackendCpuArm:
		return "CPU (ARM)"
	default:
		return "CPU (x86)"
	}
}

// GpuInfo holds one detected NVIDIA device.
type GpuInfo struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	VRAMGB float64 `json:"vram_gb"`
}

// SystemSpecs holds detected system specs.
type SystemSpecs struct {
	TotalRAMGB     float64    `json:"total_ram_gb"`
	AvailableRAMGB float64    `json:"available_ram_gb"`
	TotalCPUCores  int        `json:"cpu_cores"`
	CPUName        string     `json:"cpu_name"`
	HasGPU         bool       `json:"has_gpu"`
	Backend        GpuBackend `json:"backend"`
	Gpus           []GpuInfo  `json:"gpus"`
}

// Device returns the GPU with the given index, if present.
func (s *SystemSpecs) Device(index int) (GpuInfo, bool) {
	for _, g := range s.Gpus {
		if g.Index == index {
			return g, true
		}
	}
	return GpuInfo{}, false
}

const (
	gb  = 1024 * 1024 * 1024
	mib = 1024 * 1024
)

// runCommand runs an external tool and returns its stdout. Tests replace it.
var runCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

// Detect returns system specs for the current machine.
func Detect() (*SystemSpecs, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("mem: %w", err)
	}
	infos, _ := cpu.Info()
	cpuName := "Unknown CPU"
	if len(infos) > 0 {
		cpuName = infos[0].ModelName
		if cpuName == "" {
			cpuName = infos[0].VendorID
		}
	}

	gpus := detectNvidiaGPUs()
	backend := backendCPU(cpuName)
	if len(gpus) > 0 {
		backend = BackendCuda
	}
	return &SystemSpecs{
		TotalRAMGB:     float64(v.Total) / float64(gb),
		AvailableRAMGB: float64(v.Available) / float64(gb),
		TotalCPUCores:  runtime.NumCPU(),
		CPUName:        cpuName,
		HasGPU:         len(gpus) > 0,
		Backend:        backend,
		Gpus:           gpus,
	}, nil
}

func backendCPU(cpuName string) GpuBackend {
	lower := strings.ToLower(cpuName)
	if strings.Contains(lower, "apple") || runtime.GOARCH == "arm64" {
		return BackendCpuArm
	}
	return BackendCpuX86
}

func detectNvidiaGPUs() []GpuInfo {
	out, err := runCommand("nvidia-smi", "--query-gpu=index,name,memory.total", "--format=csv,noheader,nounits")
	if err != nil {
		return nil
	}
	return parseNvidiaGPUList(out)
}

// parseNvidiaGPUList parses "index, name, memory.total(MiB)" rows.
func parseNvidiaGPUList(out []byte) []GpuInfo {
	var gpus []GpuInfo
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		// GPU names may themselves contain commas; memory is always last.
		name := strings.TrimSpace(strings.Join(parts[1:len(parts)-1], ","))
		if name == "" {
			name = "NVIDIA GPU"
		}
		var vramMB float64
		fmt.Sscanf(strings.TrimSpace(parts[len(parts)-1]), "%f", &vramMB)
		gpus = append(gpus, GpuInfo{Index: idx, Name: name, VRAMGB: vramMB / 1024})
	}
	return gpus
}

// readNvidiaMemoryUsed returns the memory currently used on device, in bytes.
func readNvidiaMemoryUsed(device int) (int64, error) {
	out, err := runCommand("nvidia-smi", "--query-gpu=memory.used", "--format=csv,noheader,nounits", "--id="+strconv.Itoa(device))
	if err != nil {
		return 0, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseMemoryUsed(out)
}

func parseMemoryUsed(out []byte) (int64, error) {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("nvidia-smi: unexpected memory.used %q", line)
	}
	return n * mib, nil
}
