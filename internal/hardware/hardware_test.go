package hardware

import (
	"errors"
	"runtime"
	"testing"
)

func TestParseNvidiaGPUList(t *testing.T) {
	out := []byte("0, NVIDIA A100-SXM4-80GB, 81920\n\n1, NVIDIA GeForce RTX 4090, 24564\nbogus line\n")
	gpus := parseNvidiaGPUList(out)
	if len(gpus) != 2 {
		t.Fatalf("parseNvidiaGPUList len = %d, want 2", len(gpus))
	}
	if gpus[0].Index != 0 || gpus[0].Name != "NVIDIA A100-SXM4-80GB" || gpus[0].VRAMGB != 80 {
		t.Errorf("gpus[0] = %+v", gpus[0])
	}
	if gpus[1].Index != 1 || gpus[1].Name != "NVIDIA GeForce RTX 4090" {
		t.Errorf("gpus[1] = %+v", gpus[1])
	}
}

func TestParseMemoryUsed(t *testing.T) {
	got, err := parseMemoryUsed([]byte("7423\n"))
	if err != nil {
		t.Fatalf("parseMemoryUsed: %v", err)
	}
	if got != 7423*mib {
		t.Errorf("parseMemoryUsed = %d, want %d", got, 7423*mib)
	}
	if _, err := parseMemoryUsed([]byte("[N/A]")); err == nil {
		t.Error("parseMemoryUsed([N/A]) should fail")
	}
}

func TestReadNvidiaMemoryUsed_UsesDeviceID(t *testing.T) {
	orig := runCommand
	defer func() { runCommand = orig }()
	var gotArgs []string
	runCommand = func(name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("100\n"), nil
	}
	if _, err := readNvidiaMemoryUsed(3); err != nil {
		t.Fatalf("readNvidiaMemoryUsed: %v", err)
	}
	if gotArgs[len(gotArgs)-1] != "--id=3" {
		t.Errorf("args = %v, want trailing --id=3", gotArgs)
	}
}

func TestDetectNvidiaGPUs_NoTool(t *testing.T) {
	orig := runCommand
	defer func() { runCommand = orig }()
	runCommand = func(name string, args ...string) ([]byte, error) {
		return nil, errors.New("executable file not found")
	}
	if gpus := detectNvidiaGPUs(); gpus != nil {
		t.Errorf("detectNvidiaGPUs = %v, want nil", gpus)
	}
}

func TestSystemSpecsDevice(t *testing.T) {
	s := &SystemSpecs{Gpus: []GpuInfo{{Index: 1, Name: "B"}}}
	if _, ok := s.Device(0); ok {
		t.Error("Device(0) should be absent")
	}
	if g, ok := s.Device(1); !ok || g.Name != "B" {
		t.Errorf("Device(1) = %+v, %v", g, ok)
	}
}

func TestBackendCPU(t *testing.T) {
	if got := backendCPU("Apple M1 Pro"); got != BackendCpuArm {
		t.Errorf("backendCPU(Apple M1 Pro) = %v, want BackendCpuArm", got)
	}
	got := backendCPU("Intel Xeon")
	if runtime.GOARCH == "arm64" {
		if got != BackendCpuArm {
			t.Errorf("backendCPU(Intel Xeon) on arm64 = %v, want BackendCpuArm", got)
		}
	} else if got != BackendCpuX86 {
		t.Errorf("backendCPU(Intel Xeon) on %s = %v, want BackendCpuX86", runtime.GOARCH, got)
	}
}
