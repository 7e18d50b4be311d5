package hardware

import (
	"errors"
	"testing"
	"time"
)

// seqReader returns the given readings in order, repeating the last one.
func seqReader(vals ...int64) func() (int64, error) {
	i := 0
	return func() (int64, error) {
		v := vals[min(i, len(vals)-1)]
		i++
		return v, nil
	}
}

func TestNvidiaProbe_PeakTracksSamples(t *testing.T) {
	p := NewNvidiaProbe(0, 0)
	// reset, allocated, reset, sample, sample, peak
	p.read = seqReader(100, 100, 120, 900, 300, 200)

	if err := p.ResetPeak(); err != nil {
		t.Fatal(err)
	}
	base, _ := p.Allocated()
	if err := p.ResetPeak(); err != nil {
		t.Fatal(err)
	}
	p.sample()
	p.sample()
	peak, err := p.PeakAllocated()
	if err != nil {
		t.Fatal(err)
	}
	if base != 100 {
		t.Errorf("baseline = %d, want 100", base)
	}
	if peak != 900 {
		t.Errorf("peak = %d, want 900", peak)
	}
}

func TestNvidiaProbe_ResetDropsOldPeak(t *testing.T) {
	p := NewNvidiaProbe(0, 0)
	p.read = seqReader(100, 5000, 200, 250)
	_ = p.ResetPeak()
	p.sample()
	_ = p.ResetPeak()
	peak, _ := p.PeakAllocated()
	if peak != 250 {
		t.Errorf("peak = %d, want 250 after reset", peak)
	}
}

func TestNvidiaProbe_ReadErrors(t *testing.T) {
	p := NewNvidiaProbe(0, 0)
	bad := errors.New("nvidia-smi: exit status 9")
	p.read = func() (int64, error) { return 0, bad }
	if err := p.ResetPeak(); !errors.Is(err, bad) {
		t.Errorf("ResetPeak err = %v", err)
	}
	if _, err := p.PeakAllocated(); !errors.Is(err, bad) {
		t.Errorf("PeakAllocated err = %v", err)
	}
	p.sample() // dropped, must not panic
}

func TestNvidiaProbe_StartClose(t *testing.T) {
	p := NewNvidiaProbe(0, time.Millisecond)
	p.read = seqReader(10)
	p.Start()
	time.Sleep(5 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
