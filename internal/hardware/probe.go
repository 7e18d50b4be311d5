package hardware

import (
	"sync"
	"time"
)

// NvidiaProbe tracks peak memory use of one NVIDIA device by polling
// nvidia-smi. The readings are device wide, so other processes on the same
// GPU show up in them.
type NvidiaProbe struct {
	device   int
	interval time.Duration
	read     func() (int64, error)

	mu   sync.Mutex
	peak int64

	stop chan struct{}
	done chan struct{}
}

// NewNvidiaProbe returns a probe for device. Call Start to begin background
// sampling between reads and Close to end it.
func NewNvidiaProbe(device int, interval time.Duration) *NvidiaProbe {
	return &NvidiaProbe{
		device:   device,
		interval: interval,
		read:     func() (int64, error) { return readNvidiaMemoryUsed(device) },
	}
}

// Start launches the sampler. It is a no-op for a non-positive interval.
func (p *NvidiaProbe) Start() {
	if p.interval <= 0 || p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop()
}

func (p *NvidiaProbe) loop() {
	defer close(p.done)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.sample()
		}
	}
}

// sample folds one reading into the peak; failed readings are dropped.
func (p *NvidiaProbe) sample() {
	v, err := p.read()
	if err != nil {
		return
	}
	p.mu.Lock()
	p.peak = max(p.peak, v)
	p.mu.Unlock()
}

// Close stops the sampler.
func (p *NvidiaProbe) Close() error {
	if p.stop == nil {
		return nil
	}
	close(p.stop)
	<-p.done
	p.stop = nil
	return nil
}

// ResetPeak sets the peak to the current reading.
func (p *NvidiaProbe) ResetPeak() error {
	v, err := p.read()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.peak = v
	p.mu.Unlock()
	return nil
}

// Allocated returns the current reading.
func (p *NvidiaProbe) Allocated() (int64, error) {
	return p.read()
}

// PeakAllocated returns the highest reading since the last ResetPeak.
func (p *NvidiaProbe) PeakAllocated() (int64, error) {
	v, err := p.read()
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peak = max(p.peak, v)
	return p.peak, nil
}
