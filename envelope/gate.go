package envelope

import (
	"sync"
	"time"
)

// DefaultPollInterval is short enough to catch gate pulses an order of
// magnitude above it.
const DefaultPollInterval = time.Millisecond

// PeakSource provides instantaneous peak magnitude of a signal. An
// engine analyser tap satisfies it.
type PeakSource interface {
	Peak() float64
}

// Detector polls an upstream signal at a fixed short interval and calls
// trigger on rising and release on falling edges of the gate.
//
// The poll timer is decoupled from the render clock, so the alignment
// between a detected edge and the render-time sample where the ramp
// begins is approximate within one poll interval.
type Detector struct {
	src       PeakSource
	threshold float64
	interval  time.Duration
	rise      func()
	fall      func()

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	last    bool
	running bool
}

// DetectorOption configures a detector.
type DetectorOption func(*Detector)

// WithThreshold sets linear gate threshold. Default is 0.01.
func WithThreshold(v float64) DetectorOption {
	return func(d *Detector) {
		d.threshold = v
	}
}

// WithInterval sets poll interval. It must be an order of magnitude
// below the shortest expected gate pulse.
func WithInterval(v time.Duration) DetectorOption {
	return func(d *Detector) {
		if v > 0 {
			d.interval = v
		}
	}
}

// NewDetector returns a detector calling rise and fall on gate edges of
// the source signal.
func NewDetector(src PeakSource, rise, fall func(), options ...DetectorOption) *Detector {
	d := &Detector{
		src:       src,
		threshold: 0.01,
		interval:  DefaultPollInterval,
		rise:      rise,
		fall:      fall,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Start launches the polling loop. No-op if already running.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.poll(d.stop, d.done)
}

// Stop terminates the polling loop and waits for it to exit. Safe to
// call twice.
func (d *Detector) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stop, done := d.stop, d.done
	d.mu.Unlock()
	close(stop)
	<-done
}

func (d *Detector) poll(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.sample()
		}
	}
}

// sample reads the source once and fires edge callbacks. The gate state
// is updated unconditionally on every sample.
func (d *Detector) sample() {
	isHigh := d.src.Peak() > d.threshold
	if isHigh && !d.last {
		d.rise()
	} else if !isHigh && d.last {
		d.fall()
	}
	d.last = isHigh
}
