// Package unit provides the concrete processing units of the patch:
// generators, modulators, processors and mixers. All of them embed
// patch.Unit and share its lifecycle and parameter surface.
package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
)

// Oscillator is a periodic signal generator.
//
// Parameters: frequency (Hz), detune (cents), level.
type Oscillator struct {
	patch.Unit

	mu   sync.Mutex
	wave engine.Wave
	osc  engine.Oscillator
}

// NewOscillator returns an oscillator generator.
func NewOscillator() *Oscillator {
	return &Oscillator{
		Unit: patch.NewUnit("oscillator", patch.KindGenerator),
	}
}

// Init allocates the oscillator primitives.
func (o *Oscillator) Init(e engine.Engine) error {
	ok, err := o.Begin(e)
	if !ok {
		return err
	}
	osc := e.Oscillator()
	out := e.Gain()
	o.Own(osc, out)
	if err := o.Link(osc, out); err != nil {
		return o.Fail(err)
	}
	o.mu.Lock()
	o.osc = osc
	osc.SetWave(o.wave)
	o.mu.Unlock()
	o.Expose("frequency", automation.Wrap(e, osc.Frequency()))
	o.Expose("detune", automation.Wrap(e, osc.Detune()))
	o.Expose("level", automation.Wrap(e, out.Level()))
	o.Commit(osc, out)
	return nil
}

// SetWave sets the waveform, effective immediately when live.
func (o *Oscillator) SetWave(w engine.Wave) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.wave = w
	if o.osc != nil {
		o.osc.SetWave(w)
	}
}

// Teardown releases the oscillator primitives.
func (o *Oscillator) Teardown() {
	o.mu.Lock()
	o.osc = nil
	o.mu.Unlock()
	o.Unit.Teardown()
}

// LFO is a low-frequency modulation source. Its outlet is routed into
// params of other units through patch.ParamConn.
//
// Parameters: rate (Hz), depth.
type LFO struct {
	patch.Unit

	mu   sync.Mutex
	wave engine.Wave
	osc  engine.Oscillator
}

// defaultLFORate is well below the audible range.
const defaultLFORate = 2.0

// NewLFO returns a low-frequency modulator.
func NewLFO() *LFO {
	return &LFO{
		Unit: patch.NewUnit("lfo", patch.KindModulator),
	}
}

// Init allocates the modulator primitives.
func (l *LFO) Init(e engine.Engine) error {
	ok, err := l.Begin(e)
	if !ok {
		return err
	}
	osc := e.Oscillator()
	depth := e.Gain()
	l.Own(osc, depth)
	if err := l.Link(osc, depth); err != nil {
		return l.Fail(err)
	}
	osc.Frequency().Set(defaultLFORate)
	l.mu.Lock()
	l.osc = osc
	osc.SetWave(l.wave)
	l.mu.Unlock()
	l.Expose("rate", automation.Wrap(e, osc.Frequency()))
	l.Expose("depth", automation.Wrap(e, depth.Level()))
	l.Commit(osc, depth)
	return nil
}

// SetWave sets the modulation waveform.
func (l *LFO) SetWave(w engine.Wave) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wave = w
	if l.osc != nil {
		l.osc.SetWave(w)
	}
}

// Teardown releases the modulator primitives.
func (l *LFO) Teardown() {
	l.mu.Lock()
	l.osc = nil
	l.mu.Unlock()
	l.Unit.Teardown()
}
