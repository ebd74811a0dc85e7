package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/dsp"
	"pipelined.dev/patch/engine"
)

// Auto-filter defaults.
const (
	defaultAFBase        = 200.0
	defaultAFMax         = 4000.0
	defaultAFSensitivity = 1.0
	afFollowerAttack     = 0.01
	afFollowerRelease    = 0.1
)

// AutoFilter sweeps a filter cutoff with the tracked amplitude of its
// input. The follower runs in the render callback ahead of the filter
// and schedules the cutoff once per block: envelope maps linearly into
// [base, max] scaled by sensitivity and clamped into the same range.
//
// Parameters: resonance, level. Virtual parameters: base, max,
// sensitivity.
type AutoFilter struct {
	patch.Unit

	mu          sync.Mutex
	base        *dsp.Cell
	max         *dsp.Cell
	sensitivity *dsp.Cell
	input       *patch.Conn
}

// NewAutoFilter returns an envelope-following filter processor.
func NewAutoFilter() *AutoFilter {
	return &AutoFilter{
		Unit:        patch.NewUnit("autofilter", patch.KindProcessor),
		base:        dsp.NewCell(defaultAFBase),
		max:         dsp.NewCell(defaultAFMax),
		sensitivity: dsp.NewCell(defaultAFSensitivity),
	}
}

// Init allocates the follower and filter primitives.
func (a *AutoFilter) Init(e engine.Engine) error {
	ok, err := a.Begin(e)
	if !ok {
		return err
	}
	flt := e.Filter()
	cutoff := flt.Cutoff()
	fol := dsp.NewFollower(afFollowerAttack, afFollowerRelease, float64(e.SampleRate()))
	tracker := e.Scripted(func(in, out []float64) {
		var env float64
		for i := range out {
			env = fol.Next(in[i])
			out[i] = in[i]
		}
		base, max := a.base.Load(), a.max.Load()
		freq := base + env*a.sensitivity.Load()*(max-base)
		if freq < base {
			freq = base
		}
		if freq > max {
			freq = max
		}
		cutoff.Set(freq)
	})
	out := e.Gain()
	a.Own(tracker, flt, out)
	if err := a.Link(tracker, flt); err != nil {
		return a.Fail(err)
	}
	if err := a.Link(flt, out); err != nil {
		return a.Fail(err)
	}
	a.mu.Lock()
	a.input = patch.NewConn(tracker)
	a.mu.Unlock()
	a.Expose("resonance", automation.Wrap(e, flt.Resonance()))
	a.Expose("level", automation.Wrap(e, out.Level()))
	a.Commit(flt, out)
	return nil
}

// Set routes the virtual sweep range parameters.
func (a *AutoFilter) Set(name string, value float64) error {
	switch name {
	case "base":
		a.base.Store(value)
	case "max":
		a.max.Store(value)
	case "sensitivity":
		a.sensitivity.Store(value)
	default:
		return a.Unit.Set(name, value)
	}
	a.Changed(name, value)
	return nil
}

// Value returns effective value of the named parameter.
func (a *AutoFilter) Value(name string) (float64, bool) {
	switch name {
	case "base":
		return a.base.Load(), true
	case "max":
		return a.max.Load(), true
	case "sensitivity":
		return a.sensitivity.Load(), true
	}
	return a.Unit.Value(name)
}

// ParamNames returns the full parameter surface.
func (a *AutoFilter) ParamNames() []string {
	return append([]string{"base", "max", "sensitivity"}, a.Unit.ParamNames()...)
}

// SetInput routes an upstream outlet into the tracker. Nil disconnects.
func (a *AutoFilter) SetInput(o *patch.Outlet) {
	a.mu.Lock()
	conn := a.input
	a.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Teardown releases the auto-filter primitives.
func (a *AutoFilter) Teardown() {
	a.mu.Lock()
	conn := a.input
	a.input = nil
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	a.Unit.Teardown()
}
