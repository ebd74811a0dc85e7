// Package automation wraps engine params with the scheduling discipline
// control-rate code must follow: values are scheduled against the render
// clock, never written into per-sample state directly.
package automation

import (
	"pipelined.dev/patch/engine"
)

// Clock provides current render time in seconds. engine.Engine satisfies
// it.
type Clock interface {
	Now() float64
}

// Param wraps a single numeric control of a native primitive.
//
// A nil Param swallows every call: a unit holding a param of an already
// torn-down upstream keeps operating without errors.
type Param struct {
	clock Clock
	p     engine.Param
}

// Wrap returns param bound to the clock it schedules against.
func Wrap(clock Clock, p engine.Param) *Param {
	if clock == nil || p == nil {
		return nil
	}
	return &Param{clock: clock, p: p}
}

// Value returns the value in effect at the current render time.
func (p *Param) Value() float64 {
	if p == nil {
		return 0
	}
	return p.p.Value()
}

// SetImmediate schedules the value to take effect at the next quantum.
func (p *Param) SetImmediate(v float64) {
	if p == nil {
		return
	}
	p.p.SetAt(v, p.clock.Now())
}

// Ramp linearly interpolates to v over duration seconds starting now.
//
// Scheduled-but-not-reached automation is cancelled first and the ramp
// start is re-anchored to the value currently in effect. Without the
// anchor the interpolation would jump from a stale scheduled target
// instead of the audible current value.
func (p *Param) Ramp(v, duration float64) {
	if p == nil {
		return
	}
	p.RampAt(v, duration, p.clock.Now())
}

// RampAt is Ramp with explicit start time.
func (p *Param) RampAt(v, duration, start float64) {
	if p == nil {
		return
	}
	p.Anchor(start)
	p.p.RampTo(v, start+duration)
}

// Anchor cancels automation scheduled from time t on and pins the value
// currently in effect as the starting point for consequent ramps.
func (p *Param) Anchor(t float64) {
	if p == nil {
		return
	}
	current := p.p.Value()
	p.p.Cancel(t)
	p.p.SetAt(current, t)
}

// RampToAt schedules a raw linear ramp completing at absolute time t,
// continuing from the previously scheduled point. Used to chain several
// stages atomically after a single Anchor.
func (p *Param) RampToAt(v, t float64) {
	if p == nil {
		return
	}
	p.p.RampTo(v, t)
}

// Raw returns the underlying engine param, the target for modulation
// edges. Nil for nil params.
func (p *Param) Raw() engine.Param {
	if p == nil {
		return nil
	}
	return p.p
}

// Now returns current render time of the underlying clock.
func (p *Param) Now() float64 {
	if p == nil {
		return 0
	}
	return p.clock.Now()
}
