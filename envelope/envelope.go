// Package envelope implements the attack-decay-sustain-release control
// state machine and the gate edge detector which drives it from an
// upstream signal.
package envelope

import (
	"sync"

	"pipelined.dev/patch/automation"
)

// Phase identifies envelope stage.
type Phase int

// Envelope phases.
const (
	Idle Phase = iota
	Attacking
	Decaying
	Sustaining
	Releasing
)

// String returns phase name.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Attacking:
		return "attacking"
	case Decaying:
		return "decaying"
	case Sustaining:
		return "sustaining"
	case Releasing:
		return "releasing"
	}
	return "unknown"
}

// Default stage values.
const (
	DefaultAttack  = 0.01
	DefaultDecay   = 0.1
	DefaultSustain = 0.7
	DefaultRelease = 0.3

	peak = 1.0
)

// Envelope drives a target automation param through attack, decay,
// sustain and release ramps. Ramps are fire-and-forget: the audible
// value follows scheduled automation while the phase is derived from the
// render clock, so no completion callbacks are required.
//
// Stage durations changed mid-envelope apply to the next trigger or
// release only; they never reshape an in-flight ramp.
type Envelope struct {
	clock  automation.Clock
	target *automation.Param

	mu      sync.Mutex
	attack  float64
	decay   float64
	sustain float64
	release float64

	open        bool
	triggered   bool
	triggeredAt float64
	releasedAt  float64
	// stage snapshot of the in-flight gesture
	runAttack  float64
	runDecay   float64
	runRelease float64
}

// New returns an envelope scheduling on target against the clock.
func New(clock automation.Clock, target *automation.Param) *Envelope {
	return &Envelope{
		clock:   clock,
		target:  target,
		attack:  DefaultAttack,
		decay:   DefaultDecay,
		sustain: DefaultSustain,
		release: DefaultRelease,
	}
}

// Trigger opens the envelope: anchor at the current value, ramp to peak
// over the attack duration, then to the sustain level over the decay
// duration. Both ramps are scheduled atomically at trigger time.
//
// An already-open gate is not re-triggered: calling Trigger in any phase
// except Idle is a no-op, so overlapping gate pulses cannot restart an
// in-flight ramp.
func (e *Envelope) Trigger() {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	if e.phaseAt(now) != Idle {
		return
	}
	e.open = true
	e.triggered = true
	e.triggeredAt = now
	e.runAttack = e.attack
	e.runDecay = e.decay

	e.target.Anchor(now)
	e.target.RampToAt(peak, now+e.runAttack)
	e.target.RampToAt(e.sustain, now+e.runAttack+e.runDecay)
}

// Release closes the envelope: anchor at the current value and ramp to
// zero over the release duration. No-op if the envelope is not open. The
// phase flag flips synchronously, the audible ramp finishes on its own.
func (e *Envelope) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.open {
		return
	}
	now := e.clock.Now()
	e.open = false
	e.releasedAt = now
	e.runRelease = e.release

	e.target.Anchor(now)
	e.target.RampToAt(0, now+e.runRelease)
}

// Phase returns the stage the envelope is in at the current render time.
func (e *Envelope) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phaseAt(e.clock.Now())
}

// phaseAt derives the stage from the clock and the last gesture. Lock
// must be held.
func (e *Envelope) phaseAt(now float64) Phase {
	if !e.triggered {
		return Idle
	}
	if e.open {
		dt := now - e.triggeredAt
		switch {
		case dt < e.runAttack:
			return Attacking
		case dt < e.runAttack+e.runDecay:
			return Decaying
		default:
			return Sustaining
		}
	}
	if now < e.releasedAt+e.runRelease {
		return Releasing
	}
	return Idle
}

// Value returns the scheduled control value currently in effect.
func (e *Envelope) Value() float64 {
	return e.target.Value()
}

// SetAttack sets attack duration in seconds for the next trigger.
func (e *Envelope) SetAttack(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attack = clamp(v)
}

// SetDecay sets decay duration in seconds for the next trigger.
func (e *Envelope) SetDecay(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decay = clamp(v)
}

// SetSustain sets sustain level for the next trigger.
func (e *Envelope) SetSustain(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > peak {
		v = peak
	}
	e.sustain = v
}

// SetRelease sets release duration in seconds for the next release.
func (e *Envelope) SetRelease(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.release = clamp(v)
}

// Attack returns configured attack duration.
func (e *Envelope) Attack() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attack
}

// Decay returns configured decay duration.
func (e *Envelope) Decay() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decay
}

// Sustain returns configured sustain level.
func (e *Envelope) Sustain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sustain
}

// Release duration currently configured.
func (e *Envelope) ReleaseTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.release
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
