package unit

import (
	"sync"
	"time"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
	"pipelined.dev/patch/envelope"
)

// ADSR shapes the amplitude of its input with an attack-decay-sustain-
// release envelope. The envelope opens either imperatively through
// Trigger/Release or from a gate signal bound with SetGate: the gate
// edge detector polls the gate tap and drives the envelope.
//
// Parameters: attack, decay, sustain, release, level.
type ADSR struct {
	patch.Unit

	mu        sync.Mutex
	env       *envelope.Envelope
	det       *envelope.Detector
	threshold float64
	interval  time.Duration

	input *patch.Conn
	gate  *patch.Conn
}

// NewADSR returns an envelope unit.
func NewADSR() *ADSR {
	return &ADSR{
		Unit:      patch.NewUnit("adsr", patch.KindProcessor),
		threshold: 0.01,
		interval:  envelope.DefaultPollInterval,
	}
}

// SetGateThreshold sets the linear gate threshold. Effective at the next
// initialization.
func (a *ADSR) SetGateThreshold(v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.threshold = v
}

// SetGateInterval sets the gate poll interval. Effective at the next
// initialization.
func (a *ADSR) SetGateInterval(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interval = d
}

// Init allocates the envelope primitives and starts the gate detector.
func (a *ADSR) Init(e engine.Engine) error {
	ok, err := a.Begin(e)
	if !ok {
		return err
	}
	in := e.Gain()
	vca := e.Gain()
	out := e.Gain()
	tap := e.Analyser()
	a.Own(in, vca, out, tap)
	if err := a.Link(in, vca); err != nil {
		return a.Fail(err)
	}
	if err := a.Link(vca, out); err != nil {
		return a.Fail(err)
	}
	// the envelope owns the vca exclusively: closed until triggered.
	// User level automation goes to the separate output stage, so the
	// two writers never stomp each other's schedules.
	shape := automation.Wrap(e, vca.Level())
	shape.SetImmediate(0)

	a.mu.Lock()
	a.env = envelope.New(e, shape)
	a.det = envelope.NewDetector(tap, a.env.Trigger, a.env.Release,
		envelope.WithThreshold(a.threshold),
		envelope.WithInterval(a.interval),
	)
	a.det.Start()
	a.input = patch.NewConn(in)
	a.gate = patch.NewConn(tap)
	a.mu.Unlock()

	a.Expose("level", automation.Wrap(e, out.Level()))
	a.Commit(out, out)
	return nil
}

// SetInput routes an upstream outlet into the envelope input. Nil
// disconnects.
func (a *ADSR) SetInput(o *patch.Outlet) {
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

// SetGate routes an upstream outlet into the gate tap. Nil disconnects.
func (a *ADSR) SetGate(o *patch.Outlet) {
	a.mu.Lock()
	conn := a.gate
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

// Trigger opens the envelope. No-op while the gate is already open or
// the unit is not live.
func (a *ADSR) Trigger() {
	a.mu.Lock()
	env := a.env
	a.mu.Unlock()
	if env != nil {
		env.Trigger()
	}
}

// Release closes the envelope. No-op if not open.
func (a *ADSR) Release() {
	a.mu.Lock()
	env := a.env
	a.mu.Unlock()
	if env != nil {
		env.Release()
	}
}

// Phase returns the current envelope stage.
func (a *ADSR) Phase() envelope.Phase {
	a.mu.Lock()
	env := a.env
	a.mu.Unlock()
	if env == nil {
		return envelope.Idle
	}
	return env.Phase()
}

// Set routes envelope stage parameters along the regular param surface.
func (a *ADSR) Set(name string, value float64) error {
	a.mu.Lock()
	env := a.env
	a.mu.Unlock()
	switch name {
	case "attack", "decay", "sustain", "release":
		if env == nil {
			return patch.ErrNotLive
		}
		switch name {
		case "attack":
			env.SetAttack(value)
		case "decay":
			env.SetDecay(value)
		case "sustain":
			env.SetSustain(value)
		case "release":
			env.SetRelease(value)
		}
		a.Changed(name, value)
		return nil
	}
	return a.Unit.Set(name, value)
}

// Value returns effective value of the named parameter.
func (a *ADSR) Value(name string) (float64, bool) {
	a.mu.Lock()
	env := a.env
	a.mu.Unlock()
	if env != nil {
		switch name {
		case "attack":
			return env.Attack(), true
		case "decay":
			return env.Decay(), true
		case "sustain":
			return env.Sustain(), true
		case "release":
			return env.ReleaseTime(), true
		}
	}
	return a.Unit.Value(name)
}

// ParamNames returns the full parameter surface including envelope
// stages.
func (a *ADSR) ParamNames() []string {
	names := []string{"attack", "decay", "release", "sustain"}
	return append(names, a.Unit.ParamNames()...)
}

// Teardown stops the gate detector and releases the primitives.
func (a *ADSR) Teardown() {
	a.mu.Lock()
	det := a.det
	input, gate := a.input, a.gate
	a.det = nil
	a.env = nil
	a.input = nil
	a.gate = nil
	a.mu.Unlock()
	if det != nil {
		det.Stop()
	}
	if input != nil {
		input.Close()
	}
	if gate != nil {
		gate.Close()
	}
	a.Unit.Teardown()
}
