package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/dsp"
	"pipelined.dev/patch/engine"
)

// Noise gate defaults.
const (
	defaultGateThresholdDB = -40.0
	defaultGateAttack      = 0.003
	defaultGateRelease     = 0.05
)

// NoiseGate passes the signal only while its tracked amplitude is above
// the threshold. The envelope follower runs in the render callback;
// threshold and time constants reach it through single-writer cells.
//
// Parameters: level. Virtual parameters: threshold (dB), attack (s),
// release (s).
type NoiseGate struct {
	patch.Unit

	mu          sync.Mutex
	thresholdDB *dsp.Cell
	attack      *dsp.Cell
	release     *dsp.Cell
	input       *patch.Conn
}

// NewNoiseGate returns a noise gate processor.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{
		Unit:        patch.NewUnit("gate", patch.KindProcessor),
		thresholdDB: dsp.NewCell(defaultGateThresholdDB),
		attack:      dsp.NewCell(defaultGateAttack),
		release:     dsp.NewCell(defaultGateRelease),
	}
}

// Init allocates the gate primitives.
func (g *NoiseGate) Init(e engine.Engine) error {
	ok, err := g.Begin(e)
	if !ok {
		return err
	}
	sr := float64(e.SampleRate())
	var fol dsp.Follower
	gate := e.Scripted(func(in, out []float64) {
		// coefficients are cheap to rebuild once per block
		fol.AttackCoeff = dsp.Coeff(g.attack.Load(), sr)
		fol.ReleaseCoeff = dsp.Coeff(g.release.Load(), sr)
		open := dsp.DBToGain(g.thresholdDB.Load())
		for i := range out {
			if fol.Next(in[i]) > open {
				out[i] = in[i]
			} else {
				out[i] = 0
			}
		}
	})
	out := e.Gain()
	g.Own(gate, out)
	if err := g.Link(gate, out); err != nil {
		return g.Fail(err)
	}
	g.mu.Lock()
	g.input = patch.NewConn(gate)
	g.mu.Unlock()
	g.Expose("level", automation.Wrap(e, out.Level()))
	g.Commit(gate, out)
	return nil
}

// Set routes the virtual gate parameters.
func (g *NoiseGate) Set(name string, value float64) error {
	switch name {
	case "threshold":
		g.thresholdDB.Store(value)
	case "attack":
		g.attack.Store(clampTime(value))
	case "release":
		g.release.Store(clampTime(value))
	default:
		return g.Unit.Set(name, value)
	}
	g.Changed(name, value)
	return nil
}

// Value returns effective value of the named parameter.
func (g *NoiseGate) Value(name string) (float64, bool) {
	switch name {
	case "threshold":
		return g.thresholdDB.Load(), true
	case "attack":
		return g.attack.Load(), true
	case "release":
		return g.release.Load(), true
	}
	return g.Unit.Value(name)
}

// ParamNames returns the full parameter surface.
func (g *NoiseGate) ParamNames() []string {
	return append([]string{"attack", "release", "threshold"}, g.Unit.ParamNames()...)
}

// SetInput routes an upstream outlet into the gate. Nil disconnects.
func (g *NoiseGate) SetInput(o *patch.Outlet) {
	g.mu.Lock()
	conn := g.input
	g.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Teardown releases the gate primitives.
func (g *NoiseGate) Teardown() {
	g.mu.Lock()
	conn := g.input
	g.input = nil
	g.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	g.Unit.Teardown()
}

func clampTime(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
