package unit

import (
	"sync"
	"sync/atomic"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/dsp"
	"pipelined.dev/patch/engine"
)

// curveSize is the resolution of the distortion lookup table.
const curveSize = 8192

// Distortion shapes the signal through a precomputed transfer curve.
// Amount changes regenerate the table and swap it wholesale; the render
// callback always reads a complete table.
//
// Parameters: level. The virtual amount parameter controls curve
// nonlinearity.
type Distortion struct {
	patch.Unit

	mu     sync.Mutex
	amount float64
	table  atomic.Value // []float64
	input  *patch.Conn
}

// NewDistortion returns a distortion processor.
func NewDistortion() *Distortion {
	d := &Distortion{
		Unit: patch.NewUnit("distortion", patch.KindProcessor),
	}
	d.table.Store(dsp.DistortionCurve(0, curveSize))
	return d
}

// Init allocates the distortion primitives.
func (d *Distortion) Init(e engine.Engine) error {
	ok, err := d.Begin(e)
	if !ok {
		return err
	}
	shaper := e.Scripted(func(in, out []float64) {
		curve := d.table.Load().([]float64)
		for i := range out {
			out[i] = dsp.Shape(curve, in[i])
		}
	})
	out := e.Gain()
	d.Own(shaper, out)
	if err := d.Link(shaper, out); err != nil {
		return d.Fail(err)
	}
	d.mu.Lock()
	d.input = patch.NewConn(shaper)
	d.mu.Unlock()
	d.Expose("level", automation.Wrap(e, out.Level()))
	d.Commit(shaper, out)
	return nil
}

// SetAmount regenerates the transfer curve for provided amount. Negative
// amounts are clamped to zero.
func (d *Distortion) SetAmount(k float64) {
	if k < 0 {
		k = 0
	}
	d.mu.Lock()
	d.amount = k
	d.mu.Unlock()
	d.table.Store(dsp.DistortionCurve(k, curveSize))
	d.Changed("amount", k)
}

// Amount returns the current distortion amount.
func (d *Distortion) Amount() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.amount
}

// Set routes the virtual amount parameter.
func (d *Distortion) Set(name string, value float64) error {
	if name == "amount" {
		d.SetAmount(value)
		return nil
	}
	return d.Unit.Set(name, value)
}

// Value returns effective value of the named parameter.
func (d *Distortion) Value(name string) (float64, bool) {
	if name == "amount" {
		return d.Amount(), true
	}
	return d.Unit.Value(name)
}

// ParamNames returns the full parameter surface.
func (d *Distortion) ParamNames() []string {
	return append([]string{"amount"}, d.Unit.ParamNames()...)
}

// SetInput routes an upstream outlet into the shaper. Nil disconnects.
func (d *Distortion) SetInput(o *patch.Outlet) {
	d.mu.Lock()
	conn := d.input
	d.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Teardown releases the distortion primitives.
func (d *Distortion) Teardown() {
	d.mu.Lock()
	conn := d.input
	d.input = nil
	d.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	d.Unit.Teardown()
}
