package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/dsp"
	"pipelined.dev/patch/engine"
)

// Bitcrusher quantization limits.
const (
	minBits = 1
	maxBits = 24

	defaultBits      = 8
	defaultReduction = 1
)

// Bitcrusher reduces bit depth and sample rate of the signal. Controls
// reach the render callback through single-writer cells; values out of
// range are clamped at the point of use.
//
// Parameters: level. Virtual parameters: bits, factor.
type Bitcrusher struct {
	patch.Unit

	mu     sync.Mutex
	bits   *dsp.Cell
	factor *dsp.Cell
	input  *patch.Conn
}

// NewBitcrusher returns a bitcrusher processor.
func NewBitcrusher() *Bitcrusher {
	return &Bitcrusher{
		Unit:   patch.NewUnit("bitcrusher", patch.KindProcessor),
		bits:   dsp.NewCell(defaultBits),
		factor: dsp.NewCell(defaultReduction),
	}
}

// Init allocates the bitcrusher primitives.
func (b *Bitcrusher) Init(e engine.Engine) error {
	ok, err := b.Begin(e)
	if !ok {
		return err
	}
	var red dsp.Reducer
	crusher := e.Scripted(func(in, out []float64) {
		bits := int(b.bits.Load())
		factor := int(b.factor.Load())
		for i := range out {
			out[i] = red.Next(in[i], bits, factor)
		}
	})
	out := e.Gain()
	b.Own(crusher, out)
	if err := b.Link(crusher, out); err != nil {
		return b.Fail(err)
	}
	b.mu.Lock()
	b.input = patch.NewConn(crusher)
	b.mu.Unlock()
	b.Expose("level", automation.Wrap(e, out.Level()))
	b.Commit(crusher, out)
	return nil
}

// SetBits sets quantization depth, clamped into [1, 24].
func (b *Bitcrusher) SetBits(bits float64) {
	if bits < minBits {
		bits = minBits
	}
	if bits > maxBits {
		bits = maxBits
	}
	b.bits.Store(bits)
	b.Changed("bits", bits)
}

// SetFactor sets the sample-rate reduction factor. Values below 1 are
// clamped at the point of use.
func (b *Bitcrusher) SetFactor(factor float64) {
	b.factor.Store(factor)
	b.Changed("factor", factor)
}

// Set routes the virtual bits and factor parameters.
func (b *Bitcrusher) Set(name string, value float64) error {
	switch name {
	case "bits":
		b.SetBits(value)
		return nil
	case "factor":
		b.SetFactor(value)
		return nil
	}
	return b.Unit.Set(name, value)
}

// Value returns effective value of the named parameter.
func (b *Bitcrusher) Value(name string) (float64, bool) {
	switch name {
	case "bits":
		return b.bits.Load(), true
	case "factor":
		return b.factor.Load(), true
	}
	return b.Unit.Value(name)
}

// ParamNames returns the full parameter surface.
func (b *Bitcrusher) ParamNames() []string {
	return append([]string{"bits", "factor"}, b.Unit.ParamNames()...)
}

// SetInput routes an upstream outlet into the crusher. Nil disconnects.
func (b *Bitcrusher) SetInput(o *patch.Outlet) {
	b.mu.Lock()
	conn := b.input
	b.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Teardown releases the bitcrusher primitives.
func (b *Bitcrusher) Teardown() {
	b.mu.Lock()
	conn := b.input
	b.input = nil
	b.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	b.Unit.Teardown()
}
