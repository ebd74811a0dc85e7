package unit

import (
	"math/rand"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/dsp"
	"pipelined.dev/patch/engine"
)

// Color identifies noise spectrum.
type Color int

// Noise colors.
const (
	White Color = iota
	Pink
)

// Noise is a noise generator. Pink noise is synthesized from the white
// source through a fixed recursive filter bank.
//
// Parameters: level.
type Noise struct {
	patch.Unit

	color *dsp.Cell
}

// NewNoise returns a noise generator of provided color.
func NewNoise(color Color) *Noise {
	return &Noise{
		Unit:  patch.NewUnit("noise", patch.KindGenerator),
		color: dsp.NewCell(float64(color)),
	}
}

// Init allocates the generator primitives.
func (n *Noise) Init(e engine.Engine) error {
	ok, err := n.Begin(e)
	if !ok {
		return err
	}
	// renderer state lives in the callback closure
	rnd := rand.New(rand.NewSource(rand.Int63()))
	var pink dsp.Pink
	src := e.Scripted(func(in, out []float64) {
		pinked := Color(n.color.Load()) == Pink
		for i := range out {
			white := rnd.Float64()*2 - 1
			if pinked {
				out[i] = pink.Next(white)
			} else {
				out[i] = white
			}
		}
	})
	out := e.Gain()
	n.Own(src, out)
	if err := n.Link(src, out); err != nil {
		return n.Fail(err)
	}
	n.Expose("level", automation.Wrap(e, out.Level()))
	n.Commit(src, out)
	return nil
}

// SetColor switches noise spectrum, effective at the next block.
func (n *Noise) SetColor(c Color) {
	n.color.Store(float64(c))
}

// GetColor returns current noise spectrum.
func (n *Noise) GetColor() Color {
	return Color(n.color.Load())
}
