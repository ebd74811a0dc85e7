// Package dsp holds the hand-rolled per-sample algorithms which run
// inside a custom render callback instead of a native primitive: the
// distortion transfer curve, the bit/sample-rate reducer, pink-noise
// synthesis and the envelope follower.
//
// State here lives on the render goroutine. Control values reach it
// through single-writer Cells read each block without locking.
package dsp

import (
	"math"
)

// DistortionCurve precomputes a transfer lookup table of provided size.
// Entry i maps input level x = 2i/size - 1 through
//
//	y = (3+k) * x * (20*π/180) / (π + k*|x|)
//
// where k is the distortion amount. The table is immutable once built:
// amount changes swap a freshly generated table wholesale.
func DistortionCurve(amount float64, size int) []float64 {
	if amount < 0 {
		amount = 0
	}
	if size < 2 {
		size = 2
	}
	deg := 20 * math.Pi / 180
	curve := make([]float64, size)
	for i := range curve {
		x := 2*float64(i)/float64(size) - 1
		curve[i] = (3 + amount) * x * deg / (math.Pi + amount*math.Abs(x))
	}
	return curve
}

// Shape maps a sample in [-1, 1] through the curve.
func Shape(curve []float64, x float64) float64 {
	if x < -1 {
		x = -1
	}
	if x > 1 {
		x = 1
	}
	i := int((x + 1) / 2 * float64(len(curve)-1))
	return curve[i]
}

// Reducer is a bit-depth and sample-rate reducer. It quantizes every
// factor-th input sample to the bit-depth grid and holds it in between.
type Reducer struct {
	counter uint64
	held    float64
}

// Next processes one sample. factor is floored to an integer not less
// than 1 before use.
func (r *Reducer) Next(sample float64, bits int, factor int) float64 {
	if factor < 1 {
		factor = 1
	}
	if r.counter%uint64(factor) == 0 {
		step := math.Pow(2, float64(bits)) - 1
		r.held = math.Round(sample*step) / step
	}
	// counter wraps around instead of overflowing
	r.counter++
	return r.held
}

// Reset returns the reducer to its initial state.
func (r *Reducer) Reset() {
	r.counter = 0
	r.held = 0
}

// pinkScale normalizes pink-noise loudness relative to white noise.
const pinkScale = 0.11

// Pink filters white noise into pink through a fixed 6-pole recursive
// bank, Voss-McCartney-style coefficients.
type Pink struct {
	b0, b1, b2, b3, b4, b5, b6 float64
}

// Next produces one pink sample from one white sample in [-1, 1].
func (p *Pink) Next(white float64) float64 {
	p.b0 = 0.99886*p.b0 + white*0.0555179
	p.b1 = 0.99332*p.b1 + white*0.0750759
	p.b2 = 0.96900*p.b2 + white*0.1538520
	p.b3 = 0.86650*p.b3 + white*0.3104856
	p.b4 = 0.55000*p.b4 + white*0.5329522
	p.b5 = -0.7616*p.b5 - white*0.0168980
	pink := (p.b0 + p.b1 + p.b2 + p.b3 + p.b4 + p.b5 + p.b6 + white*0.5362) * pinkScale
	p.b6 = white * 0.115926
	return pink
}

// Coeff derives a one-pole smoothing coefficient from a time constant in
// seconds at the provided sample rate.
func Coeff(timeConstant, sampleRate float64) float64 {
	if timeConstant <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (timeConstant * sampleRate))
}

// Follower tracks signal amplitude with separate attack and release
// smoothing.
type Follower struct {
	// AttackCoeff and ReleaseCoeff are one-pole coefficients, see Coeff.
	AttackCoeff  float64
	ReleaseCoeff float64

	envelope float64
}

// NewFollower returns a follower with attack and release time constants
// in seconds.
func NewFollower(attack, release, sampleRate float64) *Follower {
	return &Follower{
		AttackCoeff:  Coeff(attack, sampleRate),
		ReleaseCoeff: Coeff(release, sampleRate),
	}
}

// Next advances the follower by one sample and returns the envelope.
func (f *Follower) Next(sample float64) float64 {
	level := math.Abs(sample)
	if level > f.envelope {
		f.envelope = f.AttackCoeff*f.envelope + (1-f.AttackCoeff)*level
	} else {
		f.envelope = f.ReleaseCoeff*f.envelope + (1-f.ReleaseCoeff)*level
	}
	return f.envelope
}

// Envelope returns the current envelope value.
func (f *Follower) Envelope() float64 {
	return f.envelope
}

// DBToGain converts decibels to a linear gain factor.
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}
