package memory

import (
	"math"
	"sync"

	"pipelined.dev/patch/engine"
)

type (
	// oscNode generates a periodic waveform.
	oscNode struct {
		*node
		frequency *param
		detune    *param
		wave      engine.Wave
		phase     float64

		freqBuf, detBuf []float64
	}

	// gainNode scales the signal.
	gainNode struct {
		*node
		level    *param
		levelBuf []float64
	}

	// filterNode is a biquad with per-block coefficient update.
	filterNode struct {
		*node
		cutoff    *param
		resonance *param
		shape     engine.Shape

		b0, b1, b2, a1, a2 float64
		x1, x2, y1, y2     float64
	}

	// delayNode is a ring-buffer delay line.
	delayNode struct {
		*node
		time  *param
		ring  []float64
		write int
	}

	// scriptNode renders through a custom callback.
	scriptNode struct {
		*node
		fn engine.ProcessFunc
	}

	// analyserNode passes signal through and keeps the last block.
	analyserNode struct {
		*node
		mu   sync.Mutex
		last []float64
		peak float64
	}

	// captureNode reads from the engine's input device source.
	captureNode struct {
		*node
		src func(out []float64)
	}

	// destNode is the terminal mix point.
	destNode struct {
		*node
	}
)

// Frequency is oscillator frequency in Hz.
func (n *oscNode) Frequency() engine.Param { return n.frequency }

// Detune is oscillator detune in cents.
func (n *oscNode) Detune() engine.Param { return n.detune }

// SetWave sets the waveform. Takes effect at the next block.
func (n *oscNode) SetWave(w engine.Wave) {
	n.eng.mu.Lock()
	n.wave = w
	n.eng.mu.Unlock()
}

func (n *oscNode) process(in, out []float64, start int64) {
	n.frequency.values(n.freqBuf, start)
	n.detune.values(n.detBuf, start)
	sr := float64(n.eng.sampleRate)
	for i := range out {
		f := n.freqBuf[i] * math.Pow(2, n.detBuf[i]/1200)
		n.phase += f / sr
		n.phase -= math.Floor(n.phase)
		out[i] = waveform(n.wave, n.phase)
	}
}

func waveform(w engine.Wave, phase float64) float64 {
	switch w {
	case engine.Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case engine.Sawtooth:
		return 2*phase - 1
	case engine.Triangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// Level is the gain multiplier.
func (n *gainNode) Level() engine.Param { return n.level }

func (n *gainNode) process(in, out []float64, start int64) {
	n.level.values(n.levelBuf, start)
	for i := range out {
		out[i] = in[i] * n.levelBuf[i]
	}
}

// Cutoff is filter frequency in Hz.
func (n *filterNode) Cutoff() engine.Param { return n.cutoff }

// Resonance is filter quality factor.
func (n *filterNode) Resonance() engine.Param { return n.resonance }

// SetShape sets the frequency response. Takes effect at the next block.
func (n *filterNode) SetShape(s engine.Shape) {
	n.eng.mu.Lock()
	n.shape = s
	n.eng.mu.Unlock()
}

func (n *filterNode) process(in, out []float64, start int64) {
	n.coefficients(n.cutoff.at(start), n.resonance.at(start))
	for i := range out {
		x := in[i]
		y := n.b0*x + n.b1*n.x1 + n.b2*n.x2 - n.a1*n.y1 - n.a2*n.y2
		n.x2, n.x1 = n.x1, x
		n.y2, n.y1 = n.y1, y
		out[i] = y
	}
}

// coefficients updates the biquad for provided cutoff and quality
// factor. Cutoff is clamped below Nyquist to keep the filter stable.
func (n *filterNode) coefficients(freq, q float64) {
	sr := float64(n.eng.sampleRate)
	if max := sr * 0.45; freq > max {
		freq = max
	}
	if freq < 1 {
		freq = 1
	}
	if q < 0.001 {
		q = 0.001
	}
	w0 := 2 * math.Pi * freq / sr
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	var b0, b1, b2, a0, a1, a2 float64
	switch n.shape {
	case engine.Highpass:
		b0 = (1 + cosw0) / 2
		b1 = -(1 + cosw0)
		b2 = (1 + cosw0) / 2
	case engine.Bandpass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
	case engine.Notch:
		b0 = 1
		b1 = -2 * cosw0
		b2 = 1
	default: // lowpass
		b0 = (1 - cosw0) / 2
		b1 = 1 - cosw0
		b2 = (1 - cosw0) / 2
	}
	a0 = 1 + alpha
	a1 = -2 * cosw0
	a2 = 1 - alpha

	n.b0 = b0 / a0
	n.b1 = b1 / a0
	n.b2 = b2 / a0
	n.a1 = a1 / a0
	n.a2 = a2 / a0
}

// Time is delay in seconds.
func (n *delayNode) Time() engine.Param { return n.time }

func (n *delayNode) process(in, out []float64, start int64) {
	offset := int(n.time.at(start) * float64(n.eng.sampleRate))
	if offset < 0 {
		offset = 0
	}
	if offset > len(n.ring)-1 {
		offset = len(n.ring) - 1
	}
	for i := range out {
		read := n.write - offset
		if read < 0 {
			read += len(n.ring)
		}
		out[i] = n.ring[read]
		n.ring[n.write] = in[i]
		n.write++
		if n.write == len(n.ring) {
			n.write = 0
		}
	}
}

func (n *scriptNode) process(in, out []float64, start int64) {
	n.fn(in, out)
}

// Peak returns the maximum absolute sample value of the last block.
func (n *analyserNode) Peak() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.peak
}

// Samples copies the last rendered block into dst.
func (n *analyserNode) Samples(dst []float64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return copy(dst, n.last)
}

func (n *analyserNode) process(in, out []float64, start int64) {
	copy(out, in)
	var peak float64
	for _, s := range in {
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	n.mu.Lock()
	copy(n.last, in)
	n.peak = peak
	n.mu.Unlock()
}

func (n *captureNode) process(in, out []float64, start int64) {
	n.src(out)
}

func (n *destNode) process(in, out []float64, start int64) {
	copy(out, in)
}
