// Package engine defines the rendering capability required by patch units.
//
// The engine is an external collaborator: it owns the render clock, the
// primitive kinds and the connections between their ports. Units never
// depend on a concrete engine, only on the interfaces below. Package
// engine/memory provides an in-process implementation used by tests and
// offline rendering.
package engine

type (
	// Engine creates primitives and provides the render clock.
	Engine interface {
		// SampleRate returns the rate the engine renders at.
		SampleRate() int
		// Now returns current render time in seconds. Scheduled
		// automation is expressed against this clock.
		Now() float64

		Oscillator() Oscillator
		Gain() Gain
		Filter() Filter
		// Delay creates a delay line with fixed maximum delay in seconds.
		Delay(maxDelay float64) Delay
		// Scripted creates a primitive which renders blocks through the
		// provided callback. The callback runs on the render goroutine.
		Scripted(fn ProcessFunc) Node
		Analyser() Analyser
		// Capture acquires an external input device. Acquisition may be
		// denied, in which case an error is returned and no primitive is
		// allocated.
		Capture() (Node, error)
		// Destination is the terminal mixing point of the graph.
		Destination() Node
	}

	// Node is a single primitive with one output port and zero or more
	// input ports.
	Node interface {
		// ID returns stable identity of the primitive. It never changes
		// during the primitive's life and is never reused.
		ID() string
		// Connect wires this node's output into dst's input.
		Connect(dst Node) error
		// Disconnect severs the edge to dst. Disconnecting an edge that
		// does not exist is not an error.
		Disconnect(dst Node)
		// ConnectParam wires this node's output as a modulation source
		// summed into dst's value.
		ConnectParam(dst Param) error
		// DisconnectParam severs a modulation edge. Best-effort.
		DisconnectParam(dst Param)
	}

	// Param is a schedulable control value of a primitive.
	Param interface {
		// Value returns the value in effect at the current render time.
		Value() float64
		// Set schedules an immediate change, effective at the next quantum.
		Set(v float64)
		// SetAt schedules a stepped change at time t.
		SetAt(v, t float64)
		// RampTo schedules a linear ramp from the previous scheduled
		// point to v, completing at time t.
		RampTo(v, t float64)
		// Cancel removes scheduled changes at and after time t.
		Cancel(t float64)
	}

	// ProcessFunc renders a block of samples. in holds the summed input
	// block, out must be filled completely. Both have equal length.
	ProcessFunc func(in, out []float64)

	// Oscillator is a periodic signal generator.
	Oscillator interface {
		Node
		Frequency() Param
		Detune() Param
		SetWave(Wave)
	}

	// Gain scales the signal passing through it.
	Gain interface {
		Node
		Level() Param
	}

	// Filter is a second-order frequency filter.
	Filter interface {
		Node
		Cutoff() Param
		Resonance() Param
		SetShape(Shape)
	}

	// Delay holds the signal back by Time seconds.
	Delay interface {
		Node
		Time() Param
	}

	// Analyser is a read-only tap. It passes signal through unchanged
	// and exposes the last rendered block for inspection. Peak and
	// Samples are safe to call concurrently with rendering.
	Analyser interface {
		Node
		// Peak returns the maximum absolute sample value of the last
		// rendered block.
		Peak() float64
		// Samples copies the last rendered block into dst and returns
		// the number of samples copied.
		Samples(dst []float64) int
	}
)

// Wave identifies oscillator waveform.
type Wave int

// Oscillator waveforms.
const (
	Sine Wave = iota
	Square
	Sawtooth
	Triangle
)

// Shape identifies filter frequency response.
type Shape int

// Filter shapes.
const (
	Lowpass Shape = iota
	Highpass
	Bandpass
	Notch
)
