// Package memory implements the engine capability in process.
//
// Rendering is pull-based: the destination node pulls one block at a time
// from its inputs. Primitives cache their output per block, so diamond
// topologies render each node once. The single sanctioned cycle
// (delay feedback) is resolved with one block of latency: a node pulled
// while it is already rendering returns its previous block.
package memory

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/patch/engine"
	"pipelined.dev/patch/log"
	"pipelined.dev/patch/mutable"
	"pipelined.dev/patch/signal"
)

// ErrNoCaptureDevice is returned by Capture when the engine has no input
// source configured.
var ErrNoCaptureDevice = errors.New("memory: no capture device available")

// errForeignNode is returned when connecting primitives of different engines.
var errForeignNode = errors.New("memory: node belongs to another engine")

type (
	// Engine renders a primitive graph in process.
	Engine struct {
		sampleRate int
		blockSize  int

		mu      sync.Mutex
		block   int64
		capture func(out []float64)
		taps    []*analyserNode
		rem     []float64 // undelivered tail of the last rendered block
		remBuf  []float64

		pmu     sync.Mutex
		pending mutable.Mutations

		frames int64 // atomic, delivered frames

		dest *destNode
		log  *logrus.Logger
	}

	// Option configures the engine.
	Option func(*Engine)
)

// WithLogger sets logger to engine. If this option is not provided,
// silent logger is used.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithCapture sets the input device source. Without this option Capture
// returns ErrNoCaptureDevice.
func WithCapture(fn func(out []float64)) Option {
	return func(e *Engine) {
		e.capture = fn
	}
}

// New returns a new engine rendering at provided sample rate with fixed
// block size.
func New(sampleRate, blockSize int, options ...Option) *Engine {
	e := &Engine{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		remBuf:     make([]float64, blockSize),
		log:        log.Silent(),
	}
	for _, option := range options {
		option(e)
	}
	e.dest = &destNode{node: e.newNode()}
	e.dest.proc = e.dest.process
	return e
}

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}

// SampleRate returns the rate the engine renders at.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// BlockSize returns the render quantum in samples.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// Now returns current render time in seconds.
func (e *Engine) Now() float64 {
	return float64(atomic.LoadInt64(&e.frames)) / float64(e.sampleRate)
}

// Push schedules mutations to be applied at the next block boundary.
// The pending set has its own lock, so Push never waits for an in-flight
// render.
func (e *Engine) Push(mutations ...mutable.Mutation) {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	for _, m := range mutations {
		e.pending = e.pending.Put(m)
	}
}

// Render pulls provided number of frames through the graph and returns
// them as a single-channel signal. Mutations pushed before a block are
// applied at its boundary.
//
// Frame counts do not have to align with the block size: the undelivered
// tail of the last block is kept and served first on the next call, so
// consecutive calls observe a gapless stream and Now reflects delivered
// frames only.
func (e *Engine) Render(frames int) signal.Float64 {
	out := make([]float64, 0, frames)
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(out) < frames {
		if len(e.rem) == 0 {
			block := e.renderBlock()
			e.rem = e.remBuf[:copy(e.remBuf, block)]
		}
		n := frames - len(out)
		if n > len(e.rem) {
			n = len(e.rem)
		}
		out = append(out, e.rem[:n]...)
		e.rem = e.rem[n:]
		atomic.AddInt64(&e.frames, int64(n))
	}
	return signal.Mono(out)
}

// renderBlock applies pending mutations and pulls one block from the
// destination, then every analyser tap: a tap renders a fresh block even
// when nothing downstream consumes its output, so detectors polling it
// observe the current signal. Engine lock must be held.
func (e *Engine) renderBlock() []float64 {
	e.pmu.Lock()
	pending := e.pending
	e.pending = nil
	e.pmu.Unlock()
	for ctx := range pending {
		if err := pending.ApplyTo(ctx); err != nil {
			e.log.Info("mutation failed: ", err)
		}
	}
	e.block++
	out := e.dest.pull(e.block)
	for _, tap := range e.taps {
		tap.pull(e.block)
	}
	return out
}

// Destination is the terminal mixing point of the graph.
func (e *Engine) Destination() engine.Node {
	return e.dest
}

// Oscillator creates a periodic generator primitive.
func (e *Engine) Oscillator() engine.Oscillator {
	n := &oscNode{
		node:      e.newNode(),
		frequency: newParam(e, defaultFrequency),
		detune:    newParam(e, 0),
		freqBuf:   make([]float64, e.blockSize),
		detBuf:    make([]float64, e.blockSize),
	}
	n.proc = n.process
	return n
}

// Gain creates a scaling primitive.
func (e *Engine) Gain() engine.Gain {
	n := &gainNode{
		node:     e.newNode(),
		level:    newParam(e, 1),
		levelBuf: make([]float64, e.blockSize),
	}
	n.proc = n.process
	return n
}

// Filter creates a second-order filter primitive.
func (e *Engine) Filter() engine.Filter {
	n := &filterNode{
		node:      e.newNode(),
		cutoff:    newParam(e, defaultCutoff),
		resonance: newParam(e, defaultResonance),
	}
	n.proc = n.process
	return n
}

// Delay creates a delay line primitive with fixed maximum delay.
func (e *Engine) Delay(maxDelay float64) engine.Delay {
	size := int(maxDelay * float64(e.sampleRate))
	if size < 1 {
		size = 1
	}
	n := &delayNode{
		node: e.newNode(),
		time: newParam(e, 0),
		ring: make([]float64, size),
	}
	n.proc = n.process
	return n
}

// Scripted creates a primitive which renders blocks through fn.
func (e *Engine) Scripted(fn engine.ProcessFunc) engine.Node {
	n := &scriptNode{node: e.newNode(), fn: fn}
	n.proc = n.process
	return n
}

// Analyser creates a read-only tap primitive. Taps are pulled on every
// block regardless of downstream connections.
func (e *Engine) Analyser() engine.Analyser {
	n := &analyserNode{
		node: e.newNode(),
		last: make([]float64, e.blockSize),
	}
	n.proc = n.process
	e.mu.Lock()
	e.taps = append(e.taps, n)
	e.mu.Unlock()
	return n
}

// Capture acquires the engine's input device. Returns
// ErrNoCaptureDevice when no source was configured.
func (e *Engine) Capture() (engine.Node, error) {
	if e.capture == nil {
		return nil, ErrNoCaptureDevice
	}
	n := &captureNode{node: e.newNode(), src: e.capture}
	n.proc = n.process
	return n, nil
}

// newNode allocates the shared node state with per-block buffers.
func (e *Engine) newNode() *node {
	return &node{
		id:    newUID(),
		eng:   e,
		out:   make([]float64, e.blockSize),
		prev:  make([]float64, e.blockSize),
		in:    make([]float64, e.blockSize),
		block: -1,
	}
}

type (
	// node holds state shared by all primitive kinds: identity, input
	// edges and per-block output caching.
	node struct {
		id     string
		eng    *Engine
		inputs []*node

		in, out, prev []float64
		block         int64
		rendering     bool

		// proc renders out from the summed input block. start is the
		// absolute frame index of the first sample.
		proc func(in, out []float64, start int64)
	}
)

// ID returns stable identity of the primitive.
func (n *node) ID() string {
	return n.id
}

// Connect wires this node's output into dst's input.
func (n *node) Connect(dst engine.Node) error {
	d, ok := dst.(interface{ base() *node })
	if !ok {
		return errForeignNode
	}
	t := d.base()
	if t.eng != n.eng {
		return errForeignNode
	}
	n.eng.mu.Lock()
	defer n.eng.mu.Unlock()
	t.inputs = append(t.inputs, n)
	return nil
}

// Disconnect severs the edge to dst. Severing an edge that does not
// exist is not an error.
func (n *node) Disconnect(dst engine.Node) {
	d, ok := dst.(interface{ base() *node })
	if !ok {
		return
	}
	t := d.base()
	n.eng.mu.Lock()
	defer n.eng.mu.Unlock()
	for i := range t.inputs {
		if t.inputs[i] == n {
			t.inputs = append(t.inputs[:i], t.inputs[i+1:]...)
			return
		}
	}
}

// ConnectParam wires this node's output as a modulation source of dst.
func (n *node) ConnectParam(dst engine.Param) error {
	p, ok := dst.(*param)
	if !ok || p.eng != n.eng {
		return errForeignNode
	}
	n.eng.mu.Lock()
	defer n.eng.mu.Unlock()
	p.mods = append(p.mods, n)
	return nil
}

// DisconnectParam severs a modulation edge. Best-effort.
func (n *node) DisconnectParam(dst engine.Param) {
	p, ok := dst.(*param)
	if !ok {
		return
	}
	n.eng.mu.Lock()
	defer n.eng.mu.Unlock()
	for i := range p.mods {
		if p.mods[i] == n {
			p.mods = append(p.mods[:i], p.mods[i+1:]...)
			return
		}
	}
}

func (n *node) base() *node {
	return n
}

// pull renders the block if it was not rendered yet. A node pulled while
// already rendering is part of a feedback cycle and returns its previous
// block.
func (n *node) pull(block int64) []float64 {
	if n.block == block {
		return n.out
	}
	if n.rendering {
		return n.prev
	}
	n.rendering = true
	n.out, n.prev = n.prev, n.out
	for i := range n.in {
		n.in[i] = 0
	}
	for _, src := range n.inputs {
		b := src.pull(block)
		for i := range n.in {
			n.in[i] += b[i]
		}
	}
	n.proc(n.in, n.out, (block-1)*int64(n.eng.blockSize))
	n.block = block
	n.rendering = false
	return n.out
}
