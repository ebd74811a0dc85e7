// Package patch assembles modular signal-processing units into a
// dynamically reconfigurable graph of real-time audio primitives.
//
// A unit owns native primitives created through the engine capability,
// publishes exactly one connectable output and is rewired by connection
// managers as upstream producers change identity. Parameter changes are
// scheduled through automation params, never by mutating render state
// directly.
package patch

import (
	"errors"

	"github.com/sirupsen/logrus"

	"pipelined.dev/patch/engine"
	"pipelined.dev/patch/log"
	"pipelined.dev/patch/mutable"
)

// Kind is a category tag of a unit.
type Kind int

// Unit kinds.
const (
	KindGenerator Kind = iota
	KindModulator
	KindProcessor
	KindMixer
)

// String returns kind name.
func (k Kind) String() string {
	switch k {
	case KindGenerator:
		return "generator"
	case KindModulator:
		return "modulator"
	case KindProcessor:
		return "processor"
	case KindMixer:
		return "mixer"
	}
	return "unknown"
}

// State identifies lifecycle state of a unit.
type State int

// Unit lifecycle states.
const (
	// Uninitialized means the unit has no live primitives yet.
	Uninitialized State = iota
	// Live means primitives are allocated and the handle is published.
	Live
	// TornDown means primitives were disconnected and released.
	TornDown
)

// String returns state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Live:
		return "live"
	case TornDown:
		return "torn down"
	}
	return "unknown"
}

var (
	// ErrLive is returned if a unit is initialized twice without teardown.
	ErrLive = errors.New("patch: unit is already live")
	// ErrNotLive is returned if a parameter update reaches a unit which
	// is not live.
	ErrNotLive = errors.New("patch: unit is not live")
	// ErrUnknownParam is returned for a parameter name the unit does not
	// expose.
	ErrUnknownParam = errors.New("patch: unknown parameter")
	// ErrSlotRange is returned for an out-of-range mixer slot.
	ErrSlotRange = errors.New("patch: slot out of range")
)

// Module is a processing unit managed by a rack.
type Module interface {
	// Init allocates unit primitives against provided engine. Nil engine
	// means the rendering context has not arrived yet; the unit stays
	// uninitialized and no error is returned.
	Init(e engine.Engine) error
	// Teardown disconnects and releases everything the unit created.
	// Safe to call on a partially-initialized unit and idempotent.
	Teardown()
}

// Pusher is implemented by engines which apply mutations at a safe point
// of the render cycle.
type Pusher interface {
	Push(...mutable.Mutation)
}

// Rack owns a set of units bound to one engine. Units are initialized as
// they are added and torn down in reverse order.
type Rack struct {
	eng   engine.Engine
	log   *logrus.Logger
	units []Module
}

// RackOption configures a rack.
type RackOption func(*Rack)

// WithLogger sets logger to rack. If this option is not provided, silent
// logger is used.
func WithLogger(l *logrus.Logger) RackOption {
	return func(r *Rack) {
		r.log = l
	}
}

// NewRack returns a rack bound to provided engine.
func NewRack(e engine.Engine, options ...RackOption) *Rack {
	r := &Rack{
		eng: e,
		log: log.Silent(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Add initializes the unit with the rack's engine and takes ownership of
// its teardown.
func (r *Rack) Add(m Module) error {
	if err := m.Init(r.eng); err != nil {
		r.log.Info("unit init failed: ", err)
		return err
	}
	r.units = append(r.units, m)
	return nil
}

// Push hands mutations to the engine to be applied at the next safe
// point. Engines without mutation support apply them in place.
func (r *Rack) Push(mutations ...mutable.Mutation) {
	if p, ok := r.eng.(Pusher); ok {
		p.Push(mutations...)
		return
	}
	for _, m := range mutations {
		if err := m.Apply(); err != nil {
			r.log.Info("mutation failed: ", err)
		}
	}
}

// Teardown tears down all added units in reverse order.
func (r *Rack) Teardown() {
	for i := len(r.units) - 1; i >= 0; i-- {
		r.units[i].Teardown()
	}
	r.units = r.units[:0]
}
