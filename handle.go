package patch

import (
	"sync"

	"pipelined.dev/patch/engine"
)

type (
	// Handle is a shared reference to a realized unit's output. It is
	// exclusively written by the unit which owns the primitives; every
	// consumer holds it read-only. A nil handle means the upstream is
	// gone and any connection made to it must be released.
	Handle struct {
		// Output is the unit's raw output primitive.
		Output engine.Node
		// Gain is the output gain primitive. It is always present so
		// downstream code has one stable attach point even when the
		// internal graph of the unit is complex.
		Gain engine.Gain
		// Engine the primitives were created with.
		Engine engine.Engine
		// Label of the publishing unit, for diagnostics.
		Label string
		// Kind of the publishing unit.
		Kind Kind
	}

	// Outlet publishes a unit's handle to consumers. The zero value is
	// ready to use and holds a nil handle.
	Outlet struct {
		mu     sync.Mutex
		handle *Handle
		subs   map[int]func(*Handle)
		next   int
	}
)

// ID returns the identity key of the handle: the uid of the attach
// primitive. Nil handles have empty identity.
func (h *Handle) ID() string {
	if h == nil || h.Gain == nil {
		return ""
	}
	return h.Gain.ID()
}

// Attach returns the node consumers connect from. Nil for nil handles.
func (h *Handle) Attach() engine.Node {
	if h == nil || h.Gain == nil {
		return nil
	}
	return h.Gain
}

// Handle returns currently published handle, nil if the unit is not live.
func (o *Outlet) Handle() *Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handle
}

// Publish replaces the published handle and notifies watchers. Only the
// unit owning the outlet may call it.
func (o *Outlet) Publish(h *Handle) {
	o.mu.Lock()
	o.handle = h
	subs := make([]func(*Handle), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()
	// notify without holding the lock, watchers bind connections
	for _, fn := range subs {
		fn(h)
	}
}

// Watch subscribes to handle changes. fn is called immediately with the
// current handle and again on every publication until cancel is called.
func (o *Outlet) Watch(fn func(*Handle)) (cancel func()) {
	o.mu.Lock()
	if o.subs == nil {
		o.subs = make(map[int]func(*Handle))
	}
	id := o.next
	o.next++
	o.subs[id] = fn
	h := o.handle
	o.mu.Unlock()
	fn(h)
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}
