// Package control binds user interfaces to units. It provides three
// equivalent adapters over the same unit surface: a callback-based
// renderer, externally-controlled values, and an imperative handle.
// Units never depend on any adapter; each adapter is convention over
// the core.
package control

import (
	"sort"
	"sync"
)

// Unit is the parameter surface an adapter binds to. *patch.Unit and
// every concrete unit satisfy it.
type Unit interface {
	Set(name string, value float64) error
	Ramp(name string, value, duration float64) error
	Value(name string) (float64, bool)
	ParamNames() []string
	Active() bool
	LastError() error
	Notify(fn func(name string, value float64)) (cancel func())
}

// Triggerable is satisfied by units with a gate, such as ADSR.
type Triggerable interface {
	Trigger()
	Release()
}

// Snapshot is a point-in-time copy of a unit's bindable state.
type Snapshot struct {
	Params map[string]float64
	Active bool
	Err    error
}

// core tracks external overrides and fans parameter changes out to
// the adapters. Overrides win over unit values when reading, but a
// change notification fires regardless, so an owner holding a stale
// override still observes the unit moving underneath it.
type core struct {
	unit Unit

	mu        sync.Mutex
	overrides map[string]float64
	watchers  map[int]func(name string, value float64)
	next      int
	cancel    func()
}

func newCore(u Unit) *core {
	c := &core{
		unit:      u,
		overrides: make(map[string]float64),
		watchers:  make(map[int]func(string, float64)),
	}
	c.cancel = u.Notify(c.changed)
	return c
}

func (c *core) changed(name string, value float64) {
	c.mu.Lock()
	fns := make([]func(string, float64), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(name, value)
	}
}

func (c *core) watch(fn func(name string, value float64)) (cancel func()) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.watchers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *core) override(name string, value float64) {
	c.mu.Lock()
	c.overrides[name] = value
	c.mu.Unlock()
}

func (c *core) clearOverride(name string) {
	c.mu.Lock()
	delete(c.overrides, name)
	c.mu.Unlock()
}

// value returns the effective value of a parameter: the override if
// one is held, the unit value otherwise.
func (c *core) value(name string) (float64, bool) {
	c.mu.Lock()
	v, ok := c.overrides[name]
	c.mu.Unlock()
	if ok {
		return v, true
	}
	return c.unit.Value(name)
}

func (c *core) snapshot() Snapshot {
	names := c.unit.ParamNames()
	sort.Strings(names)
	s := Snapshot{
		Params: make(map[string]float64, len(names)),
		Active: c.unit.Active(),
		Err:    c.unit.LastError(),
	}
	for _, name := range names {
		if v, ok := c.value(name); ok {
			s.Params[name] = v
		}
	}
	return s
}

func (c *core) close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Lock()
	c.watchers = make(map[int]func(string, float64))
	c.mu.Unlock()
}
