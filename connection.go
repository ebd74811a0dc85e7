package patch

import (
	"sync"

	"pipelined.dev/patch/engine"
)

type (
	// Conn wires a downstream unit's input primitive to an upstream
	// handle. It re-keys on the identity of the upstream attach
	// primitive: a handle recreated around the same primitive does not
	// cause a reconnect, a new primitive identity severs the previous
	// edge first. A mixer runs one independently keyed Conn per slot.
	Conn struct {
		in engine.Node

		mu     sync.Mutex
		src    engine.Node
		key    string
		cancel func()
	}

	// ParamConn wires an upstream handle as a modulation source of a
	// single param. Same re-keying protocol as Conn.
	ParamConn struct {
		target engine.Param

		mu     sync.Mutex
		src    engine.Node
		key    string
		cancel func()
	}
)

// NewConn returns a connection manager for the downstream input
// primitive.
func NewConn(in engine.Node) *Conn {
	return &Conn{in: in}
}

// Bind establishes the edge from the handle's attach primitive into the
// downstream input. Re-binding the same upstream identity is a no-op.
// A nil handle severs the edge; the downstream keeps operating on
// silence, which is not an error.
func (c *Conn) Bind(h *Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := h.ID()
	if id == c.key {
		return nil
	}
	if c.src != nil {
		// best-effort: the upstream may already be gone
		c.src.Disconnect(c.in)
		c.src = nil
	}
	c.key = id
	if id == "" {
		return nil
	}
	if err := h.Attach().Connect(c.in); err != nil {
		c.key = ""
		return err
	}
	c.src = h.Attach()
	return nil
}

// Follow binds the connection to every handle the outlet publishes until
// Unfollow or Close is called. Previous subscription is cancelled.
func (c *Conn) Follow(o *Outlet) {
	c.unfollow()
	cancel := o.Watch(func(h *Handle) {
		c.Bind(h)
	})
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

// Unfollow cancels outlet subscription and severs the current edge.
func (c *Conn) Unfollow() {
	c.unfollow()
	c.Bind(nil)
}

func (c *Conn) unfollow() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Bound returns true if an upstream edge exists.
func (c *Conn) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src != nil
}

// Close severs the edge and stops following. Safe to call twice.
func (c *Conn) Close() {
	c.Unfollow()
}

// NewParamConn returns a connection manager for a modulated param.
func NewParamConn(target engine.Param) *ParamConn {
	return &ParamConn{target: target}
}

// Bind establishes the modulation edge from the handle's attach
// primitive into the param.
func (c *ParamConn) Bind(h *Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := h.ID()
	if id == c.key {
		return nil
	}
	if c.src != nil {
		c.src.DisconnectParam(c.target)
		c.src = nil
	}
	c.key = id
	if id == "" {
		return nil
	}
	if err := h.Attach().ConnectParam(c.target); err != nil {
		c.key = ""
		return err
	}
	c.src = h.Attach()
	return nil
}

// Follow binds the modulation edge to every handle the outlet publishes.
func (c *ParamConn) Follow(o *Outlet) {
	c.unfollow()
	cancel := o.Watch(func(h *Handle) {
		c.Bind(h)
	})
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

// Unfollow cancels outlet subscription and severs the modulation edge.
func (c *ParamConn) Unfollow() {
	c.unfollow()
	c.Bind(nil)
}

func (c *ParamConn) unfollow() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Bound returns true if a modulation edge exists.
func (c *ParamConn) Bound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src != nil
}

// Close severs the modulation edge and stops following.
func (c *ParamConn) Close() {
	c.Unfollow()
}
