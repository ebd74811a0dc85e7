package control

// Controlled is the externally-owned binding: the owner supplies
// parameter values through Control and reads them back through
// Value. A controlled value wins over the unit's own value, but the
// change callback fires for every unit-side change regardless, so
// the owner can reconcile.
type Controlled struct {
	core     *core
	onChange func(name string, value float64)
	cancel   func()
}

// NewControlled binds a unit. onChange may be nil.
func NewControlled(u Unit, onChange func(name string, value float64)) *Controlled {
	c := &Controlled{
		core:     newCore(u),
		onChange: onChange,
	}
	c.cancel = c.core.watch(func(name string, value float64) {
		if c.onChange != nil {
			c.onChange(name, value)
		}
	})
	return c
}

// Control takes ownership of a parameter: the value is written to
// the unit and held as the effective value until Release.
func (c *Controlled) Control(name string, value float64) {
	c.core.override(name, value)
	_ = c.core.unit.Set(name, value)
}

// Release returns ownership of a parameter to the unit.
func (c *Controlled) Release(name string) {
	c.core.clearOverride(name)
}

// Value returns the effective value of a parameter.
func (c *Controlled) Value(name string) (float64, bool) {
	return c.core.value(name)
}

// Snapshot returns the effective state of all parameters.
func (c *Controlled) Snapshot() Snapshot {
	return c.core.snapshot()
}

// Close detaches the binding from the unit.
func (c *Controlled) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.core.close()
}
