package control

// Handle is the imperative binding: direct setters, ramps and gate
// gestures, with a snapshot for polling consumers such as meters.
type Handle struct {
	core *core
}

// NewHandle binds a unit.
func NewHandle(u Unit) *Handle {
	return &Handle{core: newCore(u)}
}

// Set writes a parameter value.
func (h *Handle) Set(name string, value float64) error {
	return h.core.unit.Set(name, value)
}

// Ramp ramps a parameter to value over duration seconds.
func (h *Handle) Ramp(name string, value, duration float64) error {
	return h.core.unit.Ramp(name, value, duration)
}

// Value reads a parameter value.
func (h *Handle) Value(name string) (float64, bool) {
	return h.core.value(name)
}

// Trigger opens the gate of a triggerable unit. No-op otherwise.
func (h *Handle) Trigger() {
	if t, ok := h.core.unit.(Triggerable); ok {
		t.Trigger()
	}
}

// Release closes the gate of a triggerable unit. No-op otherwise.
func (h *Handle) Release() {
	if t, ok := h.core.unit.(Triggerable); ok {
		t.Release()
	}
}

// Snapshot returns a point-in-time copy of the unit's state.
func (h *Handle) Snapshot() Snapshot {
	return h.core.snapshot()
}

// Close detaches the binding from the unit.
func (h *Handle) Close() {
	h.core.close()
}
