package control

// RenderFunc redraws a binding from a snapshot. The set argument
// writes a parameter back to the unit; writes from inside the
// callback re-enter the renderer like any other change.
type RenderFunc func(s Snapshot, set func(name string, value float64))

// Renderer is the callback-based binding: it invokes a render
// function with a fresh snapshot after every parameter change.
type Renderer struct {
	core   *core
	render RenderFunc
	cancel func()
}

// NewRenderer binds a render function to a unit and performs the
// initial render.
func NewRenderer(u Unit, render RenderFunc) *Renderer {
	r := &Renderer{
		core:   newCore(u),
		render: render,
	}
	r.cancel = r.core.watch(func(string, float64) {
		r.Render()
	})
	r.Render()
	return r
}

// Render redraws the binding from the current unit state.
func (r *Renderer) Render() {
	r.render(r.core.snapshot(), r.set)
}

func (r *Renderer) set(name string, value float64) {
	// Ignored when the unit is not live; the next render shows the
	// unchanged value.
	_ = r.core.unit.Set(name, value)
}

// Close detaches the renderer from the unit.
func (r *Renderer) Close() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.core.close()
}
