package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
)

// Filter is a second-order filter processor.
//
// Parameters: cutoff (Hz), resonance, level.
type Filter struct {
	patch.Unit

	mu    sync.Mutex
	shape engine.Shape
	flt   engine.Filter
	input *patch.Conn
}

// NewFilter returns a filter processor.
func NewFilter() *Filter {
	return &Filter{
		Unit: patch.NewUnit("filter", patch.KindProcessor),
	}
}

// Init allocates the filter primitives.
func (f *Filter) Init(e engine.Engine) error {
	ok, err := f.Begin(e)
	if !ok {
		return err
	}
	flt := e.Filter()
	out := e.Gain()
	f.Own(flt, out)
	if err := f.Link(flt, out); err != nil {
		return f.Fail(err)
	}
	f.mu.Lock()
	f.flt = flt
	flt.SetShape(f.shape)
	f.input = patch.NewConn(flt)
	f.mu.Unlock()
	f.Expose("cutoff", automation.Wrap(e, flt.Cutoff()))
	f.Expose("resonance", automation.Wrap(e, flt.Resonance()))
	f.Expose("level", automation.Wrap(e, out.Level()))
	f.Commit(flt, out)
	return nil
}

// SetShape sets the frequency response, effective immediately when live.
func (f *Filter) SetShape(s engine.Shape) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shape = s
	if f.flt != nil {
		f.flt.SetShape(s)
	}
}

// SetInput routes an upstream outlet into the filter. Nil disconnects.
func (f *Filter) SetInput(o *patch.Outlet) {
	f.mu.Lock()
	conn := f.input
	f.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Teardown releases the filter primitives.
func (f *Filter) Teardown() {
	f.mu.Lock()
	conn := f.input
	f.flt = nil
	f.input = nil
	f.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	f.Unit.Teardown()
}
