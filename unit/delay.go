package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
)

// Default delay settings.
const (
	defaultMaxDelay = 2.0
	defaultDelay    = 0.25
	defaultFeedback = 0.3
	defaultMix      = 0.5
)

// Delay is an echo processor with a fixed feedback path. The feedback
// cycle delay → feedback gain → delay is constructed once at
// initialization; this is the only cycle the patch supports.
//
// Parameters: time (s), feedback, wet, dry, level. The virtual mix
// parameter drives wet and dry complementarily.
type Delay struct {
	patch.Unit

	mu       sync.Mutex
	maxDelay float64
	input    *patch.Conn
}

// NewDelay returns a delay processor with default maximum delay time.
func NewDelay() *Delay {
	return &Delay{
		Unit:     patch.NewUnit("delay", patch.KindProcessor),
		maxDelay: defaultMaxDelay,
	}
}

// SetMaxDelay sets the delay-line capacity in seconds. Effective at the
// next initialization.
func (d *Delay) SetMaxDelay(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v > 0 {
		d.maxDelay = v
	}
}

// Init allocates the delay primitives and the feedback loop.
func (d *Delay) Init(e engine.Engine) error {
	ok, err := d.Begin(e)
	if !ok {
		return err
	}
	d.mu.Lock()
	maxDelay := d.maxDelay
	d.mu.Unlock()

	in := e.Gain()
	dly := e.Delay(maxDelay)
	fb := e.Gain()
	wet := e.Gain()
	dry := e.Gain()
	out := e.Gain()
	d.Own(in, dly, fb, wet, dry, out)

	for _, l := range []struct{ from, to engine.Node }{
		{in, dly},
		{dly, wet},
		{wet, out},
		{in, dry},
		{dry, out},
		// fixed two-edge feedback cycle
		{dly, fb},
		{fb, dly},
	} {
		if err := d.Link(l.from, l.to); err != nil {
			return d.Fail(err)
		}
	}

	dly.Time().Set(defaultDelay)
	fb.Level().Set(defaultFeedback)
	wet.Level().Set(defaultMix)
	dry.Level().Set(1 - defaultMix)

	d.mu.Lock()
	d.input = patch.NewConn(in)
	d.mu.Unlock()

	d.Expose("time", automation.Wrap(e, dly.Time()))
	d.Expose("feedback", automation.Wrap(e, fb.Level()))
	d.Expose("wet", automation.Wrap(e, wet.Level()))
	d.Expose("dry", automation.Wrap(e, dry.Level()))
	d.Expose("level", automation.Wrap(e, out.Level()))
	d.Commit(dly, out)
	return nil
}

// Set routes the virtual mix parameter into wet and dry levels.
func (d *Delay) Set(name string, value float64) error {
	if name != "mix" {
		return d.Unit.Set(name, value)
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	if err := d.Unit.Set("wet", value); err != nil {
		return err
	}
	if err := d.Unit.Set("dry", 1-value); err != nil {
		return err
	}
	d.Changed("mix", value)
	return nil
}

// SetInput routes an upstream outlet into the delay. Nil disconnects.
func (d *Delay) SetInput(o *patch.Outlet) {
	d.mu.Lock()
	conn := d.input
	d.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Teardown releases the delay primitives including the feedback loop.
func (d *Delay) Teardown() {
	d.mu.Lock()
	conn := d.input
	d.input = nil
	d.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	d.Unit.Teardown()
}
