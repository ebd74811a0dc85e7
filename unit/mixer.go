package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
)

// Mixer sums several upstream outlets into one output. Every slot runs
// its own independently keyed connection manager; an empty slot mixes
// silence, which is not an error.
//
// Parameters: level (master).
type Mixer struct {
	patch.Unit

	mu    sync.Mutex
	slots []*slot
}

// slot is one mixer input: its own gain primitive, connection and level.
type slot struct {
	gain  engine.Gain
	conn  *patch.Conn
	level *automation.Param
}

// NewMixer returns a mixer with provided number of input slots.
func NewMixer(numSlots int) *Mixer {
	if numSlots < 1 {
		numSlots = 1
	}
	return &Mixer{
		Unit:  patch.NewUnit("mixer", patch.KindMixer),
		slots: make([]*slot, numSlots),
	}
}

// Init allocates the master and slot primitives.
func (m *Mixer) Init(e engine.Engine) error {
	ok, err := m.Begin(e)
	if !ok {
		return err
	}
	master := e.Gain()
	m.Own(master)
	m.mu.Lock()
	for i := range m.slots {
		g := e.Gain()
		m.slots[i] = &slot{
			gain:  g,
			conn:  patch.NewConn(g),
			level: automation.Wrap(e, g.Level()),
		}
	}
	slots := m.slots
	m.mu.Unlock()
	for _, s := range slots {
		m.Own(s.gain)
		if err := m.Link(s.gain, master); err != nil {
			return m.Fail(err)
		}
	}
	m.Expose("level", automation.Wrap(e, master.Level()))
	m.Commit(master, master)
	return nil
}

// Bind routes an upstream outlet into the slot. Nil outlet empties the
// slot.
func (m *Mixer) Bind(i int, o *patch.Outlet) error {
	s, err := m.slot(i)
	if err != nil {
		return err
	}
	if o == nil {
		s.conn.Unfollow()
		return nil
	}
	s.conn.Follow(o)
	return nil
}

// SetLevel sets slot gain immediately.
func (m *Mixer) SetLevel(i int, v float64) error {
	s, err := m.slot(i)
	if err != nil {
		return err
	}
	s.level.SetImmediate(v)
	return nil
}

// RampLevel ramps slot gain over duration in seconds.
func (m *Mixer) RampLevel(i int, v, duration float64) error {
	s, err := m.slot(i)
	if err != nil {
		return err
	}
	s.level.Ramp(v, duration)
	return nil
}

// Bound reports whether the slot has an upstream edge.
func (m *Mixer) Bound(i int) bool {
	s, err := m.slot(i)
	if err != nil {
		return false
	}
	return s.conn.Bound()
}

// NumSlots returns the number of input slots.
func (m *Mixer) NumSlots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *Mixer) slot(i int) (*slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) || m.slots[i] == nil {
		return nil, patch.ErrSlotRange
	}
	return m.slots[i], nil
}

// Teardown releases the mixer primitives and slot connections.
func (m *Mixer) Teardown() {
	m.mu.Lock()
	slots := make([]*slot, len(m.slots))
	copy(slots, m.slots)
	for i := range m.slots {
		m.slots[i] = nil
	}
	m.mu.Unlock()
	for _, s := range slots {
		if s != nil {
			s.conn.Close()
		}
	}
	m.Unit.Teardown()
}
