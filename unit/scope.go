package unit

import (
	"sync"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
)

// Scope is a pass-through tap for visualization. It exposes the most
// recent rendered block and its peak without mutating the signal, so
// meters and waveform views can poll it at their own rate.
//
// Parameters: level.
type Scope struct {
	patch.Unit

	mu    sync.Mutex
	tap   engine.Analyser
	input *patch.Conn
}

// NewScope returns a visualization tap.
func NewScope() *Scope {
	return &Scope{
		Unit: patch.NewUnit("scope", patch.KindProcessor),
	}
}

// Init allocates the primitives.
func (s *Scope) Init(e engine.Engine) error {
	ok, err := s.Begin(e)
	if !ok {
		return err
	}
	tap := e.Analyser()
	out := e.Gain()
	s.Own(tap, out)
	if err := s.Link(tap, out); err != nil {
		return s.Fail(err)
	}
	s.mu.Lock()
	s.tap = tap
	s.input = patch.NewConn(tap)
	s.mu.Unlock()
	s.Expose("level", automation.Wrap(e, out.Level()))
	s.Commit(out, out)
	return nil
}

// SetInput follows the outlet of the inspected unit. Nil detaches.
func (s *Scope) SetInput(o *patch.Outlet) {
	s.mu.Lock()
	conn := s.input
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if o == nil {
		conn.Unfollow()
		return
	}
	conn.Follow(o)
}

// Samples copies the most recent block into dst and reports the
// number of samples written.
func (s *Scope) Samples(dst []float64) int {
	s.mu.Lock()
	tap := s.tap
	s.mu.Unlock()
	if tap == nil {
		return 0
	}
	return tap.Samples(dst)
}

// Peak reports the absolute peak of the most recent block.
func (s *Scope) Peak() float64 {
	s.mu.Lock()
	tap := s.tap
	s.mu.Unlock()
	if tap == nil {
		return 0
	}
	return tap.Peak()
}

// Teardown severs the input and releases the primitives.
func (s *Scope) Teardown() {
	s.mu.Lock()
	input := s.input
	s.tap = nil
	s.input = nil
	s.mu.Unlock()
	if input != nil {
		input.Close()
	}
	s.Unit.Teardown()
}
