package memory

import (
	"sync"
)

// Default values of primitive params.
const (
	defaultFrequency = 440.0
	defaultCutoff    = 1000.0
	defaultResonance = 1.0
)

type (
	// param is a schedulable control value. Scheduled events are read by
	// the render goroutine, modulation sources are summed on top of the
	// scheduled baseline.
	param struct {
		eng *Engine
		def float64

		mu     sync.Mutex
		events []paramEvent

		// mods are modulation source nodes, guarded by engine lock.
		mods []*node
	}

	// paramEvent is a single automation point. A ramp event interpolates
	// linearly from the previous event to this one.
	paramEvent struct {
		time  float64
		value float64
		ramp  bool
	}
)

func newParam(e *Engine, def float64) *param {
	return &param{
		eng:    e,
		def:    def,
		events: []paramEvent{{time: 0, value: def}},
	}
}

// Value returns the value in effect at the current render time.
func (p *param) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAt(p.eng.Now())
}

// Set schedules an immediate change, effective at the next quantum.
func (p *param) Set(v float64) {
	p.SetAt(v, p.eng.Now())
}

// SetAt schedules a stepped change at time t.
func (p *param) SetAt(v, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insert(paramEvent{time: t, value: v})
}

// RampTo schedules a linear ramp from the previous scheduled point to v,
// completing at time t.
func (p *param) RampTo(v, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insert(paramEvent{time: t, value: v, ramp: true})
}

// Cancel removes scheduled changes at and after time t.
func (p *param) Cancel(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.events[:0]
	for _, e := range p.events {
		if e.time < t {
			kept = append(kept, e)
		}
	}
	p.events = kept
}

// insert keeps events ordered by time. Events with equal time keep
// insertion order, so the latest wins.
func (p *param) insert(e paramEvent) {
	i := len(p.events)
	for i > 0 && p.events[i-1].time > e.time {
		i--
	}
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// valueAt computes the scheduled baseline at time t. Lock must be held.
func (p *param) valueAt(t float64) float64 {
	if len(p.events) == 0 {
		return p.def
	}
	// index of the last event not after t
	last := -1
	for i := range p.events {
		if p.events[i].time <= t {
			last = i
		} else {
			break
		}
	}
	if last == -1 {
		// before the first event; a pending ramp interpolates from def
		if first := p.events[0]; first.ramp && first.time > 0 {
			return p.def + (first.value-p.def)*t/first.time
		}
		return p.events[0].value
	}
	// interpolate towards a pending ramp
	if next := last + 1; next < len(p.events) && p.events[next].ramp {
		e0, e1 := p.events[last], p.events[next]
		if e1.time <= e0.time {
			return e1.value
		}
		frac := (t - e0.time) / (e1.time - e0.time)
		return e0.value + (e1.value-e0.value)*frac
	}
	return p.events[last].value
}

// values fills dst with per-sample param values for a block starting at
// absolute frame start, including modulation sources.
func (p *param) values(dst []float64, start int64) {
	sr := float64(p.eng.sampleRate)
	p.mu.Lock()
	for i := range dst {
		dst[i] = p.valueAt(float64(start+int64(i)) / sr)
	}
	p.mu.Unlock()
	block := start/int64(p.eng.blockSize) + 1
	for _, m := range p.mods {
		b := m.pull(block)
		for i := range dst {
			dst[i] += b[i]
		}
	}
}

// at computes the param value at the first frame of a block including
// modulation, for params evaluated once per block.
func (p *param) at(start int64) float64 {
	sr := float64(p.eng.sampleRate)
	p.mu.Lock()
	v := p.valueAt(float64(start) / sr)
	p.mu.Unlock()
	block := start/int64(p.eng.blockSize) + 1
	for _, m := range p.mods {
		v += m.pull(block)[0]
	}
	return v
}
