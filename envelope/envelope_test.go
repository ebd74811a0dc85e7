package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/envelope"
)

// stubClock is a manually advanced render clock.
type stubClock struct {
	now float64
}

func (c *stubClock) Now() float64 { return c.now }

// stubParam counts scheduling operations.
type stubParam struct {
	value    float64
	schedule int
}

func (p *stubParam) Value() float64     { return p.value }
func (p *stubParam) Set(v float64)      { p.value = v }
func (p *stubParam) SetAt(v, t float64) { p.schedule++ }
func (p *stubParam) RampTo(v, t float64) {
	p.schedule++
	p.value = v
}
func (p *stubParam) Cancel(t float64) { p.schedule++ }

func newEnvelope() (*envelope.Envelope, *stubClock, *stubParam) {
	clock := &stubClock{}
	stub := &stubParam{}
	return envelope.New(clock, automation.Wrap(clock, stub)), clock, stub
}

func TestDefaultScenario(t *testing.T) {
	e, clock, _ := newEnvelope()
	assert.Equal(t, envelope.Idle, e.Phase())

	// trigger then immediately release: the envelope heads towards
	// Idle via Releasing and never re-enters Attacking
	e.Trigger()
	e.Release()
	assert.Equal(t, envelope.Releasing, e.Phase())

	clock.now = envelope.DefaultRelease / 2
	assert.Equal(t, envelope.Releasing, e.Phase())

	clock.now = envelope.DefaultRelease + 0.001
	assert.Equal(t, envelope.Idle, e.Phase())
}

func TestPhaseProgression(t *testing.T) {
	e, clock, _ := newEnvelope()
	e.Trigger()

	var tests = []struct {
		now      float64
		expected envelope.Phase
	}{
		{now: 0.005, expected: envelope.Attacking},
		{now: envelope.DefaultAttack + 0.05, expected: envelope.Decaying},
		{now: envelope.DefaultAttack + envelope.DefaultDecay + 1, expected: envelope.Sustaining},
	}
	for _, test := range tests {
		clock.now = test.now
		assert.Equal(t, test.expected, e.Phase(), "at %v", test.now)
	}

	e.Release()
	assert.Equal(t, envelope.Releasing, e.Phase())
	clock.now += envelope.DefaultRelease + 0.001
	assert.Equal(t, envelope.Idle, e.Phase())
}

func TestRetriggerSuppressed(t *testing.T) {
	e, clock, stub := newEnvelope()
	e.Trigger()
	scheduled := stub.schedule
	assert.NotZero(t, scheduled)

	// an already-open gate is not re-triggered
	clock.now = 0.005
	e.Trigger()
	assert.Equal(t, scheduled, stub.schedule)

	clock.now = 1
	e.Trigger()
	assert.Equal(t, scheduled, stub.schedule)

	// once released back to Idle, triggering works again
	e.Release()
	clock.now += envelope.DefaultRelease + 0.001
	scheduled = stub.schedule
	e.Trigger()
	assert.True(t, stub.schedule > scheduled)
}

func TestReleaseWithoutTrigger(t *testing.T) {
	e, _, stub := newEnvelope()

	// releasing a closed envelope schedules nothing
	e.Release()
	assert.Zero(t, stub.schedule)
	assert.Equal(t, envelope.Idle, e.Phase())

	// double release schedules the ramp once
	e.Trigger()
	e.Release()
	scheduled := stub.schedule
	e.Release()
	assert.Equal(t, scheduled, stub.schedule)
}

func TestStageChangeAppliesToNextGesture(t *testing.T) {
	e, clock, _ := newEnvelope()
	e.Trigger()

	// shortening the attack mid-flight does not reshape the in-flight
	// ramp: the phase still follows the durations snapshot at trigger
	clock.now = 0.005
	e.SetAttack(0.001)
	assert.Equal(t, envelope.Attacking, e.Phase())

	clock.now = 1
	e.Release()
	clock.now += envelope.DefaultRelease + 0.001

	e.Trigger()
	clock.now += 0.002
	assert.Equal(t, envelope.Decaying, e.Phase())
}

func TestStageClamping(t *testing.T) {
	e, _, _ := newEnvelope()
	e.SetAttack(-1)
	assert.Equal(t, 0.0, e.Attack())
	e.SetSustain(2)
	assert.Equal(t, 1.0, e.Sustain())
	e.SetSustain(-1)
	assert.Equal(t, 0.0, e.Sustain())
	e.SetDecay(0.5)
	assert.Equal(t, 0.5, e.Decay())
	e.SetRelease(0.2)
	assert.Equal(t, 0.2, e.ReleaseTime())
}
