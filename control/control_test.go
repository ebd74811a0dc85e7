package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/control"
	"pipelined.dev/patch/engine"
	"pipelined.dev/patch/engine/memory"
	"pipelined.dev/patch/envelope"
	"pipelined.dev/patch/unit"
)

const (
	sampleRate = 100
	blockSize  = 10
)

// gainUnit is a minimal unit with one level parameter.
type gainUnit struct {
	patch.Unit
}

func newGainUnit() *gainUnit {
	return &gainUnit{Unit: patch.NewUnit("gain", patch.KindProcessor)}
}

func (u *gainUnit) Init(e engine.Engine) error {
	ok, err := u.Begin(e)
	if !ok {
		return err
	}
	g := e.Gain()
	u.Own(g)
	u.Expose("level", automation.Wrap(e, g.Level()))
	u.Commit(g, g)
	return nil
}

func liveUnit(t *testing.T) *gainUnit {
	t.Helper()
	u := newGainUnit()
	assert.NoError(t, u.Init(memory.New(sampleRate, blockSize)))
	return u
}

func TestRenderer(t *testing.T) {
	u := liveUnit(t)

	var renders []control.Snapshot
	r := control.NewRenderer(u, func(s control.Snapshot, set func(string, float64)) {
		renders = append(renders, s)
	})
	defer r.Close()

	// initial render carries the current state
	assert.Len(t, renders, 1)
	assert.Equal(t, 1.0, renders[0].Params["level"])
	assert.True(t, renders[0].Active)

	// every unit-side change re-renders
	assert.NoError(t, u.Set("level", 0.5))
	assert.Len(t, renders, 2)
	assert.Equal(t, 0.5, renders[1].Params["level"])
}

func TestRendererWritesBack(t *testing.T) {
	u := liveUnit(t)

	r := control.NewRenderer(u, func(s control.Snapshot, set func(string, float64)) {
		// write back only on the initial render, from the re-entrant
		// render the value is already applied
		if s.Params["level"] == 1.0 {
			set("level", 0.25)
		}
	})
	defer r.Close()

	v, ok := u.Value("level")
	assert.True(t, ok)
	assert.Equal(t, 0.25, v)
}

func TestControlledOverrideWins(t *testing.T) {
	u := liveUnit(t)

	var changes []float64
	c := control.NewControlled(u, func(name string, value float64) {
		changes = append(changes, value)
	})
	defer c.Close()

	c.Control("level", 0.5)
	v, ok := c.Value("level")
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)
	// the controlled write reaches the unit too
	uv, _ := u.Value("level")
	assert.Equal(t, 0.5, uv)

	// a unit-side change fires the callback, but the override still
	// wins for the effective value
	assert.NoError(t, u.Set("level", 0.9))
	assert.Equal(t, []float64{0.5, 0.9}, changes)
	v, _ = c.Value("level")
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 0.5, c.Snapshot().Params["level"])

	// releasing ownership exposes the unit value again
	c.Release("level")
	v, _ = c.Value("level")
	assert.Equal(t, 0.9, v)
}

func TestHandle(t *testing.T) {
	u := liveUnit(t)

	h := control.NewHandle(u)
	defer h.Close()

	assert.NoError(t, h.Set("level", 0.3))
	v, ok := h.Value("level")
	assert.True(t, ok)
	assert.Equal(t, 0.3, v)
	assert.NoError(t, h.Ramp("level", 1, 0.5))
	assert.Equal(t, patch.ErrUnknownParam, h.Set("missing", 1))

	s := h.Snapshot()
	assert.True(t, s.Active)
	assert.NoError(t, s.Err)

	// gate gestures on a unit without a gate are no-ops
	h.Trigger()
	h.Release()
}

func TestHandleTriggersADSR(t *testing.T) {
	e := memory.New(sampleRate, blockSize)
	a := unit.NewADSR()
	assert.NoError(t, a.Init(e))
	defer a.Teardown()

	h := control.NewHandle(a)
	defer h.Close()

	h.Trigger()
	assert.Equal(t, envelope.Attacking, a.Phase())
	h.Release()
	assert.Equal(t, envelope.Releasing, a.Phase())
}
