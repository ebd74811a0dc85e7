package unit_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
	"pipelined.dev/patch/engine/memory"
	"pipelined.dev/patch/envelope"
	"pipelined.dev/patch/unit"
)

const (
	sampleRate = 100
	blockSize  = 10
)

func newEngine() *memory.Engine {
	return memory.New(sampleRate, blockSize)
}

// constUnit is a test source emitting a constant value.
type constUnit struct {
	patch.Unit
	v float64
}

func newConstUnit(v float64) *constUnit {
	return &constUnit{Unit: patch.NewUnit("const", patch.KindGenerator), v: v}
}

func (u *constUnit) Init(e engine.Engine) error {
	ok, err := u.Begin(e)
	if !ok {
		return err
	}
	src := e.Scripted(func(in, out []float64) {
		for i := range out {
			out[i] = u.v
		}
	})
	out := e.Gain()
	u.Own(src, out)
	if err := u.Link(src, out); err != nil {
		return u.Fail(err)
	}
	u.Expose("level", automation.Wrap(e, out.Level()))
	u.Commit(src, out)
	return nil
}

// toDestination routes an outlet into the engine destination.
func toDestination(e *memory.Engine, o *patch.Outlet) *patch.Conn {
	c := patch.NewConn(e.Destination())
	c.Follow(o)
	return c
}

func TestOscillatorUnit(t *testing.T) {
	e := newEngine()
	osc := unit.NewOscillator()
	assert.NoError(t, osc.Init(e))
	defer osc.Teardown()
	toDestination(e, osc.Outlet())

	osc.SetWave(engine.Square)
	assert.NoError(t, osc.Set("frequency", 10))
	b := e.Render(sampleRate)
	assert.Equal(t, 1.0, b.Peak())

	assert.NoError(t, osc.Set("level", 0.5))
	b = e.Render(sampleRate)
	assert.Equal(t, 0.5, b.Peak())

	v, ok := osc.Value("frequency")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	assert.Equal(t, []string{"detune", "frequency", "level"}, osc.ParamNames())
	assert.Equal(t, patch.ErrUnknownParam, osc.Set("cutoff", 1))
}

func TestNoiseUnit(t *testing.T) {
	e := newEngine()
	n := unit.NewNoise(unit.White)
	assert.NoError(t, n.Init(e))
	defer n.Teardown()
	toDestination(e, n.Outlet())

	b := e.Render(sampleRate)
	assert.True(t, b.Peak() > 0)
	assert.True(t, b.Peak() <= 1)

	n.SetColor(unit.Pink)
	assert.Equal(t, unit.Pink, n.GetColor())
	b = e.Render(sampleRate)
	assert.True(t, b.Peak() > 0)
	assert.True(t, b.Peak() <= 1)
}

func TestLFOModulatesParam(t *testing.T) {
	e := newEngine()
	osc := unit.NewOscillator()
	assert.NoError(t, osc.Init(e))
	defer osc.Teardown()
	toDestination(e, osc.Outlet())

	lfo := unit.NewLFO()
	assert.NoError(t, lfo.Init(e))
	defer lfo.Teardown()

	// modulation edge re-keys like any other connection
	mod := patch.NewParamConn(osc.Param("frequency").Raw())
	mod.Follow(lfo.Outlet())
	assert.True(t, mod.Bound())

	b := e.Render(sampleRate)
	assert.True(t, b.Peak() > 0)

	mod.Close()
	assert.False(t, mod.Bound())
}

func TestDistortionUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(0.9)
	assert.NoError(t, src.Init(e))
	d := unit.NewDistortion()
	assert.NoError(t, d.Init(e))
	defer d.Teardown()
	d.SetInput(src.Outlet())
	toDestination(e, d.Outlet())

	// amount 0 is a linear pass-through scaled by 3*deg/π
	slope := 3 * (20 * math.Pi / 180) / math.Pi
	b := e.Render(blockSize)
	assert.InDelta(t, slope*0.9, b[0][0], 1e-3)

	// heavy drive saturates the extremes towards the curve ceiling
	assert.NoError(t, d.Set("amount", 400))
	v, _ := d.Value("amount")
	assert.Equal(t, 400.0, v)
	driven := e.Render(blockSize)
	assert.True(t, driven[0][0] > b[0][0], "driven %v undriven %v", driven[0][0], b[0][0])
	assert.InDelta(t, 20*math.Pi/180, driven[0][0], 0.01)

	// negative amount clamps to linear
	d.SetAmount(-1)
	assert.Equal(t, 0.0, d.Amount())
}

func TestBitcrusherUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(0.5)
	assert.NoError(t, src.Init(e))
	b := unit.NewBitcrusher()
	assert.NoError(t, b.Init(e))
	defer b.Teardown()
	b.SetInput(src.Outlet())
	toDestination(e, b.Outlet())

	// 8 bits, factor 1: quantization to a 255-step grid
	out := e.Render(blockSize)
	assert.Equal(t, math.Round(0.5*255)/255, out[0][blockSize-1])

	// bits clamp into [1, 24]
	assert.NoError(t, b.Set("bits", 100))
	v, _ := b.Value("bits")
	assert.Equal(t, 24.0, v)
	assert.NoError(t, b.Set("factor", 4))
	v, _ = b.Value("factor")
	assert.Equal(t, 4.0, v)
}

func TestADSRUnit(t *testing.T) {
	defer goleak.VerifyNoLeaks(t)

	e := newEngine()
	src := newConstUnit(1)
	assert.NoError(t, src.Init(e))
	a := unit.NewADSR()
	assert.NoError(t, a.Init(e))
	a.SetInput(src.Outlet())
	dest := toDestination(e, a.Outlet())

	// closed envelope mutes the input
	b := e.Render(blockSize)
	assert.Equal(t, 0.0, b.Peak())
	assert.Equal(t, envelope.Idle, a.Phase())

	a.Trigger()
	assert.Equal(t, envelope.Attacking, a.Phase())
	b = e.Render(2 * sampleRate)
	assert.True(t, b.Peak() > 0)
	assert.Equal(t, envelope.Sustaining, a.Phase())
	sustain, _ := a.Value("sustain")
	assert.InDelta(t, sustain, b[0][len(b[0])-1], 1e-9)

	a.Release()
	assert.Equal(t, envelope.Releasing, a.Phase())
	e.Render(sampleRate)
	assert.Equal(t, envelope.Idle, a.Phase())

	// stage params route through the regular surface
	assert.NoError(t, a.Set("attack", 0.2))
	v, _ := a.Value("attack")
	assert.Equal(t, 0.2, v)
	assert.Contains(t, a.ParamNames(), "level")
	assert.Contains(t, a.ParamNames(), "attack")

	a.Teardown()
	dest.Close()
	src.Teardown()

	// gestures after teardown are swallowed
	a.Trigger()
	assert.Equal(t, envelope.Idle, a.Phase())
}

// waitPhase polls the envelope phase until ok or a deadline. The gate
// detector runs on its own timer, so edges land within a poll interval
// of the render call, not synchronously with it.
func waitPhase(t *testing.T, a *unit.ADSR, ok func(envelope.Phase) bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !ok(a.Phase()) {
		if time.Now().After(deadline) {
			t.Fatalf("phase: %v", a.Phase())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestADSRGateDrive(t *testing.T) {
	defer goleak.VerifyNoLeaks(t)

	e := newEngine()
	src := newConstUnit(1)
	assert.NoError(t, src.Init(e))
	gate := newConstUnit(1)
	assert.NoError(t, gate.Init(e))

	a := unit.NewADSR()
	assert.NoError(t, a.Init(e))
	a.SetInput(src.Outlet())
	a.SetGate(gate.Outlet())
	dest := toDestination(e, a.Outlet())
	assert.Equal(t, envelope.Idle, a.Phase())

	// once the gate tap rendered a high block, the detector opens the
	// envelope without any direct Trigger call
	e.Render(blockSize)
	waitPhase(t, a, func(p envelope.Phase) bool { return p != envelope.Idle })

	b := e.Render(2 * sampleRate)
	assert.True(t, b.Peak() > 0)
	assert.Equal(t, envelope.Sustaining, a.Phase())

	// dropping the gate renders silence on the tap: a falling edge
	a.SetGate(nil)
	e.Render(blockSize)
	waitPhase(t, a, func(p envelope.Phase) bool {
		return p == envelope.Releasing || p == envelope.Idle
	})

	a.Teardown()
	dest.Close()
	src.Teardown()
	gate.Teardown()
}

func TestADSRLevelIndependence(t *testing.T) {
	defer goleak.VerifyNoLeaks(t)

	e := newEngine()
	src := newConstUnit(1)
	assert.NoError(t, src.Init(e))
	a := unit.NewADSR()
	assert.NoError(t, a.Init(e))
	a.SetInput(src.Outlet())
	dest := toDestination(e, a.Outlet())

	a.Trigger()
	e.Render(2 * sampleRate)
	assert.Equal(t, envelope.Sustaining, a.Phase())

	// user level scales the output without touching the envelope ramps
	assert.NoError(t, a.Set("level", 0.5))
	sustain, _ := a.Value("sustain")
	b := e.Render(blockSize)
	assert.InDelta(t, sustain*0.5, b[0][blockSize-1], 1e-9)

	// envelope gestures do not cancel the user level either
	a.Release()
	e.Render(sampleRate)
	assert.Equal(t, envelope.Idle, a.Phase())
	a.Trigger()
	b = e.Render(2 * sampleRate)
	assert.Equal(t, envelope.Sustaining, a.Phase())
	assert.InDelta(t, sustain*0.5, b[0][len(b[0])-1], 1e-9)

	a.Teardown()
	dest.Close()
	src.Teardown()
}

func TestFilterUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(1)
	assert.NoError(t, src.Init(e))
	f := unit.NewFilter()
	f.SetShape(engine.Highpass)
	assert.NoError(t, f.Init(e))
	defer f.Teardown()
	f.SetInput(src.Outlet())
	toDestination(e, f.Outlet())

	// a highpass kills the DC input once settled
	e.Render(5 * sampleRate)
	b := e.Render(sampleRate)
	assert.True(t, b.Peak() < 0.01, "peak: %v", b.Peak())

	assert.NoError(t, f.Set("cutoff", 10))
	assert.NoError(t, f.Set("resonance", 2))
	assert.Equal(t, []string{"cutoff", "level", "resonance"}, f.ParamNames())
}

func TestDelayUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(1)
	assert.NoError(t, src.Init(e))
	d := unit.NewDelay()
	assert.NoError(t, d.Init(e))
	defer d.Teardown()
	d.SetInput(src.Outlet())
	toDestination(e, d.Outlet())

	// dry path carries the input immediately at the default mix
	b := e.Render(blockSize)
	assert.InDelta(t, 0.5, b[0][0], 1e-9)

	// the wet path arrives after the delay time, on top of the dry
	e.Render(int(0.25 * sampleRate))
	b = e.Render(blockSize)
	assert.True(t, b[0][blockSize-1] > 0.9, "with echo: %v", b[0][blockSize-1])

	// mix drives wet and dry complementarily
	assert.NoError(t, d.Set("mix", 0))
	wet, _ := d.Value("wet")
	dry, _ := d.Value("dry")
	assert.Equal(t, 0.0, wet)
	assert.Equal(t, 1.0, dry)
}

func TestNoiseGateUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(0.5)
	assert.NoError(t, src.Init(e))
	g := unit.NewNoiseGate()
	assert.NoError(t, g.Init(e))
	defer g.Teardown()
	g.SetInput(src.Outlet())
	toDestination(e, g.Outlet())

	// signal well above the default threshold passes
	e.Render(blockSize)
	b := e.Render(blockSize)
	assert.Equal(t, 0.5, b[0][blockSize-1])

	// threshold above the signal level closes the gate
	assert.NoError(t, g.Set("threshold", 0))
	b = e.Render(blockSize)
	assert.Equal(t, 0.0, b[0][blockSize-1])

	v, _ := g.Value("threshold")
	assert.Equal(t, 0.0, v)
	assert.NoError(t, g.Set("attack", -1))
	v, _ = g.Value("attack")
	assert.Equal(t, 0.0, v)
}

func TestAutoFilterUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(0.8)
	assert.NoError(t, src.Init(e))
	a := unit.NewAutoFilter()
	assert.NoError(t, a.Init(e))
	defer a.Teardown()
	a.SetInput(src.Outlet())
	toDestination(e, a.Outlet())

	b := e.Render(sampleRate)
	assert.True(t, b.Peak() > 0)

	assert.NoError(t, a.Set("base", 5))
	assert.NoError(t, a.Set("max", 20))
	assert.NoError(t, a.Set("sensitivity", 0.5))
	v, _ := a.Value("base")
	assert.Equal(t, 5.0, v)
	assert.Contains(t, a.ParamNames(), "resonance")
}

func TestMixerUnit(t *testing.T) {
	e := newEngine()
	a := newConstUnit(0.25)
	b := newConstUnit(0.5)
	assert.NoError(t, a.Init(e))
	assert.NoError(t, b.Init(e))

	m := unit.NewMixer(2)
	assert.NoError(t, m.Init(e))
	defer m.Teardown()
	assert.Equal(t, 2, m.NumSlots())
	toDestination(e, m.Outlet())

	assert.NoError(t, m.Bind(0, a.Outlet()))
	assert.NoError(t, m.Bind(1, b.Outlet()))
	assert.True(t, m.Bound(0))
	out := e.Render(blockSize)
	assert.InDelta(t, 0.75, out[0][0], 1e-9)

	assert.NoError(t, m.SetLevel(1, 0.5))
	out = e.Render(blockSize)
	assert.InDelta(t, 0.5, out[0][blockSize-1], 1e-9)

	// empty slot mixes silence
	assert.NoError(t, m.Bind(1, nil))
	assert.False(t, m.Bound(1))
	out = e.Render(blockSize)
	assert.InDelta(t, 0.25, out[0][0], 1e-9)

	assert.Equal(t, patch.ErrSlotRange, m.Bind(5, a.Outlet()))
	assert.Equal(t, patch.ErrSlotRange, m.SetLevel(-1, 1))
}

func TestLineInUnit(t *testing.T) {
	// device acquisition failure is retained, the unit stays inert
	e := newEngine()
	l := unit.NewLineIn()
	err := l.Init(e)
	assert.Error(t, err)
	assert.Equal(t, patch.Uninitialized, l.State())
	assert.False(t, l.Active())
	assert.True(t, errors.Is(l.LastError(), memory.ErrNoCaptureDevice))
	assert.Nil(t, l.Outlet().Handle())

	// explicit retry against an engine with an input device succeeds
	captured := memory.New(sampleRate, blockSize, memory.WithCapture(func(out []float64) {
		for i := range out {
			out[i] = 0.25
		}
	}))
	assert.NoError(t, l.Init(captured))
	defer l.Teardown()
	assert.True(t, l.Active())
	toDestination(captured, l.Outlet())
	b := captured.Render(blockSize)
	assert.Equal(t, 0.25, b[0][0])
}

func TestScopeUnit(t *testing.T) {
	e := newEngine()
	src := newConstUnit(0.8)
	assert.NoError(t, src.Init(e))
	s := unit.NewScope()
	assert.NoError(t, s.Init(e))
	defer s.Teardown()
	s.SetInput(src.Outlet())
	toDestination(e, s.Outlet())

	assert.Equal(t, 0.0, s.Peak())
	b := e.Render(blockSize)
	// the tap passes signal through unchanged
	assert.Equal(t, 0.8, b[0][0])
	assert.Equal(t, 0.8, s.Peak())

	dst := make([]float64, blockSize)
	assert.Equal(t, blockSize, s.Samples(dst))
	assert.Equal(t, 0.8, dst[0])
}

func TestScopeConcurrentTeardown(t *testing.T) {
	e := newEngine()
	s := unit.NewScope()
	assert.NoError(t, s.Init(e))

	// meters poll the tap from their own goroutine while the patch is
	// being torn down
	done := make(chan struct{})
	go func() {
		defer close(done)
		dst := make([]float64, blockSize)
		for i := 0; i < 1000; i++ {
			s.Peak()
			s.Samples(dst)
		}
	}()
	s.Teardown()
	<-done
	assert.Equal(t, 0.0, s.Peak())
}
