package wav_test

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"

	"pipelined.dev/patch/engine/memory"
	"pipelined.dev/patch/signal"
	"pipelined.dev/patch/wav"
)

func TestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.wav")

	e := memory.New(100, 10)
	osc := e.Oscillator()
	assert.NoError(t, osc.Connect(e.Destination()))

	s, err := wav.NewSink(path, e.SampleRate(), signal.BitDepth16)
	assert.NoError(t, err)
	assert.NoError(t, s.Render(e, 30, 10))
	assert.NoError(t, s.Close())

	// the file decodes back with matching format and length
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	d := goaudio.NewDecoder(f)
	assert.True(t, d.IsValidFile())
	buf, err := d.FullPCMBuffer()
	assert.NoError(t, err)
	assert.Equal(t, 100, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
	assert.Equal(t, 30, buf.NumFrames())
}

func TestRenderWithoutSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	s, err := wav.NewSink(path, 100, signal.BitDepth16)
	assert.NoError(t, err)
	assert.Equal(t, wav.ErrNoSource, s.Render(nil, 10, 10))
	assert.NoError(t, s.Close())
}
