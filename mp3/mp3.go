// Package mp3 writes rendered signal to mp3 files.
package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"

	"github.com/viert/lame"

	"pipelined.dev/patch/signal"
)

// Source renders blocks of signal on demand. *memory.Engine
// satisfies it.
type Source interface {
	SampleRate() int
	Render(frames int) signal.Float64
}

// Sink saves rendered signal to an mp3 file.
type Sink struct {
	f  *os.File
	wr *lame.LameWriter
}

// ErrNoSource is returned when rendering without a source.
var ErrNoSource = errors.New("mp3: source is not defined")

// NewSink creates an mp3 file at path for mono signal at the given
// sample rate.
func NewSink(path string, sampleRate, bitRate, quality int) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	wr := lame.NewWriter(f)
	wr.Encoder.SetBitrate(bitRate)
	wr.Encoder.SetQuality(quality)
	wr.Encoder.SetNumChannels(1)
	wr.Encoder.SetInSamplerate(sampleRate)
	wr.Encoder.SetMode(lame.MONO)
	wr.Encoder.SetVBR(lame.VBR_RH)
	wr.Encoder.InitParams()
	return &Sink{f: f, wr: wr}, nil
}

// Write encodes a buffer of rendered signal.
func (s *Sink) Write(b signal.Float64) error {
	buf := new(bytes.Buffer)
	ints := b.AsInterInt(signal.BitDepth16)
	for i := range ints {
		if err := binary.Write(buf, binary.LittleEndian, int16(ints[i])); err != nil {
			return err
		}
	}
	_, err := s.wr.Write(buf.Bytes())
	return err
}

// Render pulls frames samples from the source in blockSize chunks
// and encodes them.
func (s *Sink) Render(src Source, frames, blockSize int) error {
	if src == nil {
		return ErrNoSource
	}
	for frames > 0 {
		n := blockSize
		if frames < n {
			n = frames
		}
		if err := s.Write(src.Render(n)); err != nil {
			return err
		}
		frames -= n
	}
	return nil
}

// Close flushes the encoder and closes the file.
func (s *Sink) Close() error {
	if err := s.wr.Close(); err != nil {
		return err
	}
	return s.f.Close()
}
