// Package wav writes rendered signal to wav files.
package wav

import (
	"errors"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"pipelined.dev/patch/signal"
)

// Source renders blocks of signal on demand. *memory.Engine
// satisfies it.
type Source interface {
	SampleRate() int
	Render(frames int) signal.Float64
}

// Sink saves rendered signal to a wav file.
type Sink struct {
	file     *os.File
	encoder  *wav.Encoder
	bitDepth signal.BitDepth
	ib       *audio.IntBuffer
}

// ErrNoSource is returned when rendering without a source.
var ErrNoSource = errors.New("wav: source is not defined")

const wavAudioFormat = 1 // PCM

// NewSink creates a wav file at path for mono signal at the given
// sample rate.
func NewSink(path string, sampleRate int, bitDepth signal.BitDepth) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		file:     f,
		encoder:  wav.NewEncoder(f, sampleRate, int(bitDepth), 1, wavAudioFormat),
		bitDepth: bitDepth,
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
	}, nil
}

// Write encodes a buffer of rendered signal.
func (s *Sink) Write(b signal.Float64) error {
	s.ib.Data = b.AsInterInt(s.bitDepth)
	return s.encoder.Write(s.ib)
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

// Close finalizes the wav header and closes the file.
func (s *Sink) Close() error {
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
