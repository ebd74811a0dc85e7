// Package portaudio plays rendered signal on the default output
// device.
package portaudio

import (
	"errors"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/patch/signal"
)

// Source renders blocks of signal on demand. *memory.Engine
// satisfies it.
type Source interface {
	SampleRate() int
	Render(frames int) signal.Float64
}

// Player streams rendered mono signal to the default output device.
type Player struct {
	src        Source
	bufferSize int
	buf        []float32
	stream     *portaudio.Stream
}

// ErrNotStarted is returned when playing a player that was not
// started.
var ErrNotStarted = errors.New("portaudio: player is not started")

// NewPlayer returns a player pulling bufferSize samples per write.
func NewPlayer(src Source, bufferSize int) *Player {
	return &Player{
		src:        src,
		bufferSize: bufferSize,
	}
}

// Start initializes portaudio and opens the default output stream.
func (p *Player) Start() error {
	p.buf = make([]float32, p.bufferSize)
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(p.src.SampleRate()), p.bufferSize, &p.buf)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return err
	}
	p.stream = stream
	return nil
}

// Play renders frames samples and writes them to the stream.
func (p *Player) Play(frames int) error {
	if p.stream == nil {
		return ErrNotStarted
	}
	for frames > 0 {
		n := p.bufferSize
		if frames < n {
			n = frames
		}
		b := p.src.Render(n)
		for i := range p.buf {
			if i < len(b[0]) {
				p.buf[i] = float32(b[0][i])
			} else {
				p.buf[i] = 0
			}
		}
		if err := p.stream.Write(); err != nil {
			return err
		}
		frames -= n
	}
	return nil
}

// Stop stops the stream and terminates portaudio.
func (p *Player) Stop() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil
	return portaudio.Terminate()
}
