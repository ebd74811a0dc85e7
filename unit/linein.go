package unit

import (
	"fmt"

	"pipelined.dev/patch"
	"pipelined.dev/patch/automation"
	"pipelined.dev/patch/engine"
)

// LineIn feeds an external input device into the patch. Device
// acquisition may be denied: the error is retained in unit state and
// the unit stays inert until Init is retried explicitly.
//
// Parameters: level.
type LineIn struct {
	patch.Unit
}

// NewLineIn returns an external input unit.
func NewLineIn() *LineIn {
	return &LineIn{
		Unit: patch.NewUnit("linein", patch.KindGenerator),
	}
}

// Init acquires the input device and allocates the primitives.
func (l *LineIn) Init(e engine.Engine) error {
	ok, err := l.Begin(e)
	if !ok {
		return err
	}
	src, err := e.Capture()
	if err != nil {
		return l.Fail(fmt.Errorf("acquire input device: %w", err))
	}
	out := e.Gain()
	l.Own(src, out)
	if err := l.Link(src, out); err != nil {
		return l.Fail(err)
	}
	l.Expose("level", automation.Wrap(e, out.Level()))
	l.Commit(out, out)
	return nil
}
