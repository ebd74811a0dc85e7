package dsp

import (
	"math"
	"sync/atomic"
)

// Cell is a shared control value with one control-rate writer and one
// render-rate reader. Reads never lock; a reader observing a value one
// sample late is benign at parameter granularity.
type Cell struct {
	bits uint64
}

// NewCell returns a cell holding v.
func NewCell(v float64) *Cell {
	c := &Cell{}
	c.Store(v)
	return c
}

// Store writes the value. Control-rate side.
func (c *Cell) Store(v float64) {
	atomic.StoreUint64(&c.bits, math.Float64bits(v))
}

// Load reads the value. Render-rate side.
func (c *Cell) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.bits))
}
