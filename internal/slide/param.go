package slide

import (
	"math"
	"sync/atomic"
)

// Param is one trainable scalar: a weight or a bias. error accumulates
// gradient contributions from every sample in the current mini-batch and is
// cleared back to zero by Update. AddError is safe for concurrent callers;
// Update is not (it runs only in the serial weight-update phase).
type Param struct {
	Value float32

	errorBits atomic.Uint32 // float32 bits of the pending error accumulator
	adam      adamState
}

// NewParam returns a Param initialised to value with zero error and zero
// Adam moments.
func NewParam(value float32) Param {
	return Param{Value: value}
}

// AddError accumulates a gradient contribution. Safe to call from any
// number of goroutines concurrently; no contribution is lost regardless of
// interleaving, though the order of floating-point additions (and so the
// rounding of the sum) is not deterministic across runs with different
// goroutine counts.
func (p *Param) AddError(delta float32) {
	for {
		old := p.errorBits.Load()
		next := math.Float32bits(math.Float32frombits(old) + delta)
		if p.errorBits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Update applies one Adam step using the accumulated error as the
// gradient, then clears the error back to zero. Must only be called from
// the single-threaded update phase, never while AddError may still be
// called concurrently for this Param.
func (p *Param) Update(rate float32) {
	g := math.Float32frombits(p.errorBits.Swap(0))
	p.Value += rate * p.adam.gradient(g)
}

// Error reports the currently accumulated, not-yet-applied error. Exposed
// for tests; it must be zero immediately after Update.
func (p *Param) Error() float32 {
	return math.Float32frombits(p.errorBits.Load())
}
