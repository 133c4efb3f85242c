package audio

import (
	"math"
	"sync/atomic"
)

// atomicFloat64 provides atomic operations for float64 values by bit-casting
// through an atomic uint64.
type atomicFloat64 struct {
	bits uint64
}

func (af *atomicFloat64) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&af.bits))
}

func (af *atomicFloat64) Store(val float64) {
	atomic.StoreUint64(&af.bits, math.Float64bits(val))
}

// rmsLevel computes the normalized loudness of a block of samples as the root
// mean square, clamped to [0, 1].
func rmsLevel(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	level := math.Sqrt(sum / float64(len(samples)))
	if level > 1 {
		level = 1
	}
	return level
}
