package slide

import (
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
)

// binSize is the number of input coordinates each output hash slot samples
// from.
const binSize = 8

// densify constants: the probe function
// h(i,a) = (i*densifyC1 + a*densifyC2) mod size, capped at densifyMaxAttempts
// probes, with a marker offset of densifyOffset added on success so a
// slot filled from a distant neighbour is distinguishable from one filled
// locally.
const (
	densifyC1          = 1234
	densifyC2          = 567
	densifyOffset      = 1234
	densifyMaxAttempts = 100
)

// Hasher implements the Densified Winner-Take-All hash family: it maps a
// (dense or sparse) length-numberOfBits vector to a
// size-element slice of small integers, one per output slot.
type Hasher struct {
	size         int
	numberOfBits int
	// indices is flattened size*binSize: slot i samples input coordinates
	// indices[i*binSize : i*binSize+binSize].
	indices []int

	// fallbackCount is mutated from concurrent forward passes (Hash /
	// HashSparse run inside the mini-batch worker pool), hence atomic.
	fallbackCount atomic.Int64
}

// NewHasher builds a new hasher with a freshly seeded random selection of
// input coordinates per output slot. size is K*L; numberOfBits is the previous layer's node count (the fan-in
// of this layer, since the hasher hashes neuron weight vectors).
func NewHasher(size, numberOfBits int) (*Hasher, error) {
	if binSize > numberOfBits {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("BIN_SIZE (%d) exceeds number_of_bits (%d)", binSize, numberOfBits)}
	}
	if size <= 0 {
		return nil, &ConfigurationError{Reason: "hasher size must be positive"}
	}
	h := &Hasher{size: size, numberOfBits: numberOfBits}
	h.reseed()
	return h, nil
}

// reseed draws a fresh random coordinate selection for every output slot,
// discarding the old one. Used by NewHasher and by layer.updateTable (the
// "rebuild" operation).
func (h *Hasher) reseed() {
	indices := make([]int, h.size*binSize)
	pool := make([]int, h.numberOfBits)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < h.size; i++ {
		rand.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
		copy(indices[i*binSize:(i+1)*binSize], pool[:binSize])
	}
	h.indices = indices
}

// FallbackCount reports how many times the densification probe exhausted
// its attempt cap and fell back to 0.
func (h *Hasher) FallbackCount() int64 { return h.fallbackCount.Load() }

// Hash computes the raw WTA codes for a dense length-numberOfBits vector,
// then densifies them. Slot i's code is the index (within its BIN_SIZE
// candidates) of the maximum-weight coordinate.
func (h *Hasher) Hash(w []float32) []int {
	raw := make([]int, h.size)
	for i := 0; i < h.size; i++ {
		best := float32(math.Inf(-1))
		base := i * binSize
		for j := 0; j < binSize; j++ {
			k := h.indices[base+j]
			if w[k] > best {
				best = w[k]
				raw[i] = j
			}
		}
	}
	return h.densify(raw)
}

// HashSparse is the sparse-input counterpart of Hash: values[p] is the
// weight at coordinate indices[p]; any coordinate absent from indices is
// implicitly zero.
func (h *Hasher) HashSparse(values []float32, indices []int) []int {
	raw := make([]int, h.size)
	for i := 0; i < h.size; i++ {
		best := float32(math.Inf(-1))
		base := i * binSize
		for j := 0; j < binSize; j++ {
			k := h.indices[base+j]
			w := sparseLookup(values, indices, k)
			if w > best {
				best = w
				raw[i] = j
			}
		}
	}
	return h.densify(raw)
}

// sparseLookup returns values[p] where indices[p] == k, or 0 if k is absent.
func sparseLookup(values []float32, indices []int, k int) float32 {
	for p, idx := range indices {
		if idx == k {
			return values[p]
		}
	}
	return 0
}

// densify treats every slot with raw[i] == 0 as empty and fills it by
// probing other slots via h(i,a). A raw code of 0 means no selected
// coordinate beat the slot's first one (an all-zero slot, but also a slot
// whose first coordinate is the winner); a slot whose selected weights are
// all negative can have a nonzero code and is then left as is.
func (h *Hasher) densify(raw []int) []int {
	probe := func(i, a int) int { return (i*densifyC1 + a*densifyC2) % h.size }
	out := make([]int, h.size)
	for i := 0; i < h.size; i++ {
		if raw[i] != 0 {
			out[i] = raw[i]
			continue
		}
		next := i
		attempt := 0
		filled := false
		for attempt < densifyMaxAttempts {
			attempt++
			next = probe(i, attempt)
			if raw[next] != 0 {
				out[i] = raw[next] + attempt*densifyOffset
				filled = true
				break
			}
		}
		if !filled {
			h.fallbackCount.Add(1)
			out[i] = 0
		}
	}
	return out
}

// HashesToIndices folds a size-element hash-code slice into L bucket
// indices, each in [0, 2^rangePow).
func HashesToIndices(h []int, k, l, rangePow int) []int {
	bits := log2BinSize
	mask := (1 << rangePow) - 1
	out := make([]int, l)
	for i := 0; i < l; i++ {
		idx := 0
		for j := 0; j < k; j++ {
			idx |= h[k*i+j] << (bits * j)
		}
		out[i] = idx & mask
	}
	return out
}

// log2BinSize is log2(binSize), used to pack K hash codes per table index.
const log2BinSize = 3 // binSize == 8 == 1<<3
