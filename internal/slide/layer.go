package slide

import (
	"fmt"
	"math"
	"math/rand"
)

// NodeType selects a layer's activation function.
type NodeType int

const (
	// Relu activates max(v, 0).
	Relu NodeType = iota
	// Softmax activates a normalised exponential; only valid on the last
	// layer of a Network (enforced by NewNetwork).
	Softmax
)

func (t NodeType) String() string {
	if t == Softmax {
		return "softmax"
	}
	return "relu"
}

// minActiveNodes is the MIN_ACTIVE candidate-set floor, clamped to the
// layer's own size so small test layers don't try to pad past their own
// neuron count.
const minActiveNodes = 1000

// LayerStatus is per-sample, per-layer scratch state. It is allocated
// once per (sample, layer) slot at Network construction and overwritten
// on every forward pass.
type LayerStatus struct {
	ActiveNodes           []int
	ActiveValues          []float32
	Deltas                []float32
	NormalizationConstant float32
}

// layerStatusFromInput seeds a LayerStatus directly from a sparse input
// vector — used for layer 0's status in both predict and train.
func layerStatusFromInput(indices []int, values []float32) LayerStatus {
	deltas := make([]float32, len(indices))
	activeValues := make([]float32, len(values))
	copy(activeValues, values)
	activeNodes := make([]int, len(indices))
	copy(activeNodes, indices)
	return LayerStatus{ActiveNodes: activeNodes, ActiveValues: activeValues, Deltas: deltas}
}

// layer owns its neurons, its LSH index, and the hasher that populates it.
type layer struct {
	nodeType NodeType
	nodes    []node
	randIDs  []int

	k, l, rangePow int
	sparsity       float32
	previousSize   int
	minActive      int

	hasher *Hasher
	index  *lshIndex
}

func newLayer(cfg LayerConfig, previousSize int) (*layer, error) {
	if cfg.Size <= 0 {
		return nil, &ConfigurationError{Reason: "layer size must be positive"}
	}
	if cfg.K <= 0 || cfg.L <= 0 {
		return nil, &ConfigurationError{Reason: "K and L must be positive"}
	}
	if cfg.Sparsity < 0 || cfg.Sparsity > 1 {
		return nil, &ConfigurationError{Reason: "sparsity must be in [0, 1]"}
	}
	if cfg.Sparsity < 1 {
		if cfg.RangePow <= 0 || cfg.RangePow > 30 {
			return nil, &ConfigurationError{Reason: "range_pow must be in (0, 30] for a sparse layer"}
		}
		if binSize > previousSize {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("BIN_SIZE (%d) exceeds previous layer size (%d)", binSize, previousSize)}
		}
	}

	randIDs := make([]int, cfg.Size)
	for i := range randIDs {
		randIDs[i] = i
	}
	rand.Shuffle(len(randIDs), func(a, b int) { randIDs[a], randIDs[b] = randIDs[b], randIDs[a] })

	nodes := make([]node, cfg.Size)
	for i := range nodes {
		nodes[i] = newNode(previousSize, func() float32 { return rand.Float32() * 0.01 })
	}

	ly := &layer{
		nodeType:     cfg.NodeType,
		nodes:        nodes,
		randIDs:      randIDs,
		k:            cfg.K,
		l:            cfg.L,
		rangePow:     cfg.RangePow,
		sparsity:     cfg.Sparsity,
		previousSize: previousSize,
		minActive:    minInt(minActiveNodes, cfg.Size),
	}

	if cfg.Sparsity < 1 {
		hasher, err := NewHasher(cfg.K*cfg.L, previousSize)
		if err != nil {
			return nil, err
		}
		ly.hasher = hasher
		ly.index = newLSHIndex(cfg.L, cfg.RangePow)
		ly.rehash()
	}

	return ly, nil
}

func (ly *layer) size() int { return len(ly.nodes) }

// rehash clears the LSH index and re-inserts every neuron's current weight
// vector.
func (ly *layer) rehash() {
	ly.index.clear()
	var scratch []float32
	for i := range ly.nodes {
		scratch = ly.nodes[i].weightValues(scratch)
		hashes := ly.hasher.Hash(scratch)
		indices := HashesToIndices(hashes, ly.k, ly.l, ly.rangePow)
		ly.index.add(indices, i)
	}
}

// updateTable replaces the hasher with a freshly seeded instance. The
// caller must invoke rehash before the next query.
func (ly *layer) updateTable() {
	ly.hasher.reseed()
}

// randomNodes reshuffles the padding permutation, the periodic
// perturbation every 6946 iterations.
func (ly *layer) randomNodes() {
	rand.Shuffle(len(ly.randIDs), func(a, b int) { ly.randIDs[a], ly.randIDs[b] = ly.randIDs[b], ly.randIDs[a] })
}

// queryActiveNodeAndComputeActivations populates next from prev.
// forceActivate is unioned into the active set before padding, and is only
// ever non-empty on the last layer during training.
func (ly *layer) queryActiveNodeAndComputeActivations(prev, next *LayerStatus, forceActivate []int, sparsity float32) {
	if sparsity >= 1 {
		next.ActiveNodes = growInts(next.ActiveNodes, ly.size())
		for i := range next.ActiveNodes {
			next.ActiveNodes[i] = i
		}
	} else {
		hashes := ly.hasher.HashSparse(prev.ActiveValues, prev.ActiveNodes)
		indices := HashesToIndices(hashes, ly.k, ly.l, ly.rangePow)
		candidates := ly.index.getIDs(indices)

		active := make(map[int]struct{}, len(candidates)+len(forceActivate))
		for _, id := range forceActivate {
			active[id] = struct{}{}
		}
		for _, id := range candidates {
			active[id] = struct{}{}
		}

		if len(active) < ly.minActive {
			offset := 0
			if n := ly.size(); n > 0 {
				offset = rand.Intn(n)
			}
			for i := 0; i < ly.size() && len(active) < ly.minActive; i++ {
				active[ly.randIDs[(i+offset)%ly.size()]] = struct{}{}
			}
		}

		next.ActiveNodes = growInts(next.ActiveNodes, 0)
		for id := range active {
			next.ActiveNodes = append(next.ActiveNodes, id)
		}
	}

	next.ActiveValues = growFloats(next.ActiveValues, len(next.ActiveNodes))
	for i, id := range next.ActiveNodes {
		next.ActiveValues[i] = ly.nodes[id].computeValue(prev.ActiveNodes, prev.ActiveValues)
	}

	ly.activate(next)

	next.Deltas = growFloats(next.Deltas, len(next.ActiveNodes))
	for i := range next.Deltas {
		next.Deltas[i] = 0
	}
}

// activate applies this layer's activation function in place over
// next.ActiveValues, recording the softmax normalisation constant when
// applicable.
func (ly *layer) activate(next *LayerStatus) {
	switch ly.nodeType {
	case Relu:
		for i, v := range next.ActiveValues {
			if v < 0 {
				next.ActiveValues[i] = 0
			}
		}
	case Softmax:
		if len(next.ActiveValues) == 0 {
			next.NormalizationConstant = 0
			return
		}
		max := float32(math.Inf(-1))
		for _, v := range next.ActiveValues {
			if v > max {
				max = v
			}
		}
		var sum float32
		for i, v := range next.ActiveValues {
			e := float32(math.Exp(float64(v - max)))
			next.ActiveValues[i] = e
			sum += e
		}
		for i := range next.ActiveValues {
			next.ActiveValues[i] /= sum
		}
		next.NormalizationConstant = sum
	}
}

// backPropagate adjusts each active neuron's delta for the activation
// derivative, then delegates to node.backPropagate.
func (ly *layer) backPropagate(prev, next *LayerStatus) {
	for i, id := range next.ActiveNodes {
		delta := next.Deltas[i]
		if ly.nodeType == Relu && next.ActiveValues[i] <= 0 {
			delta = 0
		}
		ly.nodes[id].backPropagate(delta, prev)
	}
}

// updateWeights applies one Adam step to every neuron's weights and bias.
func (ly *layer) updateWeights(rate float32) {
	for i := range ly.nodes {
		ly.nodes[i].update(rate)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func growInts(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}

func growFloats(s []float32, n int) []float32 {
	if cap(s) < n {
		return make([]float32, n)
	}
	return s[:n]
}
