package slide

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// LayerConfig describes one hidden or output layer.
type LayerConfig struct {
	Size     int
	NodeType NodeType
	K        int
	L        int
	RangePow int
	Sparsity float32
}

// Case is one sparse training or inference sample.
type Case struct {
	Indices []int
	Values  []float32
	Labels  []int
}

// validate checks the input invariants against a declared input size and
// output-layer size.
func (c Case) validate(inputSize, outputSize int) error {
	if len(c.Indices) != len(c.Values) {
		return &ShapeError{Reason: fmt.Sprintf("len(indices)=%d != len(values)=%d", len(c.Indices), len(c.Values))}
	}
	for _, idx := range c.Indices {
		if idx < 0 || idx >= inputSize {
			return &ShapeError{Reason: fmt.Sprintf("index %d out of range [0, %d)", idx, inputSize)}
		}
	}
	for _, id := range c.Labels {
		if id < 0 || id >= outputSize {
			return &ShapeError{Reason: fmt.Sprintf("label %d out of range [0, %d)", id, outputSize)}
		}
	}
	return nil
}

// randomNodesPeriod is the iteration cadence at which hidden layer 1's
// padding permutation is reshuffled.
const randomNodesPeriod = 6946

// Network orchestrates an ordered stack of layers, per-sample scratch
// state, and the Adam learning-rate schedule.
type Network struct {
	layers       []*layer
	configs      []LayerConfig
	inputSize    int
	learningRate float32

	batchSize     int
	trainStatuses [][]LayerStatus // [batchSize][layers+1]

	iteration int
}

// NewNetwork builds a Network from an ordered list of layer configs. Each
// layer's fan-in is the previous layer's size (or inputSize for the
// first). Only the last layer may use Softmax.
func NewNetwork(batchSize int, learningRate float32, inputSize int, layers []LayerConfig) (*Network, error) {
	if batchSize <= 0 {
		return nil, &ConfigurationError{Reason: "batch size must be positive"}
	}
	if learningRate < 0 {
		return nil, &ConfigurationError{Reason: "learning rate must be non-negative"}
	}
	if inputSize <= 0 {
		return nil, &ConfigurationError{Reason: "input size must be positive"}
	}
	if len(layers) == 0 {
		return nil, &ConfigurationError{Reason: "network must have at least one layer"}
	}
	for i, cfg := range layers {
		if cfg.NodeType == Softmax && i != len(layers)-1 {
			return nil, &ConfigurationError{Reason: "only the last layer may be Softmax"}
		}
	}

	built := make([]*layer, len(layers))
	previousSize := inputSize
	for i, cfg := range layers {
		ly, err := newLayer(cfg, previousSize)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		built[i] = ly
		previousSize = cfg.Size
	}

	trainStatuses := make([][]LayerStatus, batchSize)
	for i := range trainStatuses {
		trainStatuses[i] = make([]LayerStatus, len(layers)+1)
	}

	configs := make([]LayerConfig, len(layers))
	copy(configs, layers)

	return &Network{
		layers:        built,
		configs:       configs,
		inputSize:     inputSize,
		learningRate:  learningRate,
		batchSize:     batchSize,
		trainStatuses: trainStatuses,
	}, nil
}

func (n *Network) outputSize() int { return n.layers[len(n.layers)-1].size() }

// InputSize returns the network's configured input dimensionality.
func (n *Network) InputSize() int { return n.inputSize }

// BatchSize returns the network's configured mini-batch size.
func (n *Network) BatchSize() int { return n.batchSize }

// LearningRate returns the network's base (pre-Adam-correction) learning rate.
func (n *Network) LearningRate() float32 { return n.learningRate }

// Configs returns a copy of the layer configuration this network was built
// from, suitable for passing back into NewNetwork when restoring a snapshot.
func (n *Network) Configs() []LayerConfig {
	out := make([]LayerConfig, len(n.configs))
	copy(out, n.configs)
	return out
}

// WeightSnapshot is a JSON-serializable copy of one layer's current weights
// and biases, in neuron order.
type WeightSnapshot struct {
	Weights [][]float32
	Biases  []float32
}

// Export returns a weight snapshot of every layer, suitable for persistence.
func (n *Network) Export() []WeightSnapshot {
	out := make([]WeightSnapshot, len(n.layers))
	for i, ly := range n.layers {
		snap := WeightSnapshot{
			Weights: make([][]float32, len(ly.nodes)),
			Biases:  make([]float32, len(ly.nodes)),
		}
		for j := range ly.nodes {
			snap.Weights[j] = ly.nodes[j].weightValues(nil)
			snap.Biases[j] = ly.nodes[j].bias.Value
		}
		out[i] = snap
	}
	return out
}

// Import overwrites every layer's weights and biases from a snapshot
// previously produced by Export. The snapshot's shape must match this
// network's layer configuration exactly.
func (n *Network) Import(snaps []WeightSnapshot) error {
	if len(snaps) != len(n.layers) {
		return &ShapeError{Reason: fmt.Sprintf("snapshot has %d layers, network has %d", len(snaps), len(n.layers))}
	}
	for i, ly := range n.layers {
		snap := snaps[i]
		if len(snap.Weights) != len(ly.nodes) || len(snap.Biases) != len(ly.nodes) {
			return &ShapeError{Reason: fmt.Sprintf("layer %d: snapshot has %d nodes, layer has %d", i, len(snap.Weights), len(ly.nodes))}
		}
		for j := range ly.nodes {
			if len(snap.Weights[j]) != len(ly.nodes[j].weights) {
				return &ShapeError{Reason: fmt.Sprintf("layer %d node %d: snapshot has %d weights, node has %d", i, j, len(snap.Weights[j]), len(ly.nodes[j].weights))}
			}
			for k, v := range snap.Weights[j] {
				ly.nodes[j].weights[k] = NewParam(v)
			}
			ly.nodes[j].bias = NewParam(snap.Biases[j])
		}
		if ly.sparsity < 1 {
			ly.rehash()
		}
	}
	return nil
}

// forward runs layers 0..N over statuses[0..N+1], seeding statuses[0] from
// the case and forcing dense (sparsity=1.0) evaluation at every layer when
// dense is true. When dense is false, each layer uses its own configured
// sparsity, and forceActivate (typically the sample's labels) is unioned
// into the last softmax layer's active set.
func (n *Network) forward(statuses []LayerStatus, c Case, dense bool, forceActivate []int) {
	statuses[0] = layerStatusFromInput(c.Indices, c.Values)
	for j, ly := range n.layers {
		sparsity := ly.sparsity
		if dense {
			sparsity = 1
		}
		var force []int
		if !dense && j == len(n.layers)-1 && ly.nodeType == Softmax {
			force = forceActivate
		}
		ly.queryActiveNodeAndComputeActivations(&statuses[j], &statuses[j+1], force, sparsity)
	}
}

// argmaxStatus returns the neuron id (not the active index) whose active
// value is largest, together with that value.
func argmaxStatus(s *LayerStatus) (id int, value float32) {
	value = float32(math.Inf(-1))
	for i, v := range s.ActiveValues {
		if v > value {
			value = v
			id = s.ActiveNodes[i]
		}
	}
	return id, value
}

// Predict runs a dense (sparsity forced to 1.0) forward pass and returns
// the argmax class of the last layer. Its scratch is allocated per call,
// independent of trainStatuses; the layers' weights and LSH indexes are
// still shared with Train, which updates them.
func (n *Network) Predict(c Case) (int, error) {
	if err := c.validate(n.inputSize, n.outputSize()); err != nil {
		return 0, err
	}
	statuses := make([]LayerStatus, len(n.layers)+1)
	n.forward(statuses, c, true, nil)
	id, _ := argmaxStatus(&statuses[len(n.layers)])
	return id, nil
}

// BatchLoss returns the mean cross-entropy loss of a dense forward pass
// over cases, evaluated against the last (softmax) layer. Each case's loss
// is -log(probability assigned to one of its labels + 1e-12); a case whose
// labels are all absent from the (dense) active set would contribute
// -log(1e-12), which cannot happen when sparsity is forced to 1 since every
// neuron is active.
func (n *Network) BatchLoss(cases []Case) (float64, error) {
	for i, c := range cases {
		if err := c.validate(n.inputSize, n.outputSize()); err != nil {
			return 0, fmt.Errorf("case %d: %w", i, err)
		}
	}

	statuses := make([]LayerStatus, len(n.layers)+1)
	var total float64
	for _, c := range cases {
		n.forward(statuses, c, true, nil)
		out := &statuses[len(n.layers)]
		var prob float32
		for i, id := range out.ActiveNodes {
			for _, label := range c.Labels {
				if id == label {
					prob = out.ActiveValues[i]
					break
				}
			}
		}
		total += -math.Log(float64(prob) + 1e-12)
	}
	return total / float64(len(cases)), nil
}

// Test predicts every case (in parallel, via the mini-batch worker pool)
// and counts how many predictions land in that case's label set.
func (n *Network) Test(cases []Case) (int, error) {
	for i, c := range cases {
		if err := c.validate(n.inputSize, n.outputSize()); err != nil {
			return 0, fmt.Errorf("case %d: %w", i, err)
		}
	}

	// Test scratch is independent per sample (unlike train_statuses, which
	// is sized to batch_size and reused across steps): the test set size
	// has no relationship to the training batch size, so sharing rows
	// across concurrent samples would race.
	scratch := make([][]LayerStatus, len(cases))
	for i := range scratch {
		scratch[i] = make([]LayerStatus, len(n.layers)+1)
	}

	correct := make([]int, len(cases))
	runBatch(len(cases), func(i int) {
		statuses := scratch[i]
		c := cases[i]
		n.forward(statuses, c, true, nil)
		id, _ := argmaxStatus(&statuses[len(n.layers)])
		for _, label := range c.Labels {
			if label == id {
				correct[i] = 1
				break
			}
		}
	})

	total := 0
	for _, v := range correct {
		total += v
	}
	return total, nil
}

// Train runs one mini-batch training step: parallel forward+loss+backward
// across the batch, then a serial weight-update phase that optionally
// rebuilds and/or rehashes each sparse layer.
func (n *Network) Train(cases []Case, iter int, rehash, rebuild bool) error {
	if len(cases) == 0 {
		return &ShapeError{Reason: "empty batch"}
	}
	for i, c := range cases {
		if err := c.validate(n.inputSize, n.outputSize()); err != nil {
			return fmt.Errorf("case %d: %w", i, err)
		}
	}

	batchSize := len(n.trainStatuses)
	if len(cases) < batchSize {
		batchSize = len(cases)
	}

	if iter%randomNodesPeriod == randomNodesPeriod-1 && len(n.layers) > 1 {
		n.layers[1].randomNodes()
	}

	lastLayer := len(n.layers) - 1
	runBatch(batchSize, func(i int) {
		statuses := n.trainStatuses[i]
		c := cases[i]
		n.forward(statuses, c, false, c.Labels)

		out := &statuses[len(n.layers)]
		for k, id := range out.ActiveNodes {
			activation := out.ActiveValues[k]
			var expect float32
			for _, label := range c.Labels {
				if label == id {
					expect = 1 / float32(len(c.Labels))
					break
				}
			}
			out.Deltas[k] = (expect - activation) / float32(batchSize)
		}

		for j := lastLayer; j >= 0; j-- {
			n.layers[j].backPropagate(&statuses[j], &statuses[j+1])
		}
	})

	t := float64(iter + 1)
	rate := n.learningRate * float32(math.Sqrt(1-math.Pow(float64(adamBeta2), t))/(1-math.Pow(float64(adamBeta1), t)))

	for _, ly := range n.layers {
		ly.updateWeights(rate)
		if rebuild && ly.sparsity < 1 {
			ly.updateTable()
		}
		if rehash && ly.sparsity < 1 {
			ly.rehash()
		}
	}

	n.iteration = iter + 1
	return nil
}

// runBatch runs fn(i) for i in [0, n) across a bounded worker pool, one
// goroutine per available core (never more than n), joining with a
// WaitGroup fork-join barrier.
func runBatch(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	work := make(chan int, n)
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range work {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
