package slide

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLayerConfig() []LayerConfig {
	return []LayerConfig{
		{Size: 8, NodeType: Relu, K: 2, L: 2, Sparsity: 1},
		{Size: 3, NodeType: Softmax, K: 2, L: 2, Sparsity: 1},
	}
}

func TestNewNetwork_RejectsInvalidConfiguration(t *testing.T) {
	cases := map[string]struct {
		batch   int
		lr      float32
		input   int
		layers  []LayerConfig
	}{
		"zero batch size":    {0, 0.01, 4, twoLayerConfig()},
		"negative lr":        {1, -0.01, 4, twoLayerConfig()},
		"zero input size":    {1, 0.01, 0, twoLayerConfig()},
		"no layers":          {1, 0.01, 4, nil},
		"softmax not last":   {1, 0.01, 4, []LayerConfig{{Size: 3, NodeType: Softmax, K: 2, L: 2, Sparsity: 1}, {Size: 3, NodeType: Relu, K: 2, L: 2, Sparsity: 1}}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewNetwork(c.batch, c.lr, c.input, c.layers)
			require.Error(t, err)
		})
	}
}

func TestNetwork_PredictReturnsClassWithinOutputRange(t *testing.T) {
	n, err := NewNetwork(1, 0.01, 4, twoLayerConfig())
	require.NoError(t, err)

	id, err := n.Predict(Case{Indices: []int{0, 1, 2, 3}, Values: []float32{1, 0, -1, 0.5}})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, id, 0)
	assert.Less(t, id, n.outputSize())
}

func TestNetwork_PredictRejectsOutOfRangeIndex(t *testing.T) {
	n, err := NewNetwork(1, 0.01, 4, twoLayerConfig())
	require.NoError(t, err)

	_, err = n.Predict(Case{Indices: []int{9}, Values: []float32{1}})
	require.Error(t, err)
	var shapeErr *ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestNetwork_TestCountsLabelMatches(t *testing.T) {
	n, err := NewNetwork(2, 0.01, 4, twoLayerConfig())
	require.NoError(t, err)

	cases := []Case{
		{Indices: []int{0, 1, 2, 3}, Values: []float32{1, 0, 0, 0}, Labels: []int{0, 1, 2}}, // every label accepted: always correct
		{Indices: []int{0, 1, 2, 3}, Values: []float32{0, 1, 0, 0}, Labels: []int{0, 1, 2}},
		{Indices: []int{0, 1, 2, 3}, Values: []float32{0, 0, 1, 0}, Labels: []int{0, 1, 2}},
	}

	correct, err := n.Test(cases)
	require.NoError(t, err)
	assert.Equal(t, len(cases), correct, "every case accepts any label so every prediction must count as correct")
}

func TestNetwork_TrainMemorizesASingleRepeatedExample(t *testing.T) {
	n, err := NewNetwork(1, 0.05, 4, twoLayerConfig())
	require.NoError(t, err)

	c := Case{Indices: []int{0, 1, 2, 3}, Values: []float32{1, -1, 0.5, -0.5}, Labels: []int{2}}

	for iter := 0; iter < 300; iter++ {
		require.NoError(t, n.Train([]Case{c}, iter, false, false))
	}

	got, err := n.Predict(c)
	require.NoError(t, err)
	assert.Equal(t, 2, got, "300 Adam steps on one repeated example must overfit it")
}

func TestNetwork_TrainRejectsEmptyBatch(t *testing.T) {
	n, err := NewNetwork(1, 0.01, 4, twoLayerConfig())
	require.NoError(t, err)

	err = n.Train(nil, 0, false, false)
	require.Error(t, err)
}

func crossEntropyLoss(n *Network, c Case) float32 {
	statuses := n.trainStatuses[0]
	n.forward(statuses, c, true, nil)
	out := &statuses[len(n.layers)]
	var prob float32
	for i, id := range out.ActiveNodes {
		if id == c.Labels[0] {
			prob = out.ActiveValues[i]
		}
	}
	return float32(-math.Log(float64(prob) + 1e-12))
}

func TestNetwork_GradientCheck(t *testing.T) {
	n, err := NewNetwork(1, 0.01, 4, twoLayerConfig())
	require.NoError(t, err)

	// Fix every weight/bias to a deterministic, strictly-positive-preactivation
	// configuration so ReLU's kink cannot make the numerical check flaky.
	for _, ly := range n.layers {
		for i := range ly.nodes {
			for w := range ly.nodes[i].weights {
				ly.nodes[i].weights[w] = NewParam(0.1 + 0.01*float32(w))
			}
			ly.nodes[i].bias = NewParam(0.5)
		}
	}

	c := Case{Indices: []int{0, 1, 2, 3}, Values: []float32{0.5, -0.2, 0.1, 0.3}, Labels: []int{1}}

	statuses := n.trainStatuses[0]
	n.forward(statuses, c, true, nil)
	out := &statuses[len(n.layers)]
	for k, id := range out.ActiveNodes {
		var expect float32
		if id == c.Labels[0] {
			expect = 1
		}
		out.Deltas[k] = expect - out.ActiveValues[k] // batch size 1
	}
	for j := len(n.layers) - 1; j >= 0; j-- {
		n.layers[j].backPropagate(&statuses[j], &statuses[j+1])
	}

	target := &n.layers[0].nodes[0].weights[0]
	analytic := -target.Error()

	const eps = 1e-3
	original := target.Value

	target.Value = original + eps
	lossPlus := crossEntropyLoss(n, c)
	target.Value = original - eps
	lossMinus := crossEntropyLoss(n, c)
	target.Value = original

	numeric := (lossPlus - lossMinus) / (2 * eps)

	assert.InDelta(t, numeric, analytic, 0.05)
}

func TestNetwork_RehashAndRebuildDuringTrainLeaveIndexFullyPopulated(t *testing.T) {
	n, err := NewNetwork(2, 0.01, 16, []LayerConfig{
		{Size: 32, NodeType: Relu, K: 2, L: 2, RangePow: 4, Sparsity: 0.5},
		{Size: 4, NodeType: Softmax, K: 2, L: 2, Sparsity: 1},
	})
	require.NoError(t, err)

	cases := []Case{
		{Indices: []int{0, 1, 2, 3}, Values: []float32{1, 0, 1, 0}, Labels: []int{0}},
		{Indices: []int{4, 5, 6, 7}, Values: []float32{0, 1, 0, 1}, Labels: []int{1}},
	}

	require.NoError(t, n.Train(cases, 0, true, true))

	sparse := n.layers[0]
	assert.Equal(t, sparse.size()*sparse.l, sparse.index.totalCount(),
		"rebuild (reseed) followed by rehash must leave every neuron present exactly once per table")
}
