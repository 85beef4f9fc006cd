package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLibSVM_ParsesIndicesValuesAndLabels(t *testing.T) {
	input := `0 0:1.5 3:-2 7:0.25
1,2 1:4 2:9`

	cases, inputSize, err := ParseLibSVM(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, []int{0}, cases[0].Labels)
	assert.Equal(t, []int{0, 3, 7}, cases[0].Indices)
	assert.Equal(t, []float32{1.5, -2, 0.25}, cases[0].Values)

	assert.Equal(t, []int{1, 2}, cases[1].Labels)
	assert.Equal(t, 8, inputSize, "input size is max(index)+1 across every line")
}

func TestParseLibSVM_SkipsBlankAndCommentLines(t *testing.T) {
	input := "\n# a comment\n0 0:1\n\n"

	cases, _, err := ParseLibSVM(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}

func TestParseLibSVM_RejectsMalformedPair(t *testing.T) {
	_, _, err := ParseLibSVM(strings.NewReader("0 not-a-pair"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestParseLibSVM_RejectsNonIntegerLabel(t *testing.T) {
	_, _, err := ParseLibSVM(strings.NewReader("x 0:1"))
	require.Error(t, err)
}

func TestParseLibSVM_EmptySampleHasNoIndices(t *testing.T) {
	cases, inputSize, err := ParseLibSVM(strings.NewReader("0"))
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Empty(t, cases[0].Indices)
	assert.Equal(t, 0, inputSize)
}

func TestRoundTrip_WriteThenParseReproducesCases(t *testing.T) {
	input := `0 0:1.5 3:-2 7:0.25
1,2 1:4 2:9`
	original, inputSize, err := ParseLibSVM(strings.NewReader(input))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLibSVM(&buf, original))

	reparsed, reparsedSize, err := ParseLibSVM(&buf)
	require.NoError(t, err)

	assert.Equal(t, original, reparsed)
	assert.Equal(t, inputSize, reparsedSize)
}
