// Package slide implements a sub-linear feed-forward training engine: each
// layer retrieves its active neurons through a locality-sensitive hash index
// over neuron weight vectors instead of evaluating every neuron on every
// sample. See SPEC_FULL.md for the full component breakdown.
package slide
