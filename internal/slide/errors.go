package slide

import "errors"

// Sentinel error types. Callers use errors.As to recover the concrete type
// and errors.Is against the exported vars below for the common cases.
var (
	// ErrConfiguration is wrapped by every ConfigurationError.
	ErrConfiguration = errors.New("slide: invalid configuration")
	// ErrShape is wrapped by every ShapeError.
	ErrShape = errors.New("slide: shape mismatch")
)

// ConfigurationError reports an invalid LayerConfig or Network construction
// argument: range_pow outside (0, 30] on a sparse layer, BIN_SIZE >
// previous layer size, non-positive batch size, or negative learning rate.
// K*L is not checked against range_pow.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "slide: invalid configuration: " + e.Reason }

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ShapeError reports a Case whose indices/values lengths disagree, or whose
// indices/labels fall outside the network's declared dimensions.
type ShapeError struct {
	Reason string
}

func (e *ShapeError) Error() string { return "slide: shape error: " + e.Reason }

func (e *ShapeError) Unwrap() error { return ErrShape }
