// Package config provides the Context/Config component.
package config

import "errors"

// Sentinel errors for configuration validation that don't need the richer
// errors.CoreError wrapping (small, purely local checks).
var (
	// ErrInvalidWeights indicates a crf_model_weights vector with a negative entry.
	ErrInvalidWeights = errors.New("invalid crf model weights")

	// ErrUnrecognizedRepresentation indicates an unknown vmaf_target_representation.
	ErrUnrecognizedRepresentation = errors.New("unrecognized vmaf target representation")

	// ErrEmptySequence indicates the ladder was invoked with zero chunks.
	ErrEmptySequence = errors.New("chunk sequence is empty")
)
