// Package search implements the pluggable single-variable optimizers over
// CRF (and, for one strategy, bitrate) described by the Search Strategies
// component: weighted-score grid, ternary, Bayesian/multi-objective, and
// bisection with interpolation.
package search

import (
	"errors"

	"github.com/five82/adaptenc/internal/metric"
)

// errNoSuccessfulProbes is returned by a strategy when every probe in its
// candidate set failed (encode or metric failure), leaving nothing to select
// from.
var errNoSuccessfulProbes = errors.New("search: no successful probes")

// ProbeFunc runs one CRF probe and returns its ProbePoint. All strategies in
// this package operate purely in terms of this function; none know how a
// probe encode is actually produced.
type ProbeFunc func(crf float64) (metric.ProbePoint, error)

// BitrateProbeFunc is the bitrate-axis analog, used by the bitrate binary
// search strategy.
type BitrateProbeFunc func(bitrateKbps int) (metric.ProbePoint, error)

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
