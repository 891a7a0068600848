package search

import (
	"math"

	"github.com/five82/adaptenc/internal/metric"
)

// BisectionConfig configures the bisection-with-interpolation strategy.
type BisectionConfig struct {
	Target     float64
	Tolerance  float64
	CRFMin     float64
	CRFMax     float64
	MaxRounds  int
	MetricMode string // representative statistic, e.g. "mean", "percentile_5"
}

// BinarySearch returns the midpoint of [min, max], rounded to the nearest
// integer CRF.
func BinarySearch(min, max float64) float64 {
	return math.Round((min + max) / 2)
}

// NextCRF advances state to its next round and returns the CRF to probe:
// binary search for the first two rounds, then the interpolated crossing
// point of the fitted curve, falling back to binary search when
// interpolation can't be computed yet.
func NextCRF(state *BisectionState) float64 {
	state.Round++

	var crf float64
	if state.Round <= 2 {
		crf = BinarySearch(state.SearchMin, state.SearchMax)
	} else if interpolated := InterpolateCRF(state.Probes, state.Target, state.Round); interpolated != nil {
		crf = *interpolated
	} else {
		crf = BinarySearch(state.SearchMin, state.SearchMax)
	}

	crf = clamp(crf, state.SearchMin, state.SearchMax)
	state.LastCRF = crf
	return crf
}

// Converged reports whether score is within tolerance of target.
func Converged(score, target, tolerance float64) bool {
	return math.Abs(score-target) <= tolerance
}

// UpdateBounds narrows state's search bounds given a probe's score: a score
// below target means quality is too low, so the next CRF must be lower
// (search the range below LastCRF); a score above target pushes the search
// above LastCRF. Returns true if bounds have crossed, meaning no CRF in the
// remaining range can satisfy the target.
func UpdateBounds(state *BisectionState, score, target, tolerance float64) bool {
	if score < target-tolerance {
		state.SearchMax = state.LastCRF - 1.0
	} else if score > target+tolerance {
		state.SearchMin = state.LastCRF + 1.0
	}
	return state.SearchMin > state.SearchMax
}

// ShouldComplete reports whether the search should stop: on convergence, on
// exhausting max_rounds, or once the bounds have crossed.
func ShouldComplete(state *BisectionState, score float64, cfg BisectionConfig) bool {
	if Converged(score, cfg.Target, cfg.Tolerance) {
		return true
	}
	if state.Round >= cfg.MaxRounds {
		return true
	}
	return UpdateBounds(state, score, cfg.Target, cfg.Tolerance)
}

// RunBisection drives the full bisection-with-interpolation loop: probe,
// check for completion, derive the next CRF, repeat. predictedCRF narrows
// the initial bounds when positive (a neighboring chunk's already-converged
// CRF). Returns FinalizeCRF's interpolated CRF together with the score and
// bitrate of the probe whose score came closest to target, even when the
// loop exits via max_rounds rather than convergence.
func RunBisection(cfg BisectionConfig, predictedCRF float64, probe ProbeFunc) (Probe, error) {
	state := NewBisectionState(cfg.Target, cfg.CRFMin, cfg.CRFMax, predictedCRF)

	for {
		crf := NextCRF(state)
		pt, err := probe(crf)
		if err != nil {
			// A failed probe still consumes a round; treat as worst-case and
			// keep going until max_rounds forces completion.
			if state.Round >= cfg.MaxRounds {
				break
			}
			continue
		}

		score, ok := metric.Representative(pt.Vmaf, cfg.MetricMode)
		if !ok {
			if state.Round >= cfg.MaxRounds {
				break
			}
			continue
		}

		state.AddProbe(crf, score, pt.Bitrate)
		if ShouldComplete(state, score, cfg) {
			break
		}
	}

	nearest := state.BestProbe()
	if nearest == nil {
		return Probe{}, errNoSuccessfulProbes
	}

	finalCRF, _ := FinalizeCRF(state.Probes, cfg.Target)
	return Probe{CRF: finalCRF, Score: nearest.Score, BitrateKbps: nearest.BitrateKbps}, nil
}
