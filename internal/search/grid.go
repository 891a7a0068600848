package search

import (
	"math"

	"github.com/five82/adaptenc/internal/metric"
)

// GridWeights is the 5-tuple weighted-score grid strategy's penalty weights,
// configured as config.CRFModelWeights.
type GridWeights struct {
	Below   float64
	Above   float64
	Bitrate float64
	Avg     float64
	P5      float64
}

// DefaultGridCRFs is the fixed CRF probe set the weighted-score grid
// strategy probes when the caller doesn't supply one.
var DefaultGridCRFs = []float64{18, 20, 22, 24, 28, 30, 32, 34, 36, 38, 40, 44, 54}

// gridProbe pairs a probed CRF with its resulting point, kept so the score
// function can read VMAF/bitrate without re-probing.
type gridProbe struct {
	crf   float64
	point metric.ProbePoint
}

// WeightedScoreGrid probes every CRF in crfs, scores each as a weighted sum
// of five non-negative penalties, and returns the CRF with the minimum
// score. On a tie, the lower CRF (higher quality) wins. Never returns a CRF
// outside the probed set.
func WeightedScoreGrid(crfs []float64, targetVmaf, badOffset float64, weights GridWeights, probe ProbeFunc) (float64, error) {
	if len(crfs) == 0 {
		crfs = DefaultGridCRFs
	}

	probes := make([]gridProbe, 0, len(crfs))
	var vmafSum float64
	var vmafCount int
	for _, crf := range crfs {
		pt, err := probe(crf)
		if err != nil {
			// MetricFailure on an individual probe degrades that probe out of
			// contention rather than aborting the whole grid.
			continue
		}
		probes = append(probes, gridProbe{crf: crf, point: pt})
		if pt.Vmaf != nil {
			vmafSum += pt.Vmaf.Mean
			vmafCount++
		}
	}
	if len(probes) == 0 {
		return 0, errNoSuccessfulProbes
	}

	vmafAvg := targetVmaf
	if vmafCount > 0 {
		vmafAvg = vmafSum / float64(vmafCount)
	}

	bestCRF := probes[0].crf
	bestScore := math.Inf(1)
	for _, gp := range probes {
		score := gridScore(gp.point, targetVmaf, badOffset, vmafAvg, weights)
		if score < bestScore || (score == bestScore && gp.crf < bestCRF) {
			bestScore = score
			bestCRF = gp.crf
		}
	}
	return bestCRF, nil
}

func gridScore(pt metric.ProbePoint, target, badOffset, vmafAvg float64, w GridWeights) float64 {
	var vmafMean, vmafP5 float64
	if pt.Vmaf != nil {
		vmafMean = pt.Vmaf.Mean
		vmafP5 = pt.Vmaf.P5
	} else {
		// Degrade to mean-only scoring when percentile data is absent.
		vmafMean = target
		vmafP5 = target
	}

	below := w.Below * math.Max(0, target-vmafMean)
	above := w.Above * math.Max(0, vmafMean-target)
	avg := w.Avg * math.Abs(vmafAvg-vmafMean)
	p5 := w.P5 * math.Max(0, (target-badOffset)-vmafP5)
	bitrate := w.Bitrate * math.Max(1, float64(pt.Bitrate)/100)

	return below + above + avg + p5 + bitrate
}
