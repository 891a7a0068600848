package search

import (
	"math"
	"sort"
)

// Probe is a single CRF probe result as seen by the bisection strategy: the
// CRF tried, its representative quality score (per the configured VMAF
// statistic), and the resulting bitrate, kept for final-selection purposes.
type Probe struct {
	CRF         float64
	Score       float64
	BitrateKbps int
}

// BisectionState tracks one chunk's iterative CRF search: the probes
// collected so far and the current search bounds.
type BisectionState struct {
	Probes    []Probe
	SearchMin float64
	SearchMax float64
	CRFMin    float64
	CRFMax    float64
	Round     int
	Target    float64
	LastCRF   float64
}

// NewBisectionState starts a search for target within [crfMin, crfMax]. When
// predictedCRF is positive the initial bounds are narrowed to
// [predicted-5, predicted+5] clamped to the hard range, following a nearby
// chunk's already-converged CRF.
func NewBisectionState(target, crfMin, crfMax, predictedCRF float64) *BisectionState {
	searchMin, searchMax := crfMin, crfMax
	if predictedCRF > 0 {
		searchMin = math.Max(crfMin, predictedCRF-5)
		searchMax = math.Min(crfMax, predictedCRF+5)
	}
	return &BisectionState{
		Probes:    make([]Probe, 0, 8),
		SearchMin: searchMin,
		SearchMax: searchMax,
		CRFMin:    crfMin,
		CRFMax:    crfMax,
		Target:    target,
	}
}

// AddProbe records a completed probe result.
func (s *BisectionState) AddProbe(crf, score float64, bitrateKbps int) {
	s.Probes = append(s.Probes, Probe{CRF: crf, Score: score, BitrateKbps: bitrateKbps})
}

// BestProbe returns the probe whose score is closest to the target.
func (s *BisectionState) BestProbe() *Probe {
	if len(s.Probes) == 0 {
		return nil
	}
	best := &s.Probes[0]
	bestDiff := math.Abs(best.Score - s.Target)
	for i := 1; i < len(s.Probes); i++ {
		diff := math.Abs(s.Probes[i].Score - s.Target)
		if diff < bestDiff {
			best = &s.Probes[i]
			bestDiff = diff
		}
	}
	return best
}

// FinalizeCRF is the post-loop step applied once a bisection search stops:
// linear interpolation between the two probes closest to target, clamped to
// [min(probed CRF)-10, max(probed CRF)+4]. With a single probe there is
// nothing to interpolate between, so its (clamped) CRF is returned as-is.
// If the two closest probes tie on score, the slope is undefined, so the
// midpoint of the most recently probed pair is used instead — the "last
// midpoint" fallback.
func FinalizeCRF(probes []Probe, target float64) (float64, bool) {
	if len(probes) == 0 {
		return 0, false
	}

	minCRF, maxCRF := probes[0].CRF, probes[0].CRF
	for _, p := range probes[1:] {
		if p.CRF < minCRF {
			minCRF = p.CRF
		}
		if p.CRF > maxCRF {
			maxCRF = p.CRF
		}
	}
	lo, hi := minCRF-10, maxCRF+4

	if len(probes) == 1 {
		return clamp(probes[0].CRF, lo, hi), true
	}

	type ranked struct {
		probe Probe
		dist  float64
	}
	candidates := make([]ranked, len(probes))
	for i, p := range probes {
		candidates[i] = ranked{probe: p, dist: math.Abs(p.Score - target)}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	p1, p2 := candidates[0].probe, candidates[1].probe
	if p1.Score == p2.Score {
		last1, last2 := probes[len(probes)-2], probes[len(probes)-1]
		midpoint := (last1.CRF + last2.CRF) / 2
		return clamp(midpoint, lo, hi), true
	}

	result := p1.CRF + (p2.CRF-p1.CRF)*(target-p1.Score)/(p2.Score-p1.Score)
	return clamp(result, lo, hi), true
}
