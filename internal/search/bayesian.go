package search

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/optimize"
)

// BayesianCRFSearch treats CRF selection as a black-box minimization of the
// distance between probed VMAF and target, using gonum/optimize's
// GuessAndCheck method over a budget of maxProbes candidate CRFs spread
// across [crfMin, crfMax]. GuessAndCheck makes no smoothness assumption
// about the objective, which suits VMAF's noisy, non-monotonic response to
// CRF far better than a gradient method would.
func BayesianCRFSearch(crfMin, crfMax float64, target float64, maxProbes int, seed uint64, probe ProbeFunc) (Probe, error) {
	if maxProbes < 1 {
		maxProbes = 1
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	candidates := make([]optimize.Location, maxProbes)
	for i := range candidates {
		crf := crfMin + rng.Float64()*(crfMax-crfMin)
		candidates[i].X = []float64{crf}
	}

	var best Probe
	haveBest := false

	objective := func(x []float64) float64 {
		crf := clamp(x[0], crfMin, crfMax)
		pt, err := probe(crf)
		if err != nil || pt.Vmaf == nil {
			return math.Inf(1)
		}
		dist := math.Abs(pt.Vmaf.Mean - target)
		if !haveBest || dist < math.Abs(best.Score-target) {
			best = Probe{CRF: crf, Score: pt.Vmaf.Mean, BitrateKbps: pt.Bitrate}
			haveBest = true
		}
		return dist
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: maxProbes,
		Converger:       &optimize.FunctionConverge{Iterations: maxProbes},
	}
	method := &optimize.GuessAndCheck{Rander: candidateRander(candidates)}

	_, _ = optimize.Minimize(problem, candidates[0].X, settings, method)

	if !haveBest {
		return Probe{}, errNoSuccessfulProbes
	}
	return best, nil
}

// candidateRander hands GuessAndCheck points from a fixed candidate list
// instead of fresh random locations, so every probed CRF is one of the
// pre-generated candidates. Each call picks a candidate at random through
// math/rand's global source, so candidates can repeat.
type candidateRander []optimize.Location

func (c candidateRander) Rand(x []float64) []float64 {
	if len(c) == 0 {
		return x
	}
	idx := rand.Intn(len(c))
	copy(x, c[idx].X)
	return x
}

// ParetoFront filters probes to the non-dominated set across three
// objectives: distance of the probe's score to targetVmaf, distance of the
// same score to targetP5 (Probe carries no separate P5 value), and bitrate. A probe is dominated when another probe is at least as good on
// every objective and strictly better on one — dominated probes are dropped.
func ParetoFront(probes []Probe, targetVmaf, targetP5 float64) []Probe {
	score := func(p Probe) [3]float64 {
		return [3]float64{math.Abs(p.Score - targetVmaf), math.Abs(p.Score - targetP5), float64(p.BitrateKbps) / 1000}
	}

	front := make([]Probe, 0, len(probes))
	for i, p := range probes {
		pi := score(p)
		dominated := false
		for j, q := range probes {
			if i == j {
				continue
			}
			qi := score(q)
			if qi[0] <= pi[0] && qi[1] <= pi[1] && qi[2] <= pi[2] &&
				(qi[0] < pi[0] || qi[1] < pi[1] || qi[2] < pi[2]) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, p)
		}
	}
	return front
}
