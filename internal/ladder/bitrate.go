package ladder

import (
	"errors"
	"math"
	"sort"

	"github.com/five82/adaptenc/internal/metric"
	"github.com/five82/adaptenc/internal/search"
)

// EncodeProbeFunc runs one bitrate-axis probe (an actual encode + quality
// measurement at a candidate bitrate) and returns the resulting probe
// point.
type EncodeProbeFunc func(bitrateKbps int) (metric.ProbePoint, error)

// BestBitrateSparse runs one bitrate binary search in [minKbps, maxKbps]
// through the single probe it is given, which encodes one chunk. It does not
// select or aggregate chunks itself; spreading the search over several
// sampled chunks is left to the caller. This is kept separate from BestCRFGuided rather than merged, since the two
// start from different signals: sparse bitrate probing here vs. a
// CRF-driven complexity model there.
func BestBitrateSparse(minKbps, maxKbps int, target float64, maxProbes int, probe EncodeProbeFunc) (search.BitrateSearchResult, error) {
	return search.BitrateBinarySearch(minKbps, maxKbps, target, maxProbes, search.BitrateProbeFunc(probe))
}

// CRFBitratePoint pairs a probed CRF with the bitrate it produced, the raw
// material for the crf_to_bitrate translation curve.
type CRFBitratePoint struct {
	CRF         float64
	BitrateKbps int
}

// BestCRFGuided finds the best bitrate using a complexity-guided CRF probe
// as the starting point: probe at the guided CRF, centre on the bitrate that
// probe produced (capped at cutoffBitrateKbps when that is positive), then
// refine with a bitrate search over [center/2, center*2]. It does not use
// CRFToBitrate.
func BestCRFGuided(guidedCRF float64, cutoffBitrateKbps int, target float64, maxProbes int, probeCRF search.ProbeFunc, probeBitrate EncodeProbeFunc) (search.BitrateSearchResult, error) {
	pt, err := probeCRF(guidedCRF)
	if err != nil {
		return search.BitrateSearchResult{}, err
	}

	centerKbps := pt.Bitrate
	if cutoffBitrateKbps > 0 && centerKbps > cutoffBitrateKbps {
		centerKbps = cutoffBitrateKbps
	}

	lo := maxInt(1, centerKbps/2)
	hi := centerKbps * 2
	return search.BitrateBinarySearch(lo, hi, target, maxProbes, search.BitrateProbeFunc(probeBitrate))
}

// CRFToBitrate fits a monotone curve through known (CRF, bitrate) points and
// returns the bitrate estimate at crf, for translating a CRF decision into a
// cutoff bitrate without another probe. Falls back to nearest-neighbor when
// fewer than 2 points are available.
func CRFToBitrate(points []CRFBitratePoint, crf float64) int {
	if len(points) == 0 {
		return 0
	}
	sorted := make([]CRFBitratePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CRF < sorted[j].CRF })

	if len(sorted) == 1 {
		return sorted[0].BitrateKbps
	}

	for i := 0; i < len(sorted)-1; i++ {
		a, b := sorted[i], sorted[i+1]
		if crf >= a.CRF && crf <= b.CRF {
			lerped := search.Lerp([2]float64{a.CRF, b.CRF}, [2]float64{float64(a.BitrateKbps), float64(b.BitrateKbps)}, crf)
			if lerped != nil {
				return int(*lerped)
			}
		}
	}

	if crf < sorted[0].CRF {
		return sorted[0].BitrateKbps
	}
	return sorted[len(sorted)-1].BitrateKbps
}

// SSIMToDB translates a mean SSIM score into the dB domain (see
// metric.ToDBFromMean) so bitrate-ladder targets expressed in SSIM can be
// compared against VMAF-domain tolerances on a common, roughly-linear
// scale.
func SSIMToDB(meanSSIM float64) float64 {
	return metric.ToDBFromMean(meanSSIM)
}

const (
	// targetCRFMin and targetCRFMax bound get_target_crf's per-sample
	// bisection range.
	targetCRFMin = 0
	targetCRFMax = 40
	// targetCRFMaxProbes caps each sample's bisection.
	targetCRFMaxProbes = 4
)

var errNoTargetCRFSamples = errors.New("ladder: no successful get_target_crf probes")

// CRFBitrateProbeFunc runs one CQ-mode encode of sample chunk sampleIdx at
// crf and returns the resulting bitrate.
type CRFBitrateProbeFunc func(sampleIdx int, crf float64) (bitrateKbps int, err error)

// GetTargetCRF is crf_to_bitrate's inverse: for each of sampleCount sample
// chunks, bisect CRF over [0,40] for up to 4 probes minimizing
// |bitrate-target|, then linearly interpolate between the two probes
// nearest target. The per-sample results are averaged and floored.
func GetTargetCRF(sampleCount int, targetBitrateKbps int, probe CRFBitrateProbeFunc) (float64, error) {
	var total float64
	var n int
	for i := 0; i < sampleCount; i++ {
		crf, ok := bisectCRFForBitrate(i, targetBitrateKbps, probe)
		if !ok {
			continue
		}
		total += crf
		n++
	}
	if n == 0 {
		return 0, errNoTargetCRFSamples
	}
	return math.Floor(total / float64(n)), nil
}

// bisectCRFForBitrate runs one sample chunk's CRF bisection for GetTargetCRF.
func bisectCRFForBitrate(sampleIdx, targetBitrateKbps int, probe CRFBitrateProbeFunc) (float64, bool) {
	type point struct {
		crf     float64
		bitrate int
	}

	lo, hi := float64(targetCRFMin), float64(targetCRFMax)
	target := float64(targetBitrateKbps)
	var probes []point

	for i := 0; i < targetCRFMaxProbes; i++ {
		crf := (lo + hi) / 2
		bitrate, err := probe(sampleIdx, crf)
		if err != nil {
			continue
		}
		probes = append(probes, point{crf: crf, bitrate: bitrate})
		if float64(bitrate) > target {
			lo = crf // too much bitrate means too little compression: raise CRF
		} else {
			hi = crf
		}
	}
	if len(probes) == 0 {
		return 0, false
	}
	if len(probes) == 1 {
		return probes[0].crf, true
	}

	sort.Slice(probes, func(i, j int) bool {
		return math.Abs(float64(probes[i].bitrate)-target) < math.Abs(float64(probes[j].bitrate)-target)
	})
	a, b := probes[0], probes[1]
	if a.bitrate == b.bitrate {
		return a.crf, true
	}
	if a.bitrate > b.bitrate {
		a, b = b, a
	}
	lerped := search.Lerp([2]float64{float64(a.bitrate), float64(b.bitrate)}, [2]float64{a.crf, b.crf}, target)
	if lerped == nil {
		return a.crf, true
	}
	return *lerped, true
}

var errNoSSIMSamples = errors.New("ladder: no successful ssim-dB probes")

// SSIMProbeFunc encodes sample chunk sampleIdx at bitrateKbps (3-pass VBR,
// svt_bias_pct=90 is the caller's responsibility to set) and returns its
// measured SSIM.
type SSIMProbeFunc func(sampleIdx int, bitrateKbps int) (metric.SSIM, error)

// SSIMDBTarget is the ssim-dB target translation: encode sampleCount sample
// chunks at bitrateKbps and average their measured SSIM-dB.
func SSIMDBTarget(sampleCount int, bitrateKbps int, probe SSIMProbeFunc) (float64, error) {
	var total float64
	var n int
	for i := 0; i < sampleCount; i++ {
		ssim, err := probe(i, bitrateKbps)
		if err != nil {
			continue
		}
		total += ssim.DB
		n++
	}
	if n == 0 {
		return 0, errNoSSIMSamples
	}
	return total / float64(n), nil
}

func maxInt(a, b int) int {
	return int(math.Max(float64(a), float64(b)))
}
