// Package metric computes and represents perceptual quality scores (VMAF,
// SSIM) for encoded chunks, and the stats an Encoder Driver run produces.
package metric

import "math"

// VmafResult aggregates per-frame VMAF scores for one encoded chunk.
// Invariant: Min <= P1 <= P5 <= P10 <= P25 <= P50 <= Max, and
// HarmonicMean <= Mean.
type VmafResult struct {
	Mean         float64
	HarmonicMean float64
	Min          float64
	Max          float64
	P1           float64
	P5           float64
	P10          float64
	P25          float64
	P50          float64
}

// Status is the terminal state of an Encoder Driver run.
type Status int

const (
	StatusDone Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusDone {
		return "DONE"
	}
	return "FAILED"
}

// SSIM carries both the plain-mean and dB forms of an SSIM measurement.
// SSIM-dB is -10*log10(1-SSIM), diverging towards +Inf as SSIM approaches 1;
// callers must guard the 1-SSIM==0 case (see ToDBFromMean).
type SSIM struct {
	Mean float64
	DB   float64
}

// ToDBFromMean converts a mean SSIM value to its dB form. Returns +Inf for a perfect
// 1.0 score rather than dividing by zero.
func ToDBFromMean(meanSSIM float64) float64 {
	diff := 1 - meanSSIM
	if diff <= 0 {
		return math.Inf(1)
	}
	return -10 * math.Log10(diff)
}

// EncodeStats is produced by an Encoder Driver run, optionally enriched by a
// Metric Probe invocation. Immutable once returned.
type EncodeStats struct {
	Status          Status
	ElapsedSeconds  float64
	OutputSizeBytes uint64
	BitrateKbps     int
	Vmaf            *VmafResult
	Ssim            *SSIM
	ChunkIndex      int
	TargetMissPct   float64
	RateSearchTime  float64
	FailureReason   string
}

// ProbePoint is one CRF (or bitrate) probe's result, consumed by the search
// strategies. Immutable.
type ProbePoint struct {
	CRF     float64
	Bitrate int
	Vmaf    *VmafResult
	Ssim    *SSIM
}

// Representative returns the VMAF statistic named by mode, used by the
// bisection-with-interpolation strategy's target-representation config.
// Returns false if vr is nil or mode is unrecognized.
func Representative(vr *VmafResult, mode string) (float64, bool) {
	if vr == nil {
		return 0, false
	}
	switch mode {
	case "mean", "":
		return vr.Mean, true
	case "harmonic_mean":
		return vr.HarmonicMean, true
	case "min":
		return vr.Min, true
	case "max":
		return vr.Max, true
	case "median", "percentile_50":
		return vr.P50, true
	case "percentile_1":
		return vr.P1, true
	case "percentile_5":
		return vr.P5, true
	case "percentile_10":
		return vr.P10, true
	case "percentile_25":
		return vr.P25, true
	default:
		return 0, false
	}
}
