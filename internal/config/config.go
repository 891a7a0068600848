// Package config provides the Context/Config component: immutable-per-run
// configuration with a prototype encoder and feature flags.
package config

import (
	"fmt"
	"time"

	"github.com/five82/adaptenc/internal/encparams"
)

// Default constants.
const (
	// DefaultVmafProbeCount bounds bisection-with-interpolation probes.
	DefaultVmafProbeCount int = 6

	// DefaultMaxProbes bounds ternary search and Bayesian search trials.
	DefaultMaxProbes int = 12

	// DefaultSimultaneousProbes sizes the nested pool that runs the ladder's
	// per-chunk complexity probes, independent of the outer worker pool.
	DefaultSimultaneousProbes int = 3

	// DefaultMultiprocessWorkers is the outer Worker Pool's default concurrency.
	DefaultMultiprocessWorkers int = 8

	// DefaultCutoffBitrate is used when no ladder run has produced one yet.
	DefaultCutoffBitrate int = 0 // 0 means "no cutoff configured"

	// DefaultVmafTargetRepresentation selects which VMAF statistic the
	// bisection-with-interpolation strategy targets.
	DefaultVmafTargetRepresentation string = "mean"

	// DefaultCRFSearchStrategy is the bisection-with-interpolation strategy,
	// the default single-variable optimizer for VMAF-targeted analyzers.
	DefaultCRFSearchStrategy string = "bisection"
)

// Recognized CRFSearchStrategy values, the four pluggable single-variable
// optimizers available to the VMAF-targeting analyzers.
const (
	CRFSearchBisection = "bisection"
	CRFSearchGrid      = "grid"
	CRFSearchTernary   = "ternary"
	CRFSearchBayesian  = "bayesian"
)

// BitrateAdjustMode selects whether the ladder tunes bitrate per chunk.
type BitrateAdjustMode int

const (
	BitrateAdjustNone BitrateAdjustMode = iota
	BitrateAdjustChunk
)

// CRFModelWeights is the 5-tuple used by the weighted-score grid strategy.
type CRFModelWeights struct {
	Below   float64
	Above   float64
	Bitrate float64
	Avg     float64
	P5      float64
}

// DefaultCRFModelWeights mirrors values commonly used for VMAF-targeted
// weighted scoring: penalize undershoot harder than overshoot.
var DefaultCRFModelWeights = CRFModelWeights{
	Below:   2.0,
	Above:   1.0,
	Bitrate: 0.5,
	Avg:     1.0,
	P5:      1.5,
}

// Config holds all per-run configuration. The RunContext (internal/ctx) owns
// one Config plus its temp folder; tasks must clone the prototype encoder
// params before mutating (see encparams.Params.Clone).
type Config struct {
	// Prototype encoder parameters, read-only; every per-chunk pipeline
	// clones before mutating.
	PrototypeEncoder encparams.Params

	// Targeting.
	CRF                    float64
	Bitrate                int // kbps, VBR target
	Vmaf                   float64
	CRFBasedVmafTargeting  bool // select TargetVMAF analyzer
	CRFBitrateMode         bool // select capped-CRF / WeirdCapped finalizer
	BitrateAdjustMode      BitrateAdjustMode
	CutoffBitrate          int
	MaxBitrate             int // VBV/CQ-VBV ceiling

	// Search tuning.
	CRFModelWeights          CRFModelWeights
	VmafProbeCount           int
	VmafTargetRepresentation string
	MaxProbes                int
	// CRFSearchStrategy selects which single-variable optimizer the
	// VMAF-targeting analyzers use: "bisection" (default), "grid",
	// "ternary", or "bayesian".
	CRFSearchStrategy string

	// VMAF scoring options.
	Vmaf4KModel          bool
	VmafPhoneModel       bool
	VmafNoMotion         bool
	VmafReferenceDisplay string

	// Concurrency.
	MultiprocessWorkers int
	SimultaneousProbes  int
	UseCelery           bool // remote dispatch toggle
	OverrideSequential  bool

	// Execution mode.
	DryRun bool

	// AnalyzerOverride forces the Per-Chunk Pipeline's analyzer selection to
	// a specific tag, bypassing the normal priority chain. Empty means no
	// override. Highest-priority selector when set.
	AnalyzerOverride string

	// CalculateFinalVmaf/CalculateFinalSsim request quality metrics against
	// the finalized (not probe) chunk output.
	CalculateFinalVmaf bool
	CalculateFinalSsim bool

	// ChunkTimeout bounds the finalizer's authoritative encode. Zero means
	// use the package default.
	ChunkTimeout time.Duration

	// Resources.
	TempFolder    string
	OverrideFlags string
}

// NewConfig returns a Config with documented defaults, scoped to tempFolder.
func NewConfig(tempFolder string) *Config {
	return &Config{
		PrototypeEncoder: encparams.Params{
			Backend:      "svt-av1",
			Passes:       encparams.Passes1,
			Distribution: encparams.CQ,
			Speed:        6,
		},
		CRFModelWeights:          DefaultCRFModelWeights,
		VmafProbeCount:           DefaultVmafProbeCount,
		VmafTargetRepresentation: DefaultVmafTargetRepresentation,
		MaxProbes:                DefaultMaxProbes,
		CRFSearchStrategy:        DefaultCRFSearchStrategy,
		MultiprocessWorkers:      DefaultMultiprocessWorkers,
		SimultaneousProbes:       DefaultSimultaneousProbes,
		TempFolder:               tempFolder,
	}
}

// Validate checks the configuration for errors. A ConfigError here is fatal
// and terminates the run.
func (c *Config) Validate() error {
	if c.TempFolder == "" {
		return fmt.Errorf("temp_folder must be set")
	}
	if c.MultiprocessWorkers < 1 {
		return fmt.Errorf("multiprocess_workers must be at least 1, got %d", c.MultiprocessWorkers)
	}
	if c.SimultaneousProbes < 1 {
		return fmt.Errorf("simultaneous_probes must be at least 1, got %d", c.SimultaneousProbes)
	}
	if c.VmafProbeCount < 1 {
		return fmt.Errorf("vmaf_probe_count must be at least 1, got %d", c.VmafProbeCount)
	}
	if c.Vmaf < 0 || c.Vmaf > 100 {
		return fmt.Errorf("vmaf target must be in [0,100], got %g", c.Vmaf)
	}
	if _, ok := validRepresentations[c.VmafTargetRepresentation]; c.VmafTargetRepresentation != "" && !ok {
		return fmt.Errorf("unrecognized vmaf_target_representation %q", c.VmafTargetRepresentation)
	}
	if w := c.CRFModelWeights; w.Below < 0 || w.Above < 0 || w.Bitrate < 0 || w.Avg < 0 || w.P5 < 0 {
		return fmt.Errorf("crf_model_weights must be non-negative, got %+v", w)
	}
	if _, ok := validCRFSearchStrategies[c.CRFSearchStrategy]; c.CRFSearchStrategy != "" && !ok {
		return fmt.Errorf("unrecognized crf_search_strategy %q", c.CRFSearchStrategy)
	}
	return nil
}

var validCRFSearchStrategies = map[string]struct{}{
	CRFSearchBisection: {}, CRFSearchGrid: {}, CRFSearchTernary: {}, CRFSearchBayesian: {},
}

var validRepresentations = map[string]struct{}{
	"mean": {}, "harmonic_mean": {}, "min": {}, "max": {}, "median": {},
	"percentile_1": {}, "percentile_5": {}, "percentile_10": {}, "percentile_25": {},
	"percentile_50": {},
}
