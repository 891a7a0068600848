package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/config"
	"github.com/five82/adaptenc/internal/driver"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/metric"
	"github.com/five82/adaptenc/internal/search"
)

// AnalysisResult is what the selected analyzer step hands the finalizer:
// the encoder params to finalize with, plus enough search metadata for
// stats recording.
type AnalysisResult struct {
	Tag        AnalyzerTag
	Params     encparams.Params
	BestCRF    float64
	FinalScore float64
}

// SelectAnalyzer picks the analyzer strategy tag for one chunk, in priority
// order: test-flag -> VMAF-targeting -> capped-CRF -> plain-CRF ->
// per-chunk-VBR -> plain-VBR.
func SelectAnalyzer(cfg *config.Config, backend driver.Backend) AnalyzerTag {
	switch {
	case cfg.AnalyzerOverride != "":
		return AnalyzerTag(cfg.AnalyzerOverride)
	case cfg.CRFBasedVmafTargeting && backend == driver.BackendX264:
		return AnalyzerTargetX264
	case cfg.CRFBasedVmafTargeting:
		return AnalyzerTargetVMAF
	case cfg.CRFBitrateMode:
		return AnalyzerCappedCRF
	case cfg.Bitrate == 0:
		return AnalyzerPlainCRF
	case cfg.BitrateAdjustMode == config.BitrateAdjustChunk:
		return AnalyzerVBRPerChunk
	default:
		return AnalyzerPlainVBR
	}
}

// baseParams builds the BaseAnalyzer's starting params: a clone of the
// prototype encoder with grain-synth, speed, CQ/CRF, single-pass, and
// quantization-matrix knobs enabled.
func (p *Pipeline) baseParams(source chunk.Chunk) encparams.Params {
	params := p.Config.PrototypeEncoder.Clone()
	params.Distribution = encparams.CQ
	params.CRF = p.Config.CRF
	params.Passes = encparams.Passes1
	params = params.WithKnob("enable-qm", "1")
	params = params.WithKnob("qm-min", "0")
	params = params.WithKnob("qm-max", "8")
	params.OutputPath = p.RC.ChunkOutputPath(source.Idx, source.Extension())
	return params
}

// Analyze runs the BaseAnalyzer then the selected strategy, returning the
// params the Finalizer should encode with.
func (p *Pipeline) Analyze(ctx context.Context, source chunk.Chunk) (AnalysisResult, error) {
	tag := SelectAnalyzer(p.Config, driver.Backend(p.Config.PrototypeEncoder.Backend))
	params := p.baseParams(source)

	switch tag {
	case AnalyzerPlainCRF:
		return AnalysisResult{Tag: tag, Params: params, BestCRF: params.CRF}, nil

	case AnalyzerPlainVBR:
		params = params.WithDistribution(encparams.VBR).WithBitrate(p.Config.Bitrate)
		return AnalysisResult{Tag: tag, Params: params}, nil

	case AnalyzerCappedCRF:
		dist := encparams.CQVBV
		if !driver.SupportsRateDistribution(driver.Backend(params.Backend), dist) {
			dist = encparams.CQ
		}
		params = params.WithDistribution(dist)
		if p.Config.MaxBitrate > 0 {
			params = params.WithKnob("maxrate", fmt.Sprintf("%d", p.Config.MaxBitrate))
		}
		return AnalysisResult{Tag: tag, Params: params, BestCRF: params.CRF}, nil

	case AnalyzerVBRPerChunk:
		bitrate := p.Config.Bitrate
		if b, ok := p.PerChunkBitrateKbps[source.Idx]; ok && b > 0 {
			bitrate = b
		}
		params = params.WithDistribution(encparams.VBR).WithBitrate(bitrate)
		return AnalysisResult{Tag: tag, Params: params}, nil

	case AnalyzerTargetVMAF:
		return p.analyzeTargetVMAF(ctx, source, params)

	case AnalyzerTargetX264:
		return p.analyzeTargetX264(ctx, source, params)

	default:
		return AnalysisResult{Tag: tag, Params: params}, nil
	}
}

// analyzeTargetVMAF runs the configured single-variable CRF search strategy
// (§4.4) against the backend's CRF range. Bisection-with-interpolation is
// the default and starts from the CRF tracker's prediction from nearby
// completed chunks; config.CRFSearchStrategy selects one of the three other
// pluggable optimizers instead, which do not use that prediction.
func (p *Pipeline) analyzeTargetVMAF(ctx context.Context, source chunk.Chunk, params encparams.Params) (AnalysisResult, error) {
	caps, ok := driver.CapabilityFor(driver.Backend(params.Backend))
	if !ok {
		return AnalysisResult{}, fmt.Errorf("pipeline: no capability entry for backend %q", params.Backend)
	}

	probe := func(crf float64) (metric.ProbePoint, error) {
		return p.probeCRF(ctx, params, source, crf)
	}

	var bestCRF, bestScore float64
	switch p.Config.CRFSearchStrategy {
	case config.CRFSearchGrid:
		crf, score, err := p.searchGrid(caps, probe)
		if err != nil {
			return AnalysisResult{}, err
		}
		bestCRF, bestScore = crf, score

	case config.CRFSearchTernary:
		crf, score, err := p.searchTernary(caps, probe)
		if err != nil {
			return AnalysisResult{}, err
		}
		bestCRF, bestScore = crf, score

	case config.CRFSearchBayesian:
		result, err := search.BayesianCRFSearch(caps.CRFMin, caps.CRFMax, p.Config.Vmaf, p.Config.MaxProbes, bayesianSeed(source.Idx), probe)
		if err != nil {
			return AnalysisResult{}, err
		}
		bestCRF, bestScore = result.CRF, result.Score

	default:
		predicted := p.Tracker.Predict(source.Idx, (caps.CRFMin+caps.CRFMax)/2)
		bcfg := search.BisectionConfig{
			Target:     p.Config.Vmaf,
			Tolerance:  0.1,
			CRFMin:     caps.CRFMin,
			CRFMax:     caps.CRFMax,
			MaxRounds:  p.Config.VmafProbeCount,
			MetricMode: p.Config.VmafTargetRepresentation,
		}
		best, err := search.RunBisection(bcfg, predicted, probe)
		if err != nil {
			return AnalysisResult{}, err
		}
		bestCRF, bestScore = best.CRF, best.Score
	}

	p.Tracker.Record(source.Idx, bestCRF)
	finalCRF := bestCRF
	if !caps.FloatCRF {
		finalCRF = math.Floor(finalCRF)
	}
	params = params.WithCRF(finalCRF)
	return AnalysisResult{Tag: AnalyzerTargetVMAF, Params: params, BestCRF: finalCRF, FinalScore: bestScore}, nil
}

// searchGrid runs the weighted-score grid strategy and re-probes its winning
// CRF to recover a representative score for stats recording.
func (p *Pipeline) searchGrid(caps driver.Capability, probe search.ProbeFunc) (float64, float64, error) {
	weights := search.GridWeights(p.Config.CRFModelWeights)
	crf, err := search.WeightedScoreGrid(nil, p.Config.Vmaf, 5, weights, probe)
	if err != nil {
		return 0, 0, err
	}
	pt, err := probe(crf)
	if err != nil || pt.Vmaf == nil {
		return crf, p.Config.Vmaf, nil
	}
	return crf, pt.Vmaf.Mean, nil
}

// searchTernary wraps search.TernarySearch with a single-objective score
// function (distance to target VMAF), since the ternary strategy expects a
// unimodal lower-is-better score rather than a raw ProbeFunc.
func (p *Pipeline) searchTernary(caps driver.Capability, probe search.ProbeFunc) (float64, float64, error) {
	var lastScore float64
	score := func(crf float64) (float64, error) {
		pt, err := probe(crf)
		if err != nil {
			return 0, err
		}
		if pt.Vmaf == nil {
			return 0, fmt.Errorf("pipeline: ternary probe at crf=%.2f produced no VMAF result", crf)
		}
		lastScore = pt.Vmaf.Mean
		return math.Abs(pt.Vmaf.Mean - p.Config.Vmaf), nil
	}
	crf, err := search.TernarySearch(caps.CRFMin, caps.CRFMax, p.Config.MaxProbes, score)
	if err != nil {
		return 0, 0, err
	}
	return crf, lastScore, nil
}

// bayesianSeed derives a deterministic per-chunk seed for BayesianCRFSearch,
// so repeated runs over the same chunk draw the same candidate CRFs.
func bayesianSeed(chunkIdx int) uint64 {
	return uint64(chunkIdx)*2654435761 + 1
}

// analyzeTargetX264 runs the same CRF search as TargetVMAF over x264's
// CRF range, then converts the discovered operating point into a follow-up
// three-pass VBR target at the probed bitrate.
func (p *Pipeline) analyzeTargetX264(ctx context.Context, source chunk.Chunk, params encparams.Params) (AnalysisResult, error) {
	result, err := p.analyzeTargetVMAF(ctx, source, params)
	if err != nil {
		return AnalysisResult{}, err
	}

	pt, err := p.probeCRF(ctx, result.Params, source, result.BestCRF)
	if err != nil {
		return AnalysisResult{}, err
	}

	finalParams := result.Params.
		WithDistribution(encparams.VBR).
		WithPasses(encparams.PassesThreeVBR).
		WithBitrate(pt.Bitrate)
	return AnalysisResult{Tag: AnalyzerTargetX264, Params: finalParams, BestCRF: result.BestCRF, FinalScore: result.FinalScore}, nil
}
