// Package adaptenc implements the per-chunk adaptive encoding controller.
// Given a pre-split ChunkSequence, Run derives a global operating point via
// the Bitrate Ladder (complexity scoring, sampling, bitrate/CRF search) and
// then dispatches one Per-Chunk Pipeline run per chunk through the Worker
// Pool. Scene detection, chunk splitting, the encoder binaries, the VMAF
// tool, and final concatenation/muxing are all external collaborators: this
// package only orchestrates what happens between "here is a ChunkSequence"
// and "here is one EncodeStats per chunk".
package adaptenc

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"path/filepath"
	"sync/atomic"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/config"
	runctx "github.com/five82/adaptenc/internal/ctx"
	"github.com/five82/adaptenc/internal/driver"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/ladder"
	"github.com/five82/adaptenc/internal/logging"
	"github.com/five82/adaptenc/internal/metric"
	"github.com/five82/adaptenc/internal/pipeline"
	"github.com/five82/adaptenc/internal/probecache"
	"github.com/five82/adaptenc/internal/reporter"
	"github.com/five82/adaptenc/internal/workerpool"
)

const (
	// sparseBitrateSampleSize bounds the sparse bitrate-search path's sample
	// to the spec's "e.g. 7 chunks".
	sparseBitrateSampleSize = 7
	// sparseBitrateMinKbps and sparseBitrateMaxKbps bound the sparse path's
	// bitrate search when no CRF-derived anchor is available to narrow it.
	sparseBitrateMinKbps = 200
	sparseBitrateMaxKbps = 20000
)

// crfCacheEntry is what CRFCachePath stores: a bitrate (the guided path's
// cutoff, or the sparse path's avg_best) paired with its equivalent CRF.
type crfCacheEntry struct {
	BitrateKbps int
	CRF         float64
}

// Result is the outcome of one Run. Stats is indexed by chunk index; a
// failed chunk's slot is nil and its failure appears in Failures.
type Result struct {
	Stats    []*metric.EncodeStats
	Failures []workerpool.Result
}

// Run drives seq through the Bitrate Ladder and the Per-Chunk Pipeline,
// reporting progress to rep as chunks complete. rep may be nil.
func Run(pctx context.Context, cfg *config.Config, seq chunk.ChunkSequence, rep reporter.Reporter) (*Result, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return &Result{}, nil
	}

	rc, err := runctx.New(cfg)
	if err != nil {
		return nil, err
	}

	fileLog, err := logging.SetupFileLogger(filepath.Join(cfg.TempFolder, "logs"), false, false)
	if err != nil {
		return nil, err
	}
	defer fileLog.Close()

	store := probecache.New()
	p := pipeline.New(cfg, rc, fileLog)

	if err := runLadder(pctx, store, rc, p, seq); err != nil {
		return nil, fmt.Errorf("adaptenc: bitrate ladder: %w", err)
	}

	result := &Result{Stats: make([]*metric.EncodeStats, seq.Len())}

	rep.EncodingStarted(uint64(seq.Len()))
	var done atomic.Int64
	tasks := make([]workerpool.Task, seq.Len())
	for i, c := range seq.Chunks {
		c := c
		i := i
		tasks[i] = func(taskCtx context.Context) error {
			stats, err := p.RunChunk(taskCtx, c)
			if err != nil {
				return err
			}
			result.Stats[i] = stats
			completed := done.Add(1)
			rep.EncodingProgress(reporter.ProgressSnapshot{ChunksComplete: int(completed), ChunksTotal: seq.Len()})
			return nil
		}
	}

	results, err := workerpool.Execute(pctx, tasks, cfg.MultiprocessWorkers, cfg.OverrideSequential)
	if err != nil {
		return nil, fmt.Errorf("adaptenc: worker pool: %w", err)
	}
	result.Failures = workerpool.Failures(results)
	for _, f := range result.Failures {
		rep.Warning(fmt.Sprintf("chunk %d failed: %v", f.Index, f.Err))
	}

	return result, nil
}

// runLadder scores every chunk's complexity, derives a global bitrate when
// operating without an explicit target (the sparse path), derives a cutoff
// bitrate when operating in capped-CRF mode (the guided path), and
// populates p.PerChunkBitrateKbps when the config asks the VBRPerChunk
// analyzer to vary bitrate by chunk.
func runLadder(pctx context.Context, store *probecache.Store, rc *runctx.RunContext, p *pipeline.Pipeline, seq chunk.ChunkSequence) error {
	cfg := p.Config
	needsComplexity := cfg.BitrateAdjustMode == config.BitrateAdjustChunk || (cfg.CRFBitrateMode && cfg.CutoffBitrate == 0)
	// needsSparseBitrate is the autopilot configuration: a VMAF quality
	// target with no explicit bitrate, no CRF-targeting analyzer, and no
	// capped-CRF mode to derive a bitrate from some other way.
	needsSparseBitrate := cfg.Bitrate == 0 && cfg.Vmaf > 0 && !cfg.CRFBasedVmafTargeting && !cfg.CRFBitrateMode
	if !needsComplexity && !needsSparseBitrate {
		p.CutoffBitrateKbps = cfg.CutoffBitrate
		return nil
	}

	scores, err := probecache.GetOrCompute(store, rc.ComplexityCachePath(), func() ([]ladder.ChunkComplexity, error) {
		probe := func(c chunk.Chunk) (int, error) {
			return complexityProbeBitrate(pctx, rc, c)
		}
		return ladder.ScoreAllBounded(seq, cfg.SimultaneousProbes, probe), nil
	})
	if err != nil {
		return err
	}

	if needsSparseBitrate {
		if err := runSparseBitratePath(pctx, store, rc, p, seq, scores); err != nil {
			return err
		}
	}

	if cfg.BitrateAdjustMode == config.BitrateAdjustChunk && cfg.Bitrate > 0 {
		assignPerChunkBitrate(p, scores, cfg.Bitrate)
	}

	p.CutoffBitrateKbps = cfg.CutoffBitrate
	if cfg.CRFBitrateMode && cfg.CutoffBitrate == 0 {
		entry, err := probecache.GetOrCompute(store, rc.CRFCachePath(), func() (crfCacheEntry, error) {
			cutoff, err := deriveCutoffBitrate(pctx, rc, p, seq, scores)
			if err != nil {
				return crfCacheEntry{}, err
			}
			return crfCacheEntry{BitrateKbps: cutoff, CRF: cfg.CRF}, nil
		})
		if err != nil {
			return err
		}
		p.CutoffBitrateKbps = entry.BitrateKbps

		if entry.BitrateKbps > 0 {
			ssimDB, err := probecache.GetOrCompute(store, rc.SSIMTranslatePath(entry.BitrateKbps), func() (float64, error) {
				return deriveSSIMDBTarget(pctx, rc, p, seq, scores, entry.BitrateKbps)
			})
			if err == nil {
				p.CutoffSSIMDBTarget = ssimDB
			}
		}
	}
	return nil
}

// runSparseBitratePath drives the sparse bitrate-search path: average a
// bitrate binary search across a fixed sample of chunks, then set the run's
// global bitrate, VBV ceiling, and equivalent target CRF from the result.
func runSparseBitratePath(pctx context.Context, store *probecache.Store, rc *runctx.RunContext, p *pipeline.Pipeline, seq chunk.ChunkSequence, scores []ladder.ChunkComplexity) error {
	cfg := p.Config
	sources := sampledSources(seq, scores, sampleSeed(rc))
	if len(sources) == 0 {
		return nil
	}

	avgBest, err := probecache.GetOrCompute(store, rc.BitrateCachePath(), func() (int, error) {
		return deriveSparseBitrate(pctx, rc, p, sources)
	})
	if err != nil {
		return err
	}
	if avgBest <= 0 {
		return nil
	}

	cfg.Bitrate = avgBest
	cfg.MaxBitrate = int(math.Round(float64(avgBest) * 1.6))

	entry, err := probecache.GetOrCompute(store, rc.CRFCachePath(), func() (crfCacheEntry, error) {
		crf, err := deriveTargetCRF(pctx, rc, p, sources, avgBest)
		if err != nil {
			return crfCacheEntry{}, err
		}
		return crfCacheEntry{BitrateKbps: avgBest, CRF: crf}, nil
	})
	if err == nil && entry.CRF > 0 {
		cfg.CRF = entry.CRF
	}
	return nil
}

// sampledSources draws the "average" sample from scores and resolves it to
// the underlying chunks, capped at sparseBitrateSampleSize.
func sampledSources(seq chunk.ChunkSequence, scores []ladder.ChunkComplexity, seed uint64) []chunk.Chunk {
	sampled := ladder.Sample(scores, ladder.SampleAverage, seed)
	if len(sampled) > sparseBitrateSampleSize {
		sampled = sampled[:sparseBitrateSampleSize]
	}
	sources := make([]chunk.Chunk, 0, len(sampled))
	for _, s := range sampled {
		if c, ok := seq.At(s.ChunkIdx); ok {
			sources = append(sources, c)
		}
	}
	return sources
}

// deriveSparseBitrate runs BestBitrateSparse once per sampled chunk and
// averages the discovered bitrates into one sequence-wide estimate.
func deriveSparseBitrate(pctx context.Context, rc *runctx.RunContext, p *pipeline.Pipeline, sources []chunk.Chunk) (int, error) {
	cfg := p.Config
	var total, n int
	for _, source := range sources {
		source := source
		probeBitrate := func(bitrateKbps int) (metric.ProbePoint, error) {
			params := cfg.PrototypeEncoder.WithDistribution(encparams.VBR).WithBitrate(bitrateKbps)
			return cutoffProbe(pctx, rc, p, source, params)
		}
		result, err := ladder.BestBitrateSparse(sparseBitrateMinKbps, sparseBitrateMaxKbps, cfg.Vmaf, cfg.VmafProbeCount, probeBitrate)
		if err != nil {
			continue
		}
		total += result.BitrateKbps
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("adaptenc: sparse bitrate search: no successful probes")
	}
	return total / n, nil
}

// deriveTargetCRF wraps ladder.GetTargetCRF, probing each sampled chunk's
// CQ-mode bitrate response at candidate CRFs.
func deriveTargetCRF(pctx context.Context, rc *runctx.RunContext, p *pipeline.Pipeline, sources []chunk.Chunk, targetBitrateKbps int) (float64, error) {
	cfg := p.Config
	probe := func(sampleIdx int, crf float64) (int, error) {
		params := cfg.PrototypeEncoder.WithDistribution(encparams.CQ).WithCRF(crf)
		pt, err := cutoffProbe(pctx, rc, p, sources[sampleIdx], params)
		if err != nil {
			return 0, err
		}
		return pt.Bitrate, nil
	}
	return ladder.GetTargetCRF(len(sources), targetBitrateKbps, probe)
}

// deriveSSIMDBTarget wraps ladder.SSIMDBTarget, encoding each sampled chunk
// at bitrateKbps as 3-pass VBR with svt_bias_pct=90 and measuring SSIM.
func deriveSSIMDBTarget(pctx context.Context, rc *runctx.RunContext, p *pipeline.Pipeline, seq chunk.ChunkSequence, scores []ladder.ChunkComplexity, bitrateKbps int) (float64, error) {
	sources := sampledSources(seq, scores, sampleSeed(rc))
	if len(sources) == 0 {
		return 0, fmt.Errorf("adaptenc: ssim-dB target: no sample chunks")
	}

	cfg := p.Config
	probe := func(sampleIdx int, probeBitrateKbps int) (metric.SSIM, error) {
		source := sources[sampleIdx]
		params := cfg.PrototypeEncoder.
			WithDistribution(encparams.VBR).
			WithPasses(encparams.PassesThreeVBR).
			WithBitrate(probeBitrateKbps).
			WithKnob("svt_bias_pct", "90")
		params.OutputPath = rc.ChunkOutputPath(source.Idx, "_ssim_translate"+source.Extension())

		stats, err := driver.New(params).Run(pctx, source, driver.RunOptions{
			OverrideIfExists: true,
			CalculateSsim:    true,
		})
		if err != nil {
			return metric.SSIM{}, err
		}
		if stats.Ssim == nil {
			return metric.SSIM{}, fmt.Errorf("adaptenc: ssim-dB probe produced no SSIM result")
		}
		return *stats.Ssim, nil
	}
	return ladder.SSIMDBTarget(len(sources), bitrateKbps, probe)
}

// assignPerChunkBitrate scales meanBitrateKbps by each chunk's complexity
// relative to the sequence's average, so chunks scored harder than average
// get a larger share of the bitrate budget and easier chunks get less.
func assignPerChunkBitrate(p *pipeline.Pipeline, scores []ladder.ChunkComplexity, meanBitrateKbps int) {
	if len(scores) == 0 {
		return
	}
	var total float64
	for _, s := range scores {
		total += s.Complexity
	}
	avg := total / float64(len(scores))
	if avg <= 0 {
		return
	}
	for _, s := range scores {
		ratio := s.Complexity / avg
		kbps := int(float64(meanBitrateKbps) * ratio)
		if kbps < 1 {
			kbps = 1
		}
		p.PerChunkBitrateKbps[s.ChunkIdx] = kbps
	}
}

// deriveCutoffBitrate translates the config's guided CRF into a cutoff
// bitrate using a CRF-guided bitrate search against the hardest chunk in the
// complexity sample, the chunk most likely to expose an undershoot.
func deriveCutoffBitrate(pctx context.Context, rc *runctx.RunContext, p *pipeline.Pipeline, seq chunk.ChunkSequence, scores []ladder.ChunkComplexity) (int, error) {
	sampled := ladder.Sample(scores, ladder.SampleTopComplex, sampleSeed(rc))
	if len(sampled) == 0 {
		return 0, nil
	}
	source, ok := seq.At(sampled[len(sampled)-1].ChunkIdx)
	if !ok {
		return 0, nil
	}

	probeCRF := func(crf float64) (metric.ProbePoint, error) {
		return cutoffProbe(pctx, rc, p, source, p.Config.PrototypeEncoder.WithCRF(crf))
	}
	probeBitrate := func(bitrateKbps int) (metric.ProbePoint, error) {
		params := p.Config.PrototypeEncoder.WithDistribution(encparams.VBR).WithBitrate(bitrateKbps)
		return cutoffProbe(pctx, rc, p, source, params)
	}

	result, err := ladder.BestCRFGuided(p.Config.CRF, p.Config.CutoffBitrate, p.Config.Vmaf, p.Config.MaxProbes, probeCRF, probeBitrate)
	if err != nil {
		return 0, err
	}
	return result.BitrateKbps, nil
}

// cutoffProbe runs one throwaway probe encode for the cutoff-bitrate search,
// named distinctly from Pipeline.probeCRF since it probes a fixed sampled
// chunk rather than the chunk a Per-Chunk Pipeline is currently finalizing.
func cutoffProbe(pctx context.Context, rc *runctx.RunContext, p *pipeline.Pipeline, source chunk.Chunk, params encparams.Params) (metric.ProbePoint, error) {
	params.OutputPath = rc.ChunkOutputPath(source.Idx, "_cutoff_probe"+source.Extension())
	stats, err := driver.New(params).Run(pctx, source, driver.RunOptions{
		OverrideIfExists: true,
		CalculateVmaf:    true,
	})
	if err != nil {
		return metric.ProbePoint{}, err
	}
	return metric.ProbePoint{CRF: params.CRF, Bitrate: stats.BitrateKbps, Vmaf: stats.Vmaf}, nil
}

// complexityProbeBitrate runs the Bitrate Ladder's fixed, cheap complexity
// probe for one chunk and returns its resulting bitrate in kbps.
func complexityProbeBitrate(pctx context.Context, rc *runctx.RunContext, c chunk.Chunk) (int, error) {
	params := ladder.ComplexityProbeParams.Clone()
	params.Backend = rc.Cfg.PrototypeEncoder.Backend
	params.OutputPath = rc.ChunkOutputPath(c.Idx, "_complexity"+c.Extension())

	stats, err := driver.New(params).Run(pctx, c, driver.RunOptions{OverrideIfExists: true})
	if err != nil {
		return 0, err
	}
	return stats.BitrateKbps, nil
}

// sampleSeed derives a deterministic sample seed from the run's temp-folder
// root (rc.Root), so repeated runs with the same temp folder draw the same
// complexity sample.
func sampleSeed(rc *runctx.RunContext) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(rc.Root))
	return h.Sum64()
}
