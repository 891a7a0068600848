package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/config"
	runctx "github.com/five82/adaptenc/internal/ctx"
	"github.com/five82/adaptenc/internal/driver"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/logging"
	"github.com/five82/adaptenc/internal/metric"
	"github.com/five82/adaptenc/internal/search"
)

// defaultChunkTimeout is the per-chunk finalize timeout applied to the
// final authoritative encode step.
const defaultChunkTimeout = 1800 * time.Second

// Pipeline runs the Analyzer chain and Finalizer for chunks belonging to one
// RunContext, tracking CRF predictions across chunks as it goes. Not
// thread-safe across goroutines sharing a Pipeline (the Tracker is, via its
// own mutex; PerChunkBitrateKbps is set once before dispatch and read-only
// afterward).
type Pipeline struct {
	Config  *config.Config
	RC      *runctx.RunContext
	Tracker *search.CRFTracker
	FileLog *logging.FileLogger

	// PerChunkBitrateKbps is consulted by the VBRPerChunk analyzer, keyed by
	// chunk index. Populated by the Bitrate Ladder before dispatch.
	PerChunkBitrateKbps map[int]int

	// CutoffBitrateKbps bounds the WeirdCappedCRF finalizer's VBR fallback.
	CutoffBitrateKbps int

	// CutoffSSIMDBTarget is the ssim-dB target translation's result at
	// CutoffBitrateKbps, recorded for stats/logging; zero if never computed.
	CutoffSSIMDBTarget float64
}

// New returns a Pipeline scoped to one RunContext.
func New(cfg *config.Config, rc *runctx.RunContext, fileLog *logging.FileLogger) *Pipeline {
	return &Pipeline{
		Config:              cfg,
		RC:                  rc,
		Tracker:             search.NewTracker(),
		FileLog:             fileLog,
		PerChunkBitrateKbps: make(map[int]int),
	}
}

// RunChunk drives one chunk through Created -> Analyzing -> Finalizing ->
// (Succeeded | Failed), recording stats to chunks.log along the way.
// A non-nil error means this chunk failed; the caller (the Worker Pool) must
// not let that abort sibling chunks.
func (p *Pipeline) RunChunk(ctx context.Context, source chunk.Chunk) (*metric.EncodeStats, error) {
	state := StateAnalyzing
	p.FileLog.Debug("chunk %d: %s", source.Idx, state)

	analyzeStart := time.Now()
	result, err := p.Analyze(ctx, source)
	analyzeElapsed := time.Since(analyzeStart).Seconds()
	if err != nil {
		p.FileLog.Error("chunk %d: analyze failed: %v", source.Idx, err)
		return nil, fmt.Errorf("pipeline: chunk %d analyze: %w", source.Idx, err)
	}

	if p.Config.DryRun {
		d := driver.New(result.Params)
		for _, cmd := range d.DryRun(source) {
			p.FileLog.Info("chunk %d dry-run: %v", source.Idx, cmd)
		}
		return &metric.EncodeStats{Status: metric.StatusDone, ChunkIndex: source.Idx}, nil
	}

	state = StateFinalizing
	finalizeStart := time.Now()
	final, err := p.finalize(ctx, source, result)
	finalizeElapsed := time.Since(finalizeStart).Seconds()
	if err != nil {
		state = StateFailed
		p.FileLog.Error("chunk %d: finalize failed: %v", source.Idx, err)
		p.appendChunkLog(chunkLogEntry{
			ChunkIndex: source.Idx,
			State:      state.String(),
			Analyzer:   string(result.Tag),
			Error:      err.Error(),
		})
		return nil, fmt.Errorf("pipeline: chunk %d finalize: %w", source.Idx, err)
	}

	state = StateSucceeded
	p.FileLog.Debug("chunk %d: %s", source.Idx, state)
	p.Tracker.Record(source.Idx, result.BestCRF)
	p.recordStats(source, result, final, analyzeElapsed, finalizeElapsed)
	return final.Stats, nil
}

// probeCRF runs one CRF-axis probe: a throwaway encode at crf plus a VMAF
// measurement, consumed by the target-VMAF search strategies.
func (p *Pipeline) probeCRF(ctx context.Context, base encparams.Params, source chunk.Chunk, crf float64) (metric.ProbePoint, error) {
	probeParams := base.WithCRF(crf)
	probeParams.OutputPath = p.RC.ChunkOutputPath(source.Idx, fmt.Sprintf("_probe_crf%.2f%s", crf, source.Extension()))

	stats, err := driver.New(probeParams).Run(ctx, source, driver.RunOptions{
		OverrideIfExists: true,
		CalculateVmaf:    true,
		VmafOptions:      p.vmafOptions(),
	})
	if err != nil {
		return metric.ProbePoint{}, err
	}
	return metric.ProbePoint{CRF: crf, Bitrate: stats.BitrateKbps, Vmaf: stats.Vmaf}, nil
}

// vmafOptions translates the run config into the Metric Probe's options.
func (p *Pipeline) vmafOptions() metric.Options {
	display := metric.DisplayHD
	switch p.Config.VmafReferenceDisplay {
	case "uhd":
		display = metric.DisplayUHD
	case "phone":
		display = metric.DisplayPhone
	}
	return metric.Options{
		UHDModel:         p.Config.Vmaf4KModel,
		PhoneModel:       p.Config.VmafPhoneModel,
		NoMotion:         p.Config.VmafNoMotion,
		ReferenceDisplay: display,
	}
}

func (p *Pipeline) chunkTimeout() time.Duration {
	if p.Config.ChunkTimeout > 0 {
		return p.Config.ChunkTimeout
	}
	return defaultChunkTimeout
}
