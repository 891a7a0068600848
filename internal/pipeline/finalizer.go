package pipeline

import (
	"context"
	"os"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/driver"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/metric"
)

// FinalizeResult is the outcome of the Finalizer step: the authoritative
// EncodeStats, which finalizer tag ran, and whether WeirdCappedCRF's
// bitrate-overshoot path triggered a re-encode.
type FinalizeResult struct {
	Stats     *metric.EncodeStats
	Tag       FinalizerTag
	ReEncoded bool
}

// SelectFinalizer picks the finalizer strategy: WeirdCappedCRF when the run
// is in CRF-bitrate (capped) mode, Plain otherwise. This mirrors the
// AnalyzerCappedCRF selection condition, since the two exist to serve the
// same capped-CRF workflow.
func (p *Pipeline) SelectFinalizer() FinalizerTag {
	if p.Config.CRFBitrateMode {
		return FinalizerWeirdCapped
	}
	return FinalizerPlain
}

func (p *Pipeline) finalize(ctx context.Context, source chunk.Chunk, result AnalysisResult) (FinalizeResult, error) {
	switch p.SelectFinalizer() {
	case FinalizerWeirdCapped:
		return p.finalizeWeirdCapped(ctx, source, result)
	default:
		return p.finalizePlain(ctx, source, result)
	}
}

// finalizePlain runs the configured encode once and returns its stats.
func (p *Pipeline) finalizePlain(ctx context.Context, source chunk.Chunk, result AnalysisResult) (FinalizeResult, error) {
	stats, err := driver.New(result.Params).Run(ctx, source, driver.RunOptions{
		Timeout:       p.chunkTimeout(),
		CalculateVmaf: p.Config.CalculateFinalVmaf,
		CalculateSsim: p.Config.CalculateFinalSsim,
		VmafOptions:   p.vmafOptions(),
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{Stats: stats, Tag: FinalizerPlain}, nil
}

// finalizeWeirdCapped runs once at the selected CRF; if the measured bitrate
// exceeds the sequence cutoff, it deletes that output and re-encodes as
// 3-pass VBR targeting min(measured bitrate, cutoff bitrate).
func (p *Pipeline) finalizeWeirdCapped(ctx context.Context, source chunk.Chunk, result AnalysisResult) (FinalizeResult, error) {
	stats, err := driver.New(result.Params).Run(ctx, source, driver.RunOptions{
		Timeout:       p.chunkTimeout(),
		CalculateVmaf: p.Config.CalculateFinalVmaf,
		CalculateSsim: p.Config.CalculateFinalSsim,
		VmafOptions:   p.vmafOptions(),
	})
	if err != nil {
		return FinalizeResult{}, err
	}

	if p.CutoffBitrateKbps <= 0 || stats.BitrateKbps <= p.CutoffBitrateKbps {
		return FinalizeResult{Stats: stats, Tag: FinalizerWeirdCapped}, nil
	}

	p.FileLog.Info("chunk %d: measured bitrate %d kbps exceeds cutoff %d kbps, re-encoding as VBR",
		source.Idx, stats.BitrateKbps, p.CutoffBitrateKbps)

	if err := os.Remove(result.Params.OutputPath); err != nil && !os.IsNotExist(err) {
		return FinalizeResult{}, err
	}

	target := stats.BitrateKbps
	if p.CutoffBitrateKbps < target {
		target = p.CutoffBitrateKbps
	}

	vbrParams := result.Params.
		WithDistribution(encparams.VBR).
		WithPasses(encparams.PassesThreeVBR).
		WithBitrate(target)

	reStats, err := driver.New(vbrParams).Run(ctx, source, driver.RunOptions{
		OverrideIfExists: true,
		Timeout:          p.chunkTimeout(),
		CalculateVmaf:    p.Config.CalculateFinalVmaf,
		CalculateSsim:    p.Config.CalculateFinalSsim,
		VmafOptions:      p.vmafOptions(),
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	return FinalizeResult{Stats: reStats, Tag: FinalizerWeirdCapped, ReEncoded: true}, nil
}
