// Package driver implements the Encoder Driver: an abstract handle over a
// concrete encoder back-end (SVT-AV1, x264, aomenc, or an inert placeholder).
package driver

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/five82/adaptenc/internal/chunk"
	draptoerr "github.com/five82/adaptenc/internal/errors"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/ffmpeg"
	"github.com/five82/adaptenc/internal/metric"
)

// minOutputBytes is the threshold below which an output file is considered
// missing: a failure to produce an output file (missing or < 100 bytes) is
// reported as FAILED.
const minOutputBytes = 100

// Backend identifies a concrete encoder back-end by tag.
type Backend string

const (
	BackendSVTAV1  Backend = "svt-av1"
	BackendX264    Backend = "x264"
	BackendAomenc  Backend = "aomenc"
	BackendH265    Backend = "h265"  // placeholder
	BackendVP8     Backend = "vp8"   // placeholder
	BackendVP9     Backend = "vp9"   // placeholder
)

// Capability describes what a back-end supports. RateDistModes backs
// SupportsRateDistribution, which the analyzer factory consults to decide
// VBV-mode eligibility.
type Capability struct {
	Extension       string
	FloatCRF        bool
	CRFMin, CRFMax  float64
	ProbeSpeed      int // per-backend fast probe speed; the complexity scorer does not read it
	CRFOffset       int // per-backend probe-CRF offset
	RateDistModes   map[encparams.RateDistribution]bool
	RequiredBinary  string
}

// capabilities is the per-back-end table, grounded in the CRF ranges the
// original Python implementation (alabamaEncode) hardcodes per-backend.
var capabilities = map[Backend]Capability{
	BackendSVTAV1: {
		Extension: ".ivf", FloatCRF: false, CRFMin: 22, CRFMax: 38,
		ProbeSpeed: 12, CRFOffset: 1,
		RateDistModes: map[encparams.RateDistribution]bool{
			encparams.CQ: true, encparams.CQVBV: true, encparams.VBR: true, encparams.VBRVBV: true,
		},
		RequiredBinary: "SvtAv1EncApp",
	},
	BackendX264: {
		Extension: ".264", FloatCRF: true, CRFMin: 10, CRFMax: 55,
		ProbeSpeed: 8, CRFOffset: 0,
		RateDistModes: map[encparams.RateDistribution]bool{
			encparams.CQ: true, encparams.VBR: true,
		},
		RequiredBinary: "x264",
	},
	BackendAomenc: {
		Extension: ".ivf", FloatCRF: false, CRFMin: 18, CRFMax: 40,
		ProbeSpeed: 8, CRFOffset: 0,
		RateDistModes: map[encparams.RateDistribution]bool{
			encparams.CQ: true,
		},
		RequiredBinary: "aomenc",
	},
	// H.265/VP8/VP9 are recognized back-end tags with no invocation
	// implemented: RequiredBinaries returns none for them and Run returns a
	// ConfigError rather than silently no-op encoding.
	BackendH265: {Extension: ".hevc", CRFMin: 0, CRFMax: 51, RequiredBinary: ""},
	BackendVP8:  {Extension: ".ivf", CRFMin: 0, CRFMax: 63, RequiredBinary: ""},
	BackendVP9:  {Extension: ".ivf", CRFMin: 0, CRFMax: 63, RequiredBinary: ""},
}

// CapabilityFor returns the capability table entry for a back-end tag.
func CapabilityFor(b Backend) (Capability, bool) {
	c, ok := capabilities[b]
	return c, ok
}

// SupportsRateDistribution reports whether a back-end can encode with the
// given rate-distribution mode. Callers must check this before selecting any
// non-CQ mode.
func SupportsRateDistribution(b Backend, mode encparams.RateDistribution) bool {
	caps, ok := capabilities[b]
	if !ok {
		return false
	}
	return caps.RateDistModes[mode]
}

// Driver is an Encoder Driver handle over one encoder back-end and parameter
// set. Not thread-safe and not re-entrant: callers clone per chunk via
// encparams.Params.Clone before mutating.
type Driver struct {
	Params       encparams.Params
	RemoteScratch string // non-empty enables remote-dispatch scratch-then-copy mode
}

// New returns a Driver for the given params.
func New(params encparams.Params) *Driver {
	return &Driver{Params: params}
}

// Update applies a typed partial update, returning a new Driver (the
// underlying params are cloned, never mutated in place).
func (d *Driver) Update(fn func(encparams.Params) encparams.Params) *Driver {
	return &Driver{Params: fn(d.Params.Clone()), RemoteScratch: d.RemoteScratch}
}

// Extension returns the back-end's chunk file extension.
func (d *Driver) Extension() string {
	caps, ok := capabilities[Backend(d.Params.Backend)]
	if !ok {
		return ".mkv"
	}
	return caps.Extension
}

// RequiredBinaries returns the binaries this back-end needs on PATH.
func (d *Driver) RequiredBinaries() []string {
	caps, ok := capabilities[Backend(d.Params.Backend)]
	if !ok || caps.RequiredBinary == "" {
		return nil
	}
	return []string{caps.RequiredBinary}
}

// RunOptions configures one run() invocation.
type RunOptions struct {
	OverrideIfExists bool
	Timeout          time.Duration
	CalculateVmaf    bool
	CalculateSsim    bool
	VmafOptions      metric.Options
}

// DryRun returns the shell command(s) this Driver would execute, without
// running them. Pure function of Params + source chunk: calling it twice
// with the same inputs yields the same commands.
func (d *Driver) DryRun(source chunk.Chunk) [][]string {
	return [][]string{d.buildCommand(source)}
}

func (d *Driver) buildCommand(source chunk.Chunk) []string {
	filters := ffmpeg.NewVideoFilterChain()
	for _, f := range d.Params.VideoFilters {
		filters.AddFilter(f)
	}

	switch Backend(d.Params.Backend) {
	case BackendSVTAV1:
		builder := ffmpeg.NewSvtAv1ParamsBuilder()
		for k, v := range d.Params.CodecKnobs {
			builder.AddParam(k, v)
		}
		args := []string{
			"--preset", strconv.Itoa(d.Params.Speed),
			"--lp", strconv.Itoa(maxInt(d.Params.Threads, 1)),
			"-b", d.Params.OutputPath,
		}
		if d.Params.Distribution == encparams.VBR || d.Params.Distribution == encparams.VBRVBV {
			args = append(args, "--rc", "1", "--tbr", strconv.Itoa(d.Params.Bitrate))
		} else {
			args = append(args, "--rc", "0", "--crf", strconv.Itoa(int(d.Params.CRF)))
		}
		if kv := builder.Build(); kv != "" {
			args = append(args, "--svtav1-params", kv)
		}
		return append([]string{"SvtAv1EncApp", "-i", "stdin", "--progress", "2"}, args...)
	case BackendX264:
		args := []string{"x264"}
		if d.Params.Distribution == encparams.VBR || d.Params.Distribution == encparams.VBRVBV {
			args = append(args, "--bitrate", strconv.Itoa(d.Params.Bitrate))
		} else {
			args = append(args, "--crf", strconv.FormatFloat(d.Params.CRF, 'f', -1, 64))
		}
		if !filters.IsEmpty() {
			args = append(args, "--vf", filters.Build())
		}
		return append(args, "-o", d.Params.OutputPath, source.SourcePath)
	case BackendAomenc:
		args := []string{"aomenc", "--cq-level=" + strconv.Itoa(int(d.Params.CRF))}
		if !filters.IsEmpty() {
			args = append(args, "--vf", filters.Build())
		}
		return append(args, "-o", d.Params.OutputPath, source.SourcePath)
	default:
		return []string{string(d.Params.Backend), "-o", d.Params.OutputPath, source.SourcePath}
	}
}

// Run executes the Encoder Driver's command(s) for one chunk and returns
// EncodeStats. An existing output of at least minOutputBytes is reused unless
// opt.OverrideIfExists is set; VMAF is measured on the final output when
// opt.CalculateVmaf is set.
func (d *Driver) Run(pctx context.Context, source chunk.Chunk, opt RunOptions) (*metric.EncodeStats, error) {
	outputPath := d.Params.OutputPath
	if !opt.OverrideIfExists {
		if info, err := os.Stat(outputPath); err == nil && info.Size() >= minOutputBytes {
			return &metric.EncodeStats{
				Status:          metric.StatusDone,
				OutputSizeBytes: uint64(info.Size()),
				ChunkIndex:      source.Idx,
			}, nil
		}
	}

	required := d.RequiredBinaries()
	for _, bin := range required {
		if _, err := exec.LookPath(bin); err != nil {
			return nil, draptoerr.NewConfigError("required binary not found: " + bin)
		}
	}
	if len(required) == 0 {
		if _, ok := capabilities[Backend(d.Params.Backend)]; ok {
			return nil, draptoerr.NewConfigError("backend " + d.Params.Backend + " has no invocation implemented")
		}
	}

	runCtx := pctx
	var cancel context.CancelFunc
	if opt.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(pctx, opt.Timeout)
		defer cancel()
	}

	finalOutput := outputPath
	runDriver := d
	if d.RemoteScratch != "" {
		outputPath = filepath.Join(d.RemoteScratch, filepath.Base(finalOutput))
		scratchParams := d.Params.Clone()
		scratchParams.OutputPath = outputPath
		runDriver = &Driver{Params: scratchParams}
	}

	args := runDriver.buildCommand(source)
	start := time.Now()
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	stderr, err := cmd.CombinedOutput()
	elapsed := time.Since(start).Seconds()
	if elapsed < 1 {
		elapsed = 1 // clamp to >=1s to avoid divide-by-zero downstream
	}

	if err != nil {
		if runCtx.Err() != nil {
			return nil, draptoerr.NewTimeoutError(source.Idx, runCtx.Err().Error())
		}
		return nil, draptoerr.NewEncodeFailure(source.Idx, "encoder subprocess failed: "+string(stderr), err)
	}

	info, statErr := os.Stat(outputPath)
	if statErr != nil || info.Size() < minOutputBytes {
		return nil, draptoerr.NewEncodeFailure(source.Idx, "output file missing or undersized", statErr)
	}

	if d.RemoteScratch != "" {
		if err := copyAndRemove(outputPath, finalOutput); err != nil {
			return nil, draptoerr.NewEncodeFailure(source.Idx, "failed to copy scratch output to final path", err)
		}
		info, _ = os.Stat(finalOutput)
	}

	duration := source.Duration()
	bitrateKbps := 0
	if duration > 0 {
		bitrateKbps = int((float64(info.Size()) * 8 / 1000) / duration)
	}

	stats := &metric.EncodeStats{
		Status:          metric.StatusDone,
		ElapsedSeconds:  elapsed,
		OutputSizeBytes: uint64(info.Size()),
		BitrateKbps:     bitrateKbps,
		ChunkIndex:      source.Idx,
	}

	if opt.CalculateVmaf {
		vr, err := metric.Probe(pctx, finalOutput, source.SourcePath, opt.VmafOptions)
		if err != nil {
			// MetricFailure is non-fatal: log-equivalent is left to the caller,
			// EncodeStats carries no VmafResult and search strategies must
			// degrade to mean-only scoring.
			stats.FailureReason = err.Error()
		} else {
			stats.Vmaf = vr
		}
	}

	return stats, nil
}

func copyAndRemove(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
