package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/google/shlex"
	"gonum.org/v1/gonum/stat"

	draptoerr "github.com/five82/adaptenc/internal/errors"
)

// ReferenceDisplay governs VMAF's display-adapted scoring mode.
type ReferenceDisplay int

const (
	DisplayHD ReferenceDisplay = iota
	DisplayUHD
	DisplayPhone
)

// Options configures one VMAF invocation. This mirrors the external
// quality-metric tool's option surface.
type Options struct {
	UHDModel         bool
	PhoneModel       bool
	NoMotion         bool
	Neg              bool
	ReferenceDisplay ReferenceDisplay
	Threads          int
	LogPath          string

	// FfmpegPath defaults to "ffmpeg" if empty.
	FfmpegPath string
	// CommandTemplate overrides the default ffmpeg+libvmaf invocation
	// template; split into argv via shlex (ease's FfmpegVMAFConfig pattern).
	// Supports the placeholders {{.Distorted}}, {{.Reference}}, {{.LogPath}},
	// {{.Model}}, {{.NThreads}}.
	CommandTemplate string
}

// vmafLog is the JSON shape the external metric tool is contracted to
// produce: per-frame scores under frames[*].metrics.vmaf.
type vmafLog struct {
	Frames []struct {
		FrameNum int `json:"frameNum"`
		Metrics  struct {
			Vmaf float64 `json:"vmaf"`
		} `json:"metrics"`
	} `json:"frames"`
}

func modelName(opt Options) string {
	switch {
	case opt.Neg && opt.UHDModel:
		return "version=vmaf_4k_v0.6.1neg"
	case opt.Neg:
		return "version=vmaf_v0.6.1neg"
	case opt.UHDModel:
		return "version=vmaf_4k_v0.6.1"
	case opt.PhoneModel:
		return "version=vmaf_v0.6.1:phone_model=true"
	default:
		return "version=vmaf_v0.6.1"
	}
}

func defaultTemplate(opt Options) string {
	model := modelName(opt)
	filter := fmt.Sprintf(
		"libvmaf=log_fmt=json:log_path={{.LogPath}}:model=%s:n_threads={{.NThreads}}",
		model,
	)
	if opt.NoMotion {
		filter += ":feature=name=motion\\\\:enable=false"
	}
	return "-hide_banner -i {{.Distorted}} -i {{.Reference}} -lavfi " + filter + " -f null -"
}

// Probe runs the external VMAF tool comparing distorted against reference
// and returns the aggregated VmafResult. A subprocess or parse failure is a
// non-fatal MetricFailure: callers get a wrapped *errors.CoreError and must
// decide whether to degrade to a missing-metric ProbePoint.
func Probe(ctx context.Context, distorted, reference string, opt Options) (*VmafResult, error) {
	ffmpegPath := opt.FfmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	logPath := opt.LogPath
	if logPath == "" {
		f, err := os.CreateTemp("", "vmaf-*.json")
		if err != nil {
			return nil, draptoerr.NewMetricFailure("create vmaf log file", err)
		}
		logPath = f.Name()
		_ = f.Close()
		defer func() { _ = os.Remove(logPath) }()
	}

	tplStr := opt.CommandTemplate
	if tplStr == "" {
		tplStr = defaultTemplate(opt)
	}
	tplStr = strings.ReplaceAll(tplStr, "{{.Model}}", modelName(opt))
	cmdLine := renderTemplate(tplStr, distorted, reference, logPath, threads)

	args, err := shlex.Split(cmdLine)
	if err != nil {
		return nil, draptoerr.NewMetricFailure("parse vmaf command template", err)
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, draptoerr.NewMetricFailure(fmt.Sprintf("vmaf invocation failed: %s", string(out)), err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil, draptoerr.NewMetricFailure("read vmaf log", err)
	}

	var log vmafLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, draptoerr.NewMetricFailure("parse vmaf log", err)
	}
	if len(log.Frames) == 0 {
		return nil, draptoerr.NewMetricFailure("vmaf log has no frames", nil)
	}

	scores := make([]float64, len(log.Frames))
	for i, f := range log.Frames {
		scores[i] = f.Metrics.Vmaf
	}
	return Aggregate(scores), nil
}

func renderTemplate(tpl, distorted, reference, logPath string, threads int) string {
	repl := map[string]string{
		"{{.Distorted}}": distorted,
		"{{.Reference}}": reference,
		"{{.LogPath}}":    logPath,
		"{{.NThreads}}":   fmt.Sprintf("%d", threads),
	}
	out := tpl
	for k, v := range repl {
		out = strings.ReplaceAll(out, k, v)
	}
	return out
}

// Aggregate computes a VmafResult from raw per-frame scores. Percentile
// aggregation sorts ascending and selects floor(N*p), matching the Encoder
// Driver's documented percentile-selection rule.
func Aggregate(scores []float64) *VmafResult {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	n := len(sorted)

	percentile := func(p float64) float64 {
		idx := int(math.Floor(float64(n) * p))
		if idx >= n {
			idx = n - 1
		}
		if idx < 0 {
			idx = 0
		}
		return sorted[idx]
	}

	return &VmafResult{
		Mean:         stat.Mean(scores, nil),
		HarmonicMean: stat.HarmonicMean(scores, nil),
		Min:          sorted[0],
		Max:          sorted[n-1],
		P1:           percentile(0.01),
		P5:           percentile(0.05),
		P10:          percentile(0.10),
		P25:          percentile(0.25),
		P50:          percentile(0.50),
	}
}
