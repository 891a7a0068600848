// Command adaptenc is the CLI entry point for the per-chunk adaptive
// encoding controller. It discovers a directory of already-split chunk
// files, builds a ChunkSequence from their ffprobe-reported durations and
// the shared --fps, and drives them through the Bitrate Ladder and Per-Chunk Pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/adaptenc"
	"github.com/five82/adaptenc/internal/config"
	runctx "github.com/five82/adaptenc/internal/ctx"
	"github.com/five82/adaptenc/internal/discovery"
	"github.com/five82/adaptenc/internal/ladder"
	"github.com/five82/adaptenc/internal/probecache"
	"github.com/five82/adaptenc/internal/reporter"
)

const appVersion = "0.1.0"

// runFlags holds the persistent and encode-specific flag values bound to
// the root and encode commands.
type runFlags struct {
	tempFolder string
	workers    int
	probes     int
	crf        float64
	bitrate    int
	vmaf       float64
	backend    string
	dryRun     bool
	jsonOutput bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:     "adaptenc",
		Short:   "Per-chunk adaptive video re-encoding controller",
		Version: appVersion,
	}
	root.PersistentFlags().StringVar(&flags.tempFolder, "temp-folder", "", "scratch directory for ladder caches and chunk output (required)")
	root.PersistentFlags().IntVar(&flags.workers, "workers", config.DefaultMultiprocessWorkers, "outer worker pool concurrency")
	root.PersistentFlags().IntVar(&flags.probes, "probes", config.DefaultSimultaneousProbes, "nested ladder probe concurrency")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "emit NDJSON progress events instead of terminal output")

	root.AddCommand(newEncodeCmd(flags))
	root.AddCommand(newProbeCacheCmd(flags))
	return root
}

func newEncodeCmd(flags *runFlags) *cobra.Command {
	var chunksDir string
	var fps float64

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a directory of pre-split chunk files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd.Context(), flags, chunksDir, fps)
		},
	}
	cmd.Flags().StringVar(&chunksDir, "chunks-dir", "", "directory containing pre-split chunk files (required)")
	cmd.Flags().Float64Var(&fps, "fps", 24, "frame rate shared by every chunk in chunks-dir")
	cmd.Flags().Float64Var(&flags.crf, "crf", 28, "prototype CRF")
	cmd.Flags().IntVar(&flags.bitrate, "bitrate", 0, "VBR target bitrate in kbps (0 disables VBR)")
	cmd.Flags().Float64Var(&flags.vmaf, "vmaf", 0, "target VMAF score (0 disables VMAF targeting)")
	cmd.Flags().StringVar(&flags.backend, "backend", "svt-av1", "encoder backend tag")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print the commands that would run without encoding")
	_ = cmd.MarkFlagRequired("chunks-dir")
	return cmd
}

func newProbeCacheCmd(flags *runFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe-cache",
		Short: "Inspect the ladder's probe cache for the configured temp folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.tempFolder == "" {
				return fmt.Errorf("--temp-folder is required")
			}
			rc, err := runctx.New(config.NewConfig(flags.tempFolder))
			if err != nil {
				return err
			}
			store := probecache.New()
			var scores []ladder.ChunkComplexity
			if store.Get(rc.ComplexityCachePath(), &scores) {
				fmt.Printf("complexity cache: %d entries\n", len(scores))
			} else {
				fmt.Println("complexity cache: empty or not found")
			}
			return nil
		},
	}
	return cmd
}

func runEncode(ctx context.Context, flags *runFlags, chunksDir string, fps float64) error {
	if flags.tempFolder == "" {
		return fmt.Errorf("--temp-folder is required")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.NewConfig(flags.tempFolder)
	cfg.PrototypeEncoder.Backend = flags.backend
	cfg.CRF = flags.crf
	cfg.Bitrate = flags.bitrate
	cfg.Vmaf = flags.vmaf
	cfg.CRFBasedVmafTargeting = flags.vmaf > 0
	cfg.MultiprocessWorkers = flags.workers
	cfg.SimultaneousProbes = flags.probes
	cfg.DryRun = flags.dryRun
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	files, err := discovery.FindVideoFilesWithLogging(chunksDir, nil)
	if err != nil {
		return err
	}

	seq := sequenceFromFiles(files.Files, fps, probeDuration)

	var rep reporter.Reporter
	if flags.jsonOutput {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewTerminalReporter()
	}

	result, err := adaptenc.Run(ctx, cfg, seq, rep)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d chunks failed", len(result.Failures), seq.Len())
	}
	rep.OperationComplete(fmt.Sprintf("encoded %d chunks", seq.Len()))
	return nil
}
