// Package ctx implements RunContext: the scope-owned temp-folder resource
// shared by the Bitrate Ladder, Probe Cache, and Per-Chunk Pipeline.
package ctx

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/five82/adaptenc/internal/config"
	draptoerr "github.com/five82/adaptenc/internal/errors"
)

// Subtree layout rooted at the RunContext's temp folder.
const (
	subtreeBitrate             = "adapt/bitrate"
	subtreeCRF                 = "adapt/crf"
	subtreeCRFToBitrate        = "adapt/crf_to_bitrate"
	subtreeBitrateComplexity   = "adapt/bitrate/complexity"
	subtreeSSIMTranslate       = "adapt/bitrate/ssim_translate"
	chunksLogName              = "chunks.log"
)

// RunContext owns the prototype encoder params (via Config) and the temp
// folder for one run. Per §3: the Ladder borrows the ChunkSequence read-only
// and writes cache files under this tree; each Per-Chunk Pipeline owns a
// freshly cloned Encoder Driver, never this context's prototype directly.
type RunContext struct {
	Cfg  *config.Config
	Root string
}

// New creates a RunContext rooted at cfg.TempFolder, ensuring every cache
// subtree exists. Returns a ConfigError if the temp folder can't be created.
func New(cfg *config.Config) (*RunContext, error) {
	if cfg.TempFolder == "" {
		return nil, draptoerr.NewConfigError("temp_folder must be set")
	}
	rc := &RunContext{Cfg: cfg, Root: cfg.TempFolder}
	for _, subtree := range []string{
		subtreeBitrate,
		subtreeCRF,
		subtreeCRFToBitrate,
		subtreeBitrateComplexity,
		subtreeSSIMTranslate,
	} {
		if err := ensureDir(filepath.Join(rc.Root, subtree)); err != nil {
			return nil, draptoerr.NewConfigError("create temp subtree " + subtree + ": " + err.Error())
		}
	}
	return rc, nil
}

// BitrateCachePath is the best-avg-bitrate scalar cache file.
func (rc *RunContext) BitrateCachePath() string {
	return filepath.Join(rc.Root, subtreeBitrate, "cache.pt")
}

// ComplexityCachePath is the per-sequence complexity-scores cache file.
func (rc *RunContext) ComplexityCachePath() string {
	return filepath.Join(rc.Root, subtreeBitrateComplexity, "cache.pt")
}

// CRFCachePath is the (cutoff_bitrate, avg_best_crf) pair cache file.
func (rc *RunContext) CRFCachePath() string {
	return filepath.Join(rc.Root, subtreeCRF, "cache.pt")
}

// CRFToBitratePath is the crf_to_bitrate translation cache file.
func (rc *RunContext) CRFToBitratePath() string {
	return filepath.Join(rc.Root, subtreeCRFToBitrate, "cache.pt")
}

// SSIMTranslatePath is the ssim-dB target cache file for a given bitrate.
func (rc *RunContext) SSIMTranslatePath(bitrateKbps int) string {
	return filepath.Join(rc.Root, subtreeSSIMTranslate, strconv.Itoa(bitrateKbps)+".pl")
}

// ChunkOutputPath is a final per-chunk artifact path, index-prefixed so
// concurrent chunk tasks never collide.
func (rc *RunContext) ChunkOutputPath(chunkIndex int, ext string) string {
	return filepath.Join(rc.Root, strconv.Itoa(chunkIndex)+ext)
}

// ChunksLogPath is the JSONL stats log, one EncodeStats line per chunk.
func (rc *RunContext) ChunksLogPath() string {
	return filepath.Join(rc.Root, chunksLogName)
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
