package pipeline

import (
	"encoding/json"
	"os"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/metric"
)

// chunkLogEntry is one JSON line appended to chunks.log.
type chunkLogEntry struct {
	ChunkIndex        int               `json:"chunk_index"`
	State             string            `json:"state"`
	Analyzer          string            `json:"analyzer,omitempty"`
	Finalizer         string            `json:"finalizer,omitempty"`
	BestCRF           float64           `json:"best_crf,omitempty"`
	FinalScore        float64           `json:"final_score,omitempty"`
	BitrateKbps       int               `json:"bitrate_kbps,omitempty"`
	AnalyzeSeconds    float64           `json:"analyze_seconds,omitempty"`
	FinalizeSeconds   float64           `json:"finalize_seconds,omitempty"`
	TotalFPS          float64           `json:"total_fps,omitempty"`
	TargetMissPct     float64           `json:"target_miss_pct,omitempty"`
	ReEncoded         bool              `json:"re_encoded,omitempty"`
	Vmaf              *metric.VmafResult `json:"vmaf,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// recordStats computes the per-chunk stats and appends them to chunks.log,
// best-effort.
func (p *Pipeline) recordStats(source chunk.Chunk, result AnalysisResult, final FinalizeResult, analyzeElapsed, finalizeElapsed float64) {
	totalElapsed := analyzeElapsed + finalizeElapsed
	totalFPS := 0.0
	if totalElapsed > 0 {
		totalFPS = float64(source.FrameCount()) / totalElapsed
	}

	entry := chunkLogEntry{
		ChunkIndex:      source.Idx,
		State:           StateSucceeded.String(),
		Analyzer:        string(result.Tag),
		Finalizer:       string(final.Tag),
		BestCRF:         result.BestCRF,
		FinalScore:      result.FinalScore,
		AnalyzeSeconds:  analyzeElapsed,
		FinalizeSeconds: finalizeElapsed,
		TotalFPS:        totalFPS,
		ReEncoded:       final.ReEncoded,
	}
	if final.Stats != nil {
		entry.BitrateKbps = final.Stats.BitrateKbps
		entry.Vmaf = final.Stats.Vmaf
		entry.TargetMissPct = targetMissPct(result.Params, final.Stats.BitrateKbps)
		final.Stats.TargetMissPct = entry.TargetMissPct
	}

	p.appendChunkLog(entry)
}

// targetMissPct returns (measured-requested)/requested*100 for VBR-family
// rate distributions, where "requested" is meaningful; 0 for CRF-family
// modes, which have no bitrate target to miss.
func targetMissPct(params encparams.Params, measuredKbps int) float64 {
	switch params.Distribution {
	case encparams.VBR, encparams.VBRVBV:
		if params.Bitrate <= 0 {
			return 0
		}
		return float64(measuredKbps-params.Bitrate) / float64(params.Bitrate) * 100
	default:
		return 0
	}
}

// appendChunkLog appends one JSON line to the RunContext's chunks.log.
// Best-effort: a write failure is logged, not returned, since chunk stats
// logging must never abort an otherwise-successful chunk, mirroring how the
// Probe Cache treats its own write failures as non-fatal.
func (p *Pipeline) appendChunkLog(entry chunkLogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		p.FileLog.Warn("chunk %d: failed to marshal stats: %v", entry.ChunkIndex, err)
		return
	}

	f, err := os.OpenFile(p.RC.ChunksLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		p.FileLog.Warn("chunk %d: failed to open chunks.log: %v", entry.ChunkIndex, err)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		p.FileLog.Warn("chunk %d: failed to append chunks.log: %v", entry.ChunkIndex, err)
	}
}
