package pipeline

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/metric"
)

func TestRecordStatsAppendsJSONLine(t *testing.T) {
	p := newTestPipeline(t)
	source := chunk.Chunk{SourcePath: "in.mkv", FirstFrame: 0, LastFrame: 239, FPS: 24, Idx: 2}

	result := AnalysisResult{
		Tag:     AnalyzerPlainCRF,
		Params:  encparams.Params{Distribution: encparams.CQ, CRF: 24},
		BestCRF: 24,
	}
	final := FinalizeResult{
		Stats: &metric.EncodeStats{Status: metric.StatusDone, BitrateKbps: 3000, ChunkIndex: 2},
		Tag:   FinalizerPlain,
	}

	p.recordStats(source, result, final, 1.5, 10.0)

	f, err := os.Open(p.RC.ChunksLogPath())
	if err != nil {
		t.Fatalf("open chunks.log: %v", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("chunks.log has no lines")
	}

	var entry chunkLogEntry
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal chunk log entry: %v", err)
	}
	if entry.ChunkIndex != 2 {
		t.Errorf("ChunkIndex = %d, want 2", entry.ChunkIndex)
	}
	if entry.TotalFPS <= 0 {
		t.Error("TotalFPS should be positive given frames and elapsed time")
	}
	if entry.BitrateKbps != 3000 {
		t.Errorf("BitrateKbps = %d, want 3000", entry.BitrateKbps)
	}
}

func TestAppendChunkLogToleratesMissingDir(t *testing.T) {
	p := newTestPipeline(t)
	p.RC.Root = "/nonexistent/path/for/test"

	// Must not panic; failure is logged via FileLog, which is nil-safe.
	p.appendChunkLog(chunkLogEntry{ChunkIndex: 1})
}
