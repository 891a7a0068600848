// Package ladder implements the Bitrate Ladder: per-chunk complexity
// scoring, percentile-sliced sampling, and the sparse-bitrate and
// CRF-guided bitrate-selection paths.
package ladder

import (
	"math"

	"github.com/five82/adaptenc/internal/chunk"
	"github.com/five82/adaptenc/internal/encparams"
	"github.com/five82/adaptenc/internal/worker"
)

// ComplexityProbeParams is the fixed, cheap probe configuration used only to
// rank chunks by complexity — never the final encode settings.
var ComplexityProbeParams = encparams.Params{
	Speed:      12,
	Passes:     encparams.Passes1,
	CRF:        16,
	Threads:    1,
	GrainSynth: 0,
}

// ComplexityFunc runs the fixed complexity probe for a chunk and returns the
// resulting bitrate in kbps. Callers typically back this with the Probe
// Cache so repeated runs against the same chunk are free.
type ComplexityFunc func(c chunk.Chunk) (bitrateKbps int, err error)

// ScoreComplexity converts a probe bitrate into a complexity score via
// ln(bitrate); chunks with near-zero bitrate (near-static content) score
// near zero rather than producing -Inf.
func ScoreComplexity(bitrateKbps int) float64 {
	if bitrateKbps < 1 {
		return 0
	}
	return math.Log(float64(bitrateKbps))
}

// ChunkComplexity pairs a chunk index with its measured complexity.
type ChunkComplexity struct {
	ChunkIdx   int
	Complexity float64
}

// ScoreAll runs probe over every chunk in seq, returning one ChunkComplexity
// per chunk in sequence order. A per-chunk probe failure yields a zero
// complexity for that chunk rather than aborting the batch: complexity
// sampling degrades gracefully, treating a missing complexity the same
// as no signal.
func ScoreAll(seq chunk.ChunkSequence, probe ComplexityFunc) []ChunkComplexity {
	out := make([]ChunkComplexity, seq.Len())
	for i, c := range seq.Chunks {
		bitrate, err := probe(c)
		complexity := 0.0
		if err == nil {
			complexity = ScoreComplexity(bitrate)
		}
		out[i] = ChunkComplexity{ChunkIdx: c.Idx, Complexity: complexity}
	}
	return out
}

// ScoreAllBounded is ScoreAll's concurrent counterpart: complexity probes
// for every chunk in seq run through the nested simultaneous_probes pool
// (at most permits in flight at once), independent of the outer Worker
// Pool's own concurrency budget. Probe failures still degrade to a zero
// complexity rather than aborting the batch.
func ScoreAllBounded(seq chunk.ChunkSequence, permits int, probe ComplexityFunc) []ChunkComplexity {
	tasks := make([]func() (float64, error), seq.Len())
	for i, c := range seq.Chunks {
		c := c
		tasks[i] = func() (float64, error) {
			bitrate, err := probe(c)
			if err != nil {
				return 0, err
			}
			return ScoreComplexity(bitrate), nil
		}
	}

	results := worker.RunBounded(permits, tasks)
	out := make([]ChunkComplexity, seq.Len())
	for i, c := range seq.Chunks {
		complexity := 0.0
		if results[i].Error == nil {
			complexity = results[i].Value
		}
		out[i] = ChunkComplexity{ChunkIdx: c.Idx, Complexity: complexity}
	}
	return out
}
