package ladder

import (
	"errors"
	"testing"

	"github.com/five82/adaptenc/internal/chunk"
)

var errSample = errors.New("sample probe failure")

func TestScoreComplexityMonotone(t *testing.T) {
	low := ScoreComplexity(100)
	high := ScoreComplexity(10000)
	if high <= low {
		t.Errorf("ScoreComplexity(10000)=%v should exceed ScoreComplexity(100)=%v", high, low)
	}
}

func TestScoreComplexityZeroBitrate(t *testing.T) {
	if got := ScoreComplexity(0); got != 0 {
		t.Errorf("ScoreComplexity(0) = %v, want 0", got)
	}
}

func TestScoreAllDegradesOnProbeFailure(t *testing.T) {
	seq := chunk.NewSequence("in.mkv", []chunk.Chunk{
		{FirstFrame: 0, LastFrame: 99, FPS: 24},
		{FirstFrame: 100, LastFrame: 199, FPS: 24},
	})
	probe := func(c chunk.Chunk) (int, error) {
		if c.Idx == 1 {
			return 0, errSample
		}
		return 5000, nil
	}
	scores := ScoreAll(seq, probe)
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[1].Complexity != 0 {
		t.Errorf("failed probe should degrade to complexity 0, got %v", scores[1].Complexity)
	}
	if scores[0].Complexity == 0 {
		t.Error("successful probe should have non-zero complexity")
	}
}

func TestScoreAllBoundedMatchesSequential(t *testing.T) {
	seq := chunk.NewSequence("in.mkv", []chunk.Chunk{
		{FirstFrame: 0, LastFrame: 99, FPS: 24},
		{FirstFrame: 100, LastFrame: 199, FPS: 24},
		{FirstFrame: 200, LastFrame: 299, FPS: 24},
	})
	probe := func(c chunk.Chunk) (int, error) {
		if c.Idx == 1 {
			return 0, errSample
		}
		return 1000 * (c.Idx + 1), nil
	}

	sequential := ScoreAll(seq, probe)
	bounded := ScoreAllBounded(seq, 2, probe)

	if len(bounded) != len(sequential) {
		t.Fatalf("got %d bounded scores, want %d", len(bounded), len(sequential))
	}
	for i := range sequential {
		if bounded[i] != sequential[i] {
			t.Errorf("bounded[%d] = %+v, want %+v", i, bounded[i], sequential[i])
		}
	}
}
