package search

import (
	"testing"

	"github.com/five82/adaptenc/internal/metric"
)

func TestBinarySearch(t *testing.T) {
	tests := []struct {
		min, max, want float64
	}{
		{8, 48, 28},
		{20, 30, 25},
		{20, 25, 23}, // 22.5 rounds to even-ish; math.Round(22.5) = 23
	}
	for _, tt := range tests {
		if got := BinarySearch(tt.min, tt.max); got != tt.want {
			t.Errorf("BinarySearch(%v,%v) = %v, want %v", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestConverged(t *testing.T) {
	if !Converged(72.5, 70, 2.5) {
		t.Error("72.5 should converge at upper bound")
	}
	if Converged(73, 70, 2.5) {
		t.Error("73 should not converge")
	}
}

func TestUpdateBoundsCrosses(t *testing.T) {
	state := &BisectionState{SearchMin: 28.25, SearchMax: 28.25, LastCRF: 28.25}
	crossed := UpdateBounds(state, 65, 72.5, 2.5)
	if !crossed {
		t.Error("expected bounds to cross")
	}
}

// TestBisectionTerminatesWithinMaxProbes covers the bounded-probes
// property: RunBisection must not call probe more than MaxRounds times.
func TestBisectionTerminatesWithinMaxProbes(t *testing.T) {
	calls := 0
	probe := func(crf float64) (metric.ProbePoint, error) {
		calls++
		// VMAF decreases as CRF increases; never converges exactly, forcing
		// the loop to run until max_rounds.
		return metric.ProbePoint{Vmaf: &metric.VmafResult{Mean: 100 - crf}, Bitrate: 1000}, nil
	}

	cfg := BisectionConfig{Target: 1000, Tolerance: 0.01, CRFMin: 0, CRFMax: 63, MaxRounds: 6, MetricMode: "mean"}
	_, err := RunBisection(cfg, 0, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls > cfg.MaxRounds {
		t.Errorf("probe called %d times, want <= %d", calls, cfg.MaxRounds)
	}
}

func TestBisectionAllEqualVMAFReturnsLastMidpoint(t *testing.T) {
	probe := func(crf float64) (metric.ProbePoint, error) {
		return metric.ProbePoint{Vmaf: &metric.VmafResult{Mean: 93}, Bitrate: 1000}, nil
	}
	cfg := BisectionConfig{Target: 93, Tolerance: 0.5, CRFMin: 0, CRFMax: 63, MaxRounds: 4, MetricMode: "mean"}
	best, err := RunBisection(cfg, 0, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.Score != 93 {
		t.Errorf("best.Score = %v, want 93", best.Score)
	}
}

func TestBisectionAllProbesFail(t *testing.T) {
	probe := func(crf float64) (metric.ProbePoint, error) { return metric.ProbePoint{}, errNoSuccessfulProbes }
	cfg := BisectionConfig{Target: 93, Tolerance: 0.5, CRFMin: 0, CRFMax: 63, MaxRounds: 3, MetricMode: "mean"}
	_, err := RunBisection(cfg, 0, probe)
	if err == nil {
		t.Error("expected error when every probe fails")
	}
}
