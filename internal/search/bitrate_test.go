package search

import (
	"testing"

	"github.com/five82/adaptenc/internal/metric"
)

func TestBitrateBinarySearchFindsFloor(t *testing.T) {
	// VMAF rises monotonically with bitrate; target 93 crosses near 2600kbps.
	probe := func(kbps int) (metric.ProbePoint, error) {
		score := 80 + float64(kbps)/200
		return metric.ProbePoint{Bitrate: kbps, Vmaf: &metric.VmafResult{Mean: score}}, nil
	}
	result, err := BitrateBinarySearch(500, 6000, 93, 8, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score < 93 {
		t.Errorf("result score %v below target 93", result.Score)
	}
	if result.Probes > 8 {
		t.Errorf("used %d probes, want <= 8", result.Probes)
	}
}

func TestBitrateBinarySearchCeilingMissesTarget(t *testing.T) {
	probe := func(kbps int) (metric.ProbePoint, error) {
		return metric.ProbePoint{Bitrate: kbps, Vmaf: &metric.VmafResult{Mean: 80}}, nil
	}
	result, err := BitrateBinarySearch(500, 6000, 99, 8, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BitrateKbps != 6000 {
		t.Errorf("expected ceiling bitrate returned when target unreachable, got %d", result.BitrateKbps)
	}
}

func TestBitrateBinarySearchInvalidRange(t *testing.T) {
	probe := func(kbps int) (metric.ProbePoint, error) { return metric.ProbePoint{}, nil }
	if _, err := BitrateBinarySearch(1000, 1000, 93, 8, probe); err == nil {
		t.Error("expected error for degenerate range")
	}
}
