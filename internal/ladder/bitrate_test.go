package ladder

import (
	"errors"
	"testing"

	"github.com/five82/adaptenc/internal/metric"
)

func TestBestBitrateSparse(t *testing.T) {
	probe := func(kbps int) (metric.ProbePoint, error) {
		return metric.ProbePoint{Bitrate: kbps, Vmaf: &metric.VmafResult{Mean: 80 + float64(kbps)/500}}, nil
	}
	result, err := BestBitrateSparse(500, 6000, 93, 7, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BitrateKbps <= 0 {
		t.Errorf("got non-positive bitrate %d", result.BitrateKbps)
	}
}

func TestBestCRFGuided(t *testing.T) {
	probeCRF := func(crf float64) (metric.ProbePoint, error) {
		return metric.ProbePoint{Bitrate: 4000, Vmaf: &metric.VmafResult{Mean: 93}}, nil
	}
	probeBitrate := func(kbps int) (metric.ProbePoint, error) {
		return metric.ProbePoint{Bitrate: kbps, Vmaf: &metric.VmafResult{Mean: 80 + float64(kbps)/500}}, nil
	}
	result, err := BestCRFGuided(28, 5000, 93, 6, probeCRF, probeBitrate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BitrateKbps <= 0 {
		t.Errorf("got non-positive bitrate %d", result.BitrateKbps)
	}
}

func TestCRFToBitrateInterpolates(t *testing.T) {
	points := []CRFBitratePoint{
		{CRF: 24, BitrateKbps: 6000},
		{CRF: 32, BitrateKbps: 2000},
	}
	got := CRFToBitrate(points, 28)
	if got <= 2000 || got >= 6000 {
		t.Errorf("CRFToBitrate(28) = %d, want strictly between 2000 and 6000", got)
	}
}

func TestCRFToBitrateSinglePoint(t *testing.T) {
	points := []CRFBitratePoint{{CRF: 28, BitrateKbps: 4000}}
	if got := CRFToBitrate(points, 99); got != 4000 {
		t.Errorf("CRFToBitrate with one point = %d, want 4000", got)
	}
}

func TestSSIMToDB(t *testing.T) {
	db := SSIMToDB(0.99)
	if db <= 0 {
		t.Errorf("SSIMToDB(0.99) = %v, want > 0", db)
	}
}

func TestGetTargetCRF(t *testing.T) {
	// Linear model: bitrate = 8000 - 200*crf, same for every sample.
	probe := func(sampleIdx int, crf float64) (int, error) {
		return int(8000 - 200*crf), nil
	}
	crf, err := GetTargetCRF(3, 4000, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if crf < 18 || crf > 22 {
		t.Errorf("GetTargetCRF() = %v, want close to 20 (8000-200*20=4000)", crf)
	}
}

func TestGetTargetCRFAllProbesFail(t *testing.T) {
	probe := func(sampleIdx int, crf float64) (int, error) {
		return 0, errors.New("encode failed")
	}
	if _, err := GetTargetCRF(2, 4000, probe); err == nil {
		t.Error("expected error when every probe fails")
	}
}

func TestSSIMDBTarget(t *testing.T) {
	probe := func(sampleIdx int, bitrateKbps int) (metric.SSIM, error) {
		return metric.SSIM{Mean: 0.98, DB: float64(sampleIdx) + 10}, nil
	}
	got, err := SSIMDBTarget(3, 4000, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (10+11+12)/3 = 11
	if got != 11 {
		t.Errorf("SSIMDBTarget() = %v, want 11", got)
	}
}

func TestSSIMDBTargetAllProbesFail(t *testing.T) {
	probe := func(sampleIdx int, bitrateKbps int) (metric.SSIM, error) {
		return metric.SSIM{}, errors.New("encode failed")
	}
	if _, err := SSIMDBTarget(2, 4000, probe); err == nil {
		t.Error("expected error when every probe fails")
	}
}
