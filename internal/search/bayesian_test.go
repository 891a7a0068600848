package search

import (
	"testing"

	"github.com/five82/adaptenc/internal/metric"
)

func TestBayesianCRFSearchConverges(t *testing.T) {
	probe := func(crf float64) (metric.ProbePoint, error) {
		return metric.ProbePoint{Bitrate: int(8000 - crf*100), Vmaf: &metric.VmafResult{Mean: 100 - crf}}, nil
	}
	best, err := BayesianCRFSearch(18, 40, 93, 10, 42, probe)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if best.CRF < 18 || best.CRF > 40 {
		t.Errorf("CRF %v out of bounds [18,40]", best.CRF)
	}
}

func TestBayesianCRFSearchAllProbesFail(t *testing.T) {
	probe := func(crf float64) (metric.ProbePoint, error) { return metric.ProbePoint{}, errNoSuccessfulProbes }
	_, err := BayesianCRFSearch(18, 40, 93, 5, 1, probe)
	if err == nil {
		t.Error("expected error when every probe fails")
	}
}

func TestParetoFrontDropsDominated(t *testing.T) {
	probes := []Probe{
		{CRF: 22, Score: 93, BitrateKbps: 5000}, // dominated by 24 on all axes
		{CRF: 24, Score: 93, BitrateKbps: 4000},
		{CRF: 32, Score: 85, BitrateKbps: 1500},
	}
	front := ParetoFront(probes, 93, 90)

	for _, p := range front {
		if p.CRF == 22 {
			t.Error("CRF 22 should be dominated by CRF 24 (same score, lower bitrate) and dropped")
		}
	}
	if len(front) == 0 {
		t.Error("expected at least one non-dominated probe")
	}
}
