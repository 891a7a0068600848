package search

import "testing"

func TestNewBisectionStateNarrowsAroundPrediction(t *testing.T) {
	s := NewBisectionState(93, 10, 50, 30)
	if s.SearchMin != 25 || s.SearchMax != 35 {
		t.Errorf("bounds = [%v,%v], want [25,35]", s.SearchMin, s.SearchMax)
	}
}

func TestNewBisectionStateFullRangeWithoutPrediction(t *testing.T) {
	s := NewBisectionState(93, 10, 50, 0)
	if s.SearchMin != 10 || s.SearchMax != 50 {
		t.Errorf("bounds = [%v,%v], want [10,50]", s.SearchMin, s.SearchMax)
	}
}

func TestBisectionStateBestProbe(t *testing.T) {
	s := NewBisectionState(72.5, 8, 48, 0)
	if s.BestProbe() != nil {
		t.Error("BestProbe() with no probes should be nil")
	}
	s.AddProbe(35, 65, 1200)
	s.AddProbe(28, 72, 1000)
	s.AddProbe(22, 78, 800)

	best := s.BestProbe()
	if best == nil || best.CRF != 28 {
		t.Errorf("BestProbe() = %+v, want CRF 28 (closest to 72.5)", best)
	}
}

// TestFinalizeCRFWorkedExample reproduces the two-probe interpolation
// scenario verbatim: CRF28->VMAF95, CRF32->VMAF91, target=93 must yield
// CRF=30 via 30 = 28 + (32-28)*((93-95)/(91-95)).
func TestFinalizeCRFWorkedExample(t *testing.T) {
	probes := []Probe{
		{CRF: 28, Score: 95, BitrateKbps: 1000},
		{CRF: 32, Score: 91, BitrateKbps: 1400},
	}
	got, ok := FinalizeCRF(probes, 93)
	if !ok {
		t.Fatal("FinalizeCRF() ok = false, want true")
	}
	if got != 30 {
		t.Errorf("FinalizeCRF() = %v, want 30", got)
	}
}

func TestFinalizeCRFClampsToRange(t *testing.T) {
	// Extrapolating past the probed CRFs must clamp to [min(crf)-10, max(crf)+4].
	probes := []Probe{
		{CRF: 20, Score: 99, BitrateKbps: 2000},
		{CRF: 22, Score: 98, BitrateKbps: 2200},
	}
	got, ok := FinalizeCRF(probes, 10) // far below any observed score, so far above any probed CRF
	if !ok {
		t.Fatal("FinalizeCRF() ok = false, want true")
	}
	if want := 22.0 + 4.0; got != want {
		t.Errorf("FinalizeCRF() = %v, want clamp ceiling %v", got, want)
	}
}

func TestFinalizeCRFSingleProbe(t *testing.T) {
	probes := []Probe{{CRF: 30, Score: 93, BitrateKbps: 1200}}
	got, ok := FinalizeCRF(probes, 93)
	if !ok {
		t.Fatal("FinalizeCRF() ok = false, want true")
	}
	if got != 30 {
		t.Errorf("FinalizeCRF() = %v, want 30", got)
	}
}

func TestFinalizeCRFTiedScoreUsesLastMidpoint(t *testing.T) {
	probes := []Probe{
		{CRF: 24, Score: 90, BitrateKbps: 1800},
		{CRF: 28, Score: 93, BitrateKbps: 1400},
		{CRF: 32, Score: 93, BitrateKbps: 1000},
	}
	// The two closest probes to target=93 (CRF 28 and CRF 32) tie on score,
	// so the result must be their midpoint, not an interpolation (which
	// would divide by zero).
	got, ok := FinalizeCRF(probes, 93)
	if !ok {
		t.Fatal("FinalizeCRF() ok = false, want true")
	}
	if want := 30.0; got != want {
		t.Errorf("FinalizeCRF() = %v, want last-midpoint %v", got, want)
	}
}

func TestFinalizeCRFNoProbes(t *testing.T) {
	if _, ok := FinalizeCRF(nil, 93); ok {
		t.Error("FinalizeCRF() ok = true, want false for empty probe set")
	}
}
