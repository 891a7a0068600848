package search

import (
	"math"
	"testing"
)

const interpEpsilon = 1e-6

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestLerp(t *testing.T) {
	result := Lerp([2]float64{0, 10}, [2]float64{0, 100}, 5)
	if result == nil || !almostEqual(*result, 50, interpEpsilon) {
		t.Errorf("Lerp() = %v, want 50", result)
	}

	if Lerp([2]float64{10, 10}, [2]float64{0, 100}, 5) != nil {
		t.Error("Lerp() with x1<=x0 should return nil")
	}
}

func TestFritschCarlson(t *testing.T) {
	x := []float64{60, 70, 80}
	y := []float64{35, 28, 22}

	result := FritschCarlson(x, y, 70)
	if result == nil {
		t.Fatal("FritschCarlson() returned nil for valid input")
	}
	if !almostEqual(*result, 28, 0.1) {
		t.Errorf("FritschCarlson() at x=70 = %v, want ~28", *result)
	}
	if FritschCarlson(x, y, 50) != nil {
		t.Error("FritschCarlson() out of bounds should return nil")
	}
}

func TestPCHIP(t *testing.T) {
	x := [4]float64{60, 65, 70, 75}
	y := [4]float64{40, 35, 28, 22}

	result := PCHIP(x, y, 65)
	if result == nil {
		t.Fatal("PCHIP() returned nil for valid input")
	}
	if !almostEqual(*result, 35, 0.1) {
		t.Errorf("PCHIP() at x=65 = %v, want ~35", *result)
	}

	badX := [4]float64{60, 65, 65, 75}
	if PCHIP(badX, y, 67.5) != nil {
		t.Error("PCHIP() with non-increasing x should return nil")
	}
}

func TestAkima(t *testing.T) {
	x := []float64{55, 60, 65, 70, 75}
	y := []float64{45, 40, 35, 28, 22}

	result := Akima(x, y, 65)
	if result == nil {
		t.Fatal("Akima() returned nil for valid input")
	}
	if !almostEqual(*result, 35, 0.1) {
		t.Errorf("Akima() at x=65 = %v, want ~35", *result)
	}

	if Akima(x, y, 50) != nil {
		t.Error("Akima() below range should return nil")
	}
	if Akima([]float64{60, 65, 70, 75}, []float64{40, 35, 28, 22}, 67.5) != nil {
		t.Error("Akima() with 4 points should return nil")
	}
}

func TestInterpolateCRFBisectionScenario(t *testing.T) {
	// Spec scenario: target=93, CRF 28 -> 95.0, CRF 32 -> 91.0, interpolated
	// CRF should land at 30.
	probes := []Probe{
		{CRF: 28, Score: 95.0},
		{CRF: 32, Score: 91.0},
	}
	result := InterpolateCRF(probes, 93, 3)
	if result == nil {
		t.Fatal("InterpolateCRF returned nil")
	}
	if *result != 30 {
		t.Errorf("InterpolateCRF = %v, want 30", *result)
	}
}

func TestInterpolateCRFEarlyRoundsReturnNil(t *testing.T) {
	probes := []Probe{{CRF: 28, Score: 95}, {CRF: 32, Score: 91}}
	if InterpolateCRF(probes, 93, 1) != nil {
		t.Error("round 1 should return nil")
	}
	if InterpolateCRF(probes, 93, 2) != nil {
		t.Error("round 2 should return nil")
	}
}
