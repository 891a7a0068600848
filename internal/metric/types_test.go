package metric

import "testing"

func TestAggregateMonotonePercentiles(t *testing.T) {
	scores := []float64{80, 82, 85, 88, 90, 91, 93, 95, 97, 99}
	vr := Aggregate(scores)

	if !(vr.Min <= vr.P1 && vr.P1 <= vr.P5 && vr.P5 <= vr.P10 && vr.P10 <= vr.P25 && vr.P25 <= vr.P50) {
		t.Fatalf("percentiles not monotone: %+v", vr)
	}
	if vr.HarmonicMean > vr.Mean {
		t.Errorf("harmonic mean %g > mean %g", vr.HarmonicMean, vr.Mean)
	}
	if vr.Min < 0 || vr.Max > 100 {
		t.Errorf("vmaf out of [0,100]: min=%g max=%g", vr.Min, vr.Max)
	}
}

func TestAggregateAllEqual(t *testing.T) {
	scores := []float64{90, 90, 90, 90}
	vr := Aggregate(scores)
	if vr.Mean != 90 || vr.HarmonicMean != 90 || vr.Min != 90 || vr.Max != 90 {
		t.Errorf("expected all stats to equal 90, got %+v", vr)
	}
}

func TestRepresentative(t *testing.T) {
	vr := &VmafResult{Mean: 95, HarmonicMean: 94, Min: 80, Max: 99, P1: 81, P5: 85, P10: 88, P25: 90, P50: 93}

	cases := []struct {
		mode string
		want float64
	}{
		{"mean", 95},
		{"harmonic_mean", 94},
		{"percentile_5", 85},
		{"median", 93},
	}
	for _, c := range cases {
		got, ok := Representative(vr, c.mode)
		if !ok || got != c.want {
			t.Errorf("Representative(%q) = %v, %v, want %v, true", c.mode, got, ok, c.want)
		}
	}

	if _, ok := Representative(nil, "mean"); ok {
		t.Error("Representative(nil, ...) should return ok=false")
	}
	if _, ok := Representative(vr, "bogus"); ok {
		t.Error("Representative with unknown mode should return ok=false")
	}
}

func TestToDBFromMeanPerfectScore(t *testing.T) {
	db := ToDBFromMean(1.0)
	if db <= 0 {
		t.Errorf("expected +Inf-ish large value for perfect SSIM, got %v", db)
	}
}
