package pipeline

import (
	"testing"

	"github.com/five82/adaptenc/internal/encparams"
)

func TestSelectFinalizer(t *testing.T) {
	p := newTestPipeline(t)

	if got := p.SelectFinalizer(); got != FinalizerPlain {
		t.Errorf("default SelectFinalizer() = %q, want %q", got, FinalizerPlain)
	}

	p.Config.CRFBitrateMode = true
	if got := p.SelectFinalizer(); got != FinalizerWeirdCapped {
		t.Errorf("capped-mode SelectFinalizer() = %q, want %q", got, FinalizerWeirdCapped)
	}
}

func TestTargetMissPct(t *testing.T) {
	vbr := encparams.Params{Distribution: encparams.VBR, Bitrate: 4000}
	if got := targetMissPct(vbr, 4400); got < 9.9 || got > 10.1 {
		t.Errorf("targetMissPct(requested=4000, measured=4400) = %v, want ~10", got)
	}

	cq := encparams.Params{Distribution: encparams.CQ, CRF: 24}
	if got := targetMissPct(cq, 4400); got != 0 {
		t.Errorf("targetMissPct() for CRF mode = %v, want 0", got)
	}

	zeroTarget := encparams.Params{Distribution: encparams.VBR, Bitrate: 0}
	if got := targetMissPct(zeroTarget, 4400); got != 0 {
		t.Errorf("targetMissPct() with zero requested bitrate = %v, want 0 (avoid divide-by-zero)", got)
	}
}
