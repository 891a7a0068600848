package config

import "testing"

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig("/tmp/run")

	if cfg.TempFolder != "/tmp/run" {
		t.Errorf("TempFolder = %q, want /tmp/run", cfg.TempFolder)
	}
	if cfg.PrototypeEncoder.Backend != "svt-av1" {
		t.Errorf("PrototypeEncoder.Backend = %q, want svt-av1", cfg.PrototypeEncoder.Backend)
	}
	if cfg.VmafProbeCount != DefaultVmafProbeCount {
		t.Errorf("VmafProbeCount = %d, want %d", cfg.VmafProbeCount, DefaultVmafProbeCount)
	}
	if cfg.MultiprocessWorkers != DefaultMultiprocessWorkers {
		t.Errorf("MultiprocessWorkers = %d, want %d", cfg.MultiprocessWorkers, DefaultMultiprocessWorkers)
	}
	if cfg.SimultaneousProbes != DefaultSimultaneousProbes {
		t.Errorf("SimultaneousProbes = %d, want %d", cfg.SimultaneousProbes, DefaultSimultaneousProbes)
	}
	if cfg.CRFSearchStrategy != DefaultCRFSearchStrategy {
		t.Errorf("CRFSearchStrategy = %q, want %q", cfg.CRFSearchStrategy, DefaultCRFSearchStrategy)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default config is valid", func(c *Config) {}, false},
		{"empty temp folder is invalid", func(c *Config) { c.TempFolder = "" }, true},
		{"zero multiprocess_workers is invalid", func(c *Config) { c.MultiprocessWorkers = 0 }, true},
		{"zero simultaneous_probes is invalid", func(c *Config) { c.SimultaneousProbes = 0 }, true},
		{"zero vmaf_probe_count is invalid", func(c *Config) { c.VmafProbeCount = 0 }, true},
		{"vmaf above 100 is invalid", func(c *Config) { c.Vmaf = 101 }, true},
		{"vmaf below 0 is invalid", func(c *Config) { c.Vmaf = -1 }, true},
		{"unrecognized representation is invalid", func(c *Config) { c.VmafTargetRepresentation = "bogus" }, true},
		{"known representation is valid", func(c *Config) { c.VmafTargetRepresentation = "percentile_5" }, false},
		{"negative model weight is invalid", func(c *Config) { c.CRFModelWeights.Below = -1 }, true},
		{"unrecognized crf_search_strategy is invalid", func(c *Config) { c.CRFSearchStrategy = "bogus" }, true},
		{"grid crf_search_strategy is valid", func(c *Config) { c.CRFSearchStrategy = CRFSearchGrid }, false},
		{"ternary crf_search_strategy is valid", func(c *Config) { c.CRFSearchStrategy = CRFSearchTernary }, false},
		{"bayesian crf_search_strategy is valid", func(c *Config) { c.CRFSearchStrategy = CRFSearchBayesian }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/tmp/run")
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBitrateAdjustModeDefaultsToNone(t *testing.T) {
	cfg := NewConfig("/tmp/run")
	if cfg.BitrateAdjustMode != BitrateAdjustNone {
		t.Errorf("BitrateAdjustMode = %v, want BitrateAdjustNone", cfg.BitrateAdjustMode)
	}
}
