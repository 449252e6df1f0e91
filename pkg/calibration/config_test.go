package calibration

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TravelSpeed != 50 {
		t.Errorf("TravelSpeed = %v, want 50", cfg.TravelSpeed)
	}
	if cfg.OffsetMin != -1 || cfg.OffsetMax != 1 {
		t.Errorf("offset bounds = [%v, %v], want [-1, 1]", cfg.OffsetMin, cfg.OffsetMax)
	}
	if cfg.EndstopMin != 0 || cfg.EndstopMax != 0 {
		t.Error("endstop bounds must default to disabled")
	}
	if cfg.SwitchTriggerDistance != 0.5 {
		t.Errorf("SwitchTriggerDistance = %v, want 0.5", cfg.SwitchTriggerDistance)
	}
	if cfg.ManualAdjust != 0 {
		t.Errorf("ManualAdjust = %v, want 0", cfg.ManualAdjust)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero travel speed", func(c *Config) { c.TravelSpeed = 0 }, false},
		{"negative hop speed", func(c *Config) { c.HopSpeed = -1 }, false},
		{"zero hop height", func(c *Config) { c.HopHeight = 0 }, false},
		{"inverted offset bounds", func(c *Config) { c.OffsetMin = 1; c.OffsetMax = -1 }, false},
		{"equal offset bounds", func(c *Config) { c.OffsetMin = 0.5; c.OffsetMax = 0.5 }, true},
		{"inverted endstop bounds", func(c *Config) { c.EndstopMin = 2; c.EndstopMax = 1 }, false},
		{"endstop min only", func(c *Config) { c.EndstopMin = 2 }, true},
		{"endstop max only", func(c *Config) { c.EndstopMax = 1 }, true},
		{"zero samples", func(c *Config) { c.Samples = 0 }, false},
		{"multi sample without retract", func(c *Config) { c.Samples = 3; c.SampleRetractDist = 0 }, false},
		{"negative tolerance", func(c *Config) { c.SamplesTolerance = -0.1 }, false},
		{"bad samples result", func(c *Config) { c.SamplesResult = "mode" }, false},
		{"median result", func(c *Config) { c.SamplesResult = "median" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate = %v, want nil", err)
			}
			if !tt.valid {
				if err == nil {
					t.Fatal("Validate = nil, want error")
				}
				if !IsCode(err, ErrConfig) {
					t.Errorf("Validate error = %v, want CONFIG code", err)
				}
			}
		})
	}
}
