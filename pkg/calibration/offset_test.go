package calibration

import "testing"

func TestComputeOffset(t *testing.T) {
	tests := []struct {
		name         string
		pin, bed     float64
		switchDist   float64
		manualAdjust float64
		want         float64
	}{
		{"bed below pin", 0.0, -1.0, 0.5, 0.0, -0.5},
		{"manual adjust cancels out", 0.2, -0.3, 0.5, 0.045, 0.045},
		{"end to end accept case", 0.0, -1.3, 0.5, 0.0, -0.8},
		{"end to end reject case", 0.0, -2.3, 0.5, 0.0, -1.8},
		{"zero everything", 0.0, 0.0, 0.0, 0.0, 0.0},
		{"negative adjust moves closer", 0.0, -1.0, 0.5, -0.1, -0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SwitchTriggerDistance = tt.switchDist
			cfg.ManualAdjust = tt.manualAdjust
			got := ComputeOffset(tt.pin, tt.bed, &cfg)
			if got != tt.want {
				t.Errorf("ComputeOffset(%v, %v) = %v, want %v", tt.pin, tt.bed, got, tt.want)
			}
			// Pure function: same inputs, same output.
			if again := ComputeOffset(tt.pin, tt.bed, &cfg); again != got {
				t.Errorf("ComputeOffset not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestComputeOffsetRoundsToThreeDecimals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SwitchTriggerDistance = 0
	cfg.ManualAdjust = 0

	tests := []struct {
		pin, bed float64
		want     float64
	}{
		{0, -1.0004, -1.0},
		{0, -1.0006, -1.001},
		{0, 1.0006, 1.001},
		// Exact halves round away from zero, not to even.
		{0, -0.0625, -0.063},
		{0, 0.0625, 0.063},
	}
	for _, tt := range tests {
		if got := ComputeOffset(tt.pin, tt.bed, &cfg); got != tt.want {
			t.Errorf("ComputeOffset(%v, %v) = %v, want %v", tt.pin, tt.bed, got, tt.want)
		}
	}
}
