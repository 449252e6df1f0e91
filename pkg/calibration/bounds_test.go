package calibration

import (
	"errors"
	"testing"
)

func TestCheckBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OffsetMin = -1
	cfg.OffsetMax = 1

	tests := []struct {
		offset   float64
		wantCode ErrorCode
	}{
		{-1.001, ErrOffsetTooLow},
		{-1.0, ""},
		{-0.8, ""},
		{0, ""},
		{1.0, ""}, // bounds are inclusive
		{1.001, ErrOffsetTooHigh},
		{-99, ErrOffsetTooLow},
		{99, ErrOffsetTooHigh},
	}
	for _, tt := range tests {
		err := CheckBounds(tt.offset, &cfg)
		if tt.wantCode == "" {
			if err != nil {
				t.Errorf("CheckBounds(%v) = %v, want nil", tt.offset, err)
			}
			continue
		}
		if !IsCode(err, tt.wantCode) {
			t.Errorf("CheckBounds(%v) = %v, want code %s", tt.offset, err, tt.wantCode)
		}
		var cerr *CalibrationError
		if errors.As(err, &cerr) && cerr.Value != tt.offset {
			t.Errorf("CheckBounds(%v) error Value = %v", tt.offset, cerr.Value)
		}
	}
}

func TestCheckEndstopBounds(t *testing.T) {
	tests := []struct {
		name       string
		min, max   float64
		height     float64
		wantReject bool
	}{
		{"both disabled", 0, 0, 42, false},
		{"min only, below", 0.3, 0, 0.2, true},
		{"min only, above", 0.3, 0, 0.4, false},
		{"max only, above", 0, 2.0, 2.5, true},
		{"max only, below", 0, 2.0, 1.5, false},
		{"inside window", 0.3, 2.0, 1.0, false},
		{"on min bound", 0.3, 2.0, 0.3, false},
		{"on max bound", 0.3, 2.0, 2.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.EndstopMin = tt.min
			cfg.EndstopMax = tt.max
			err := checkEndstopBounds(tt.height, &cfg)
			if tt.wantReject && !IsCode(err, ErrProbeOutOfRange) {
				t.Errorf("checkEndstopBounds(%v) = %v, want PROBE_OUT_OF_RANGE", tt.height, err)
			}
			if !tt.wantReject && err != nil {
				t.Errorf("checkEndstopBounds(%v) = %v, want nil", tt.height, err)
			}
		})
	}
}
