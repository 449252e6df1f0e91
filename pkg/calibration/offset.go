package calibration

import "math"

// round3 rounds half away from zero at three decimals, the resolution of a
// gcode Z offset.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ComputeOffset converts the two trigger heights into the final gcode Z
// offset. pinHeight is the trigger height on the endstop pin, bedHeight the
// one on the bed surface. Pure arithmetic; the bed probing lower than the
// pin yields a negative base offset before the switch and manual corrections.
func ComputeOffset(pinHeight, bedHeight float64, cfg *Config) float64 {
	diff := pinHeight - bedHeight
	return round3((0 - diff + cfg.SwitchTriggerDistance) + cfg.ManualAdjust)
}
