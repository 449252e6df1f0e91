package calibration

// Config holds the calibration profile. Validate it once and treat it as
// immutable afterwards; the controller copies it at construction.
type Config struct {
	// ReferencePoint is where the probe touches the Z endstop pin.
	ReferencePoint Point

	// BedPoint is where the probe touches the bed surface.
	BedPoint Point

	// TravelSpeed is the horizontal move speed in mm/s.
	TravelSpeed float64

	// HopHeight is the Z clearance used for all horizontal travel. Probing
	// starts from this height and the toolhead returns to it afterwards.
	HopHeight float64

	// HopSpeed is the vertical lift speed in mm/s.
	HopSpeed float64

	// IgnoreAlignment skips the gantry leveling precondition.
	IgnoreAlignment bool

	// OffsetMin and OffsetMax bound the accepted offset, inclusive.
	OffsetMin float64
	OffsetMax float64

	// EndstopMin and EndstopMax bound the accepted endstop pin measurement.
	// A zero value disables that side of the check.
	EndstopMin float64
	EndstopMax float64

	// ManualAdjust is added to the calculated offset.
	ManualAdjust float64

	// SwitchTriggerDistance compensates the travel of the endstop switch
	// between its trigger point and its rest position.
	SwitchTriggerDistance float64

	// Samples is the number of probes taken per point.
	Samples int

	// SampleRetractDist is the lift between samples in mm.
	SampleRetractDist float64

	// SamplesTolerance is the maximum spread allowed across the samples of
	// one point.
	SamplesTolerance float64

	// SamplesResult selects how samples aggregate: "average" or "median".
	SamplesResult string
}

// DefaultConfig returns a Config with the stock defaults. Probe points have
// no sensible default and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		TravelSpeed:           50.0,
		HopHeight:             10.0,
		HopSpeed:              15.0,
		OffsetMin:             -1.0,
		OffsetMax:             1.0,
		SwitchTriggerDistance: 0.5,
		Samples:               1,
		SampleRetractDist:     2.0,
		SamplesTolerance:      0.1,
		SamplesResult:         "average",
	}
}

// Validate checks the config invariants.
func (c *Config) Validate() error {
	if c.TravelSpeed <= 0 {
		return newError(ErrConfig, "speed must be above 0 (got %g)", c.TravelSpeed)
	}
	if c.HopSpeed <= 0 {
		return newError(ErrConfig, "hop speed must be above 0 (got %g)", c.HopSpeed)
	}
	if c.HopHeight <= 0 {
		return newError(ErrConfig, "a z hop above 0 is required to avoid crashing the probe (got %g)", c.HopHeight)
	}
	if c.OffsetMin > c.OffsetMax {
		return newError(ErrConfig, "offset_min %.3f exceeds offset_max %.3f", c.OffsetMin, c.OffsetMax)
	}
	if c.EndstopMin != 0 && c.EndstopMax != 0 && c.EndstopMin > c.EndstopMax {
		return newError(ErrConfig, "endstop_min %.3f exceeds endstop_max %.3f", c.EndstopMin, c.EndstopMax)
	}
	if c.Samples < 1 {
		return newError(ErrConfig, "samples must be at least 1 (got %d)", c.Samples)
	}
	if c.Samples > 1 && c.SampleRetractDist <= 0 {
		return newError(ErrConfig, "sample_retract_dist must be above 0 when sampling more than once")
	}
	if c.SamplesTolerance < 0 {
		return newError(ErrConfig, "samples_tolerance must not be negative (got %g)", c.SamplesTolerance)
	}
	if c.SamplesResult != "average" && c.SamplesResult != "median" {
		return newError(ErrConfig, "samples_result must be average or median (got %q)", c.SamplesResult)
	}
	return nil
}
