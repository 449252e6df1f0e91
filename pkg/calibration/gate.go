package calibration

import "strings"

// CheckHomed verifies that all three axes are homed. Probing with unhomed
// axes would move against an unknown coordinate system.
func CheckHomed(x, y, z bool) error {
	var missing []string
	if !x {
		missing = append(missing, "X")
	}
	if !y {
		missing = append(missing, "Y")
	}
	if !z {
		missing = append(missing, "Z")
	}
	if len(missing) > 0 {
		return newError(ErrNotHomed, "must home %s first", strings.Join(missing, ", "))
	}
	return nil
}

// CheckAlignment verifies the gantry leveling precondition. A tilted gantry
// makes the pin-to-bed comparison meaningless, so the default is to refuse.
// With cfg.IgnoreAlignment set the state is not inspected at all.
func CheckAlignment(cfg *Config, state AlignmentState) error {
	if cfg.IgnoreAlignment {
		return nil
	}
	switch state {
	case AlignmentApplied:
		return nil
	case AlignmentNotApplied:
		return newError(ErrAlignmentNotApplied, "perform gantry leveling first")
	case AlignmentNotConfigured:
		return newError(ErrAlignmentNotConfigured,
			"no quad_gantry_level or z_tilt configured; set ignore_alignment to calibrate anyway")
	default:
		return newError(ErrAlignmentNotConfigured, "unknown alignment state %d", int(state))
	}
}
