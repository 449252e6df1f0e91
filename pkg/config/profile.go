package config

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/zcal/autoz/pkg/calibration"
)

// Profile is the calibration configuration assembled from a printer.cfg,
// together with the collaborator facts the CLI reports.
type Profile struct {
	Config calibration.Config

	// AlignmentKind names the leveling mechanism found in the config:
	// "quad_gantry_level", "z_tilt" or "ignore".
	AlignmentKind string

	// ProbeSection is the section the probe offsets came from, "bltouch"
	// or "probe".
	ProbeSection string

	// ProbeXOffset and ProbeYOffset are the probe's XY offsets from the
	// nozzle. Both probe points are already shifted by them in Config.
	ProbeXOffset float64
	ProbeYOffset float64
}

// LoadProfile reads a printer.cfg-style file and builds the validated
// calibration profile from its [auto_offset_z] section and the collaborator
// sections it depends on.
func LoadProfile(path string) (*Profile, error) {
	f, err := Load(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to load config %s", path)
	}
	return BuildProfile(f)
}

// BuildProfile assembles a Profile from a parsed file, enforcing the same
// setup checks the calibration depends on: a z hop for safe travel, a probe
// with a real XY offset, a physical Z endstop, and a leveling mechanism
// unless alignment is explicitly ignored.
func BuildProfile(f *File) (*Profile, error) {
	sec, err := f.Section("auto_offset_z")
	if err != nil {
		return nil, err
	}

	cfg := calibration.DefaultConfig()
	p := &Profile{}

	if cfg.IgnoreAlignment, err = sec.GetBool("ignore_alignment", false); err != nil {
		return nil, err
	}
	if cfg.TravelSpeed, err = sec.GetFloat("speed", cfg.TravelSpeed); err != nil {
		return nil, err
	}
	if cfg.ManualAdjust, err = sec.GetFloat("offsetadjust", 0); err != nil {
		return nil, err
	}
	if cfg.OffsetMin, err = sec.GetFloat("offset_min", cfg.OffsetMin); err != nil {
		return nil, err
	}
	if cfg.OffsetMax, err = sec.GetFloat("offset_max", cfg.OffsetMax); err != nil {
		return nil, err
	}
	if cfg.EndstopMin, err = sec.GetFloat("endstop_min", 0); err != nil {
		return nil, err
	}
	if cfg.EndstopMax, err = sec.GetFloat("endstop_max", 0); err != nil {
		return nil, err
	}
	if cfg.SwitchTriggerDistance, err = sec.GetFloat("endstopswitch", cfg.SwitchTriggerDistance); err != nil {
		return nil, err
	}

	// The z hop comes from safe_z_home: travel at bed level would drag
	// the probe across the pin.
	szh, err := f.Section("safe_z_home")
	if err != nil {
		return nil, fmt.Errorf("auto_offset_z: safe_z_home has to be defined for safe probing")
	}
	if cfg.HopHeight, err = szh.GetFloat("z_hop", 0); err != nil {
		return nil, err
	}
	if cfg.HopHeight <= 0 {
		return nil, fmt.Errorf("auto_offset_z: z_hop has to be set in safe_z_home to avoid crashing the probe")
	}
	if cfg.HopSpeed, err = szh.GetFloat("z_hop_speed", cfg.HopSpeed); err != nil {
		return nil, err
	}

	if err := loadProbe(f, p, &cfg); err != nil {
		return nil, err
	}

	// The reference pin must be a physical switch. A probe acting as a
	// virtual Z endstop would be measured against itself.
	sz, err := f.Section("stepper_z")
	if err != nil {
		return nil, err
	}
	endstopPin, err := sz.Get("endstop_pin")
	if err != nil {
		return nil, err
	}
	if strings.Contains(endstopPin, "virtual_endstop") {
		return nil, fmt.Errorf("auto_offset_z: %s can't be used as the Z endstop, use a physical endstop instead", p.ProbeSection)
	}

	switch {
	case f.HasSection("quad_gantry_level"):
		p.AlignmentKind = "quad_gantry_level"
	case f.HasSection("z_tilt"):
		p.AlignmentKind = "z_tilt"
	case cfg.IgnoreAlignment:
		p.AlignmentKind = "ignore"
	default:
		return nil, fmt.Errorf("auto_offset_z: the config must include [quad_gantry_level] or [z_tilt], or set ignore_alignment")
	}

	points, err := sec.GetPoints("probe_points")
	if err != nil {
		return nil, err
	}
	if len(points) != 2 {
		return nil, ErrInvalidValue("auto_offset_z", "probe_points",
			fmt.Sprintf("%d points", len(points)), "exactly two x,y pairs (endstop pin, bed)")
	}
	// Shift both points so the probe, not the nozzle, lands on them.
	cfg.ReferencePoint = calibration.Point{X: points[0][0] - p.ProbeXOffset, Y: points[0][1] - p.ProbeYOffset}
	cfg.BedPoint = calibration.Point{X: points[1][0] - p.ProbeXOffset, Y: points[1][1] - p.ProbeYOffset}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p.Config = cfg
	return p, nil
}

// loadProbe reads the probe offsets and sampling settings from [bltouch] or
// [probe].
func loadProbe(f *File, p *Profile, cfg *calibration.Config) error {
	var sec *Section
	switch {
	case f.HasSection("bltouch"):
		sec, _ = f.Section("bltouch")
	case f.HasSection("probe"):
		sec, _ = f.Section("probe")
	default:
		return fmt.Errorf("auto_offset_z: no bltouch or probe configured in your system, check your setup")
	}
	p.ProbeSection = sec.Name()

	var err error
	if p.ProbeXOffset, err = sec.GetFloat("x_offset", 0); err != nil {
		return err
	}
	if p.ProbeYOffset, err = sec.GetFloat("y_offset", 0); err != nil {
		return err
	}
	if p.ProbeXOffset == 0 && p.ProbeYOffset == 0 {
		return fmt.Errorf("auto_offset_z: check the x and y offset in [%s], they both appear to be zero", sec.Name())
	}

	if cfg.Samples, err = sec.GetInt("samples", cfg.Samples); err != nil {
		return err
	}
	if cfg.SampleRetractDist, err = sec.GetFloat("sample_retract_dist", cfg.SampleRetractDist); err != nil {
		return err
	}
	if cfg.SamplesTolerance, err = sec.GetFloat("samples_tolerance", cfg.SamplesTolerance); err != nil {
		return err
	}
	if cfg.SamplesResult, err = sec.GetChoice("samples_result", []string{"average", "median"}, cfg.SamplesResult); err != nil {
		return err
	}
	return nil
}
