// Package calibration determines a nozzle Z offset by probing a physical Z
// endstop pin and the bed surface with the same probe, CNC-style. The
// difference between the two trigger heights, corrected for the endstop
// switch travel and an optional manual adjustment, becomes the gcode Z
// offset applied to the printer.
//
// The package owns the measurement protocol and the arithmetic. Motion,
// probing and printer state live behind the Machine interface; transports
// such as a Moonraker connection implement it.
package calibration

import "context"

// Point is an XY position on the bed in mm.
type Point struct {
	X float64
	Y float64
}

// AlignmentState reports whether a gantry leveling mechanism (z_tilt or
// quad_gantry_level) exists and has run since the printer started.
type AlignmentState int

const (
	// AlignmentNotConfigured indicates no leveling mechanism exists.
	AlignmentNotConfigured AlignmentState = iota

	// AlignmentApplied indicates leveling has run successfully.
	AlignmentApplied

	// AlignmentNotApplied indicates leveling exists but has not run.
	AlignmentNotApplied
)

func (s AlignmentState) String() string {
	switch s {
	case AlignmentNotConfigured:
		return "not_configured"
	case AlignmentApplied:
		return "applied"
	case AlignmentNotApplied:
		return "not_applied"
	default:
		return "unknown"
	}
}

// Machine is the printer as the calibration sees it. Implementations talk to
// a real or simulated printer; the calibration never reaches past this
// interface. All calls block until the printer has finished the operation.
type Machine interface {
	// Position reports the current toolhead position.
	Position(ctx context.Context) (x, y, z float64, err error)

	// MoveTo moves the toolhead to an absolute position. Speed is in mm/s.
	MoveTo(ctx context.Context, x, y, z, speed float64) error

	// ProbeDown lowers the toolhead from the current position until the
	// probe triggers and reports the Z at which it did.
	ProbeDown(ctx context.Context) (float64, error)

	// AlignmentState reports the gantry leveling state.
	AlignmentState(ctx context.Context) (AlignmentState, error)

	// HomedAxes reports which of the X, Y and Z axes are homed.
	HomedAxes(ctx context.Context) (x, y, z bool, err error)

	// SetZOffset makes offset the active gcode Z offset, replacing any
	// previous one.
	SetZOffset(ctx context.Context, offset float64) error
}

// Reporter receives the operator-facing text a calibration run produces.
// Implementations print to a console, a log, or a printer frontend.
type Reporter interface {
	Respond(msg string)
}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(msg string)

// Respond implements Reporter.
func (f ReporterFunc) Respond(msg string) { f(msg) }

type nopReporter struct{}

func (nopReporter) Respond(string) {}
