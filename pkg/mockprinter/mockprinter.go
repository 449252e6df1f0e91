// Package mockprinter simulates a printer behind the calibration.Machine
// interface. It answers motion and probe calls instantly with configurable
// trigger heights, which makes it usable both for tests and for dry runs of
// the CLI without hardware.
package mockprinter

import (
	"context"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zcal/autoz/pkg/calibration"
)

// Options configures the simulated printer.
type Options struct {
	// PinHeight is the trigger height reported over the endstop pin.
	PinHeight float64

	// BedHeight is the trigger height reported over the bed.
	BedHeight float64

	// PinPoint tells the simulator which XY counts as the pin; probes
	// elsewhere report BedHeight.
	PinPoint calibration.Point

	// Jitter adds uniform noise of +/- Jitter to every probe result.
	Jitter float64

	// Alignment is the reported gantry leveling state.
	Alignment calibration.AlignmentState

	// Homed reports all axes homed when true.
	Homed bool

	// Seed fixes the noise source; 0 keeps results noise-free even with
	// Jitter set by tests that want determinism.
	Seed int64
}

// Printer is a simulated machine. Safe for concurrent use.
type Printer struct {
	mu sync.Mutex

	opts Options
	rng  *rand.Rand
	log  *logrus.Entry

	x, y, z float64

	// ProbeErr, when set, is returned by the next ProbeDown call.
	ProbeErr error

	moves   []Move
	applied []float64
}

// Move is one recorded MoveTo call.
type Move struct {
	X, Y, Z, Speed float64
}

// New creates a simulated printer.
func New(opts Options) *Printer {
	p := &Printer{
		opts: opts,
		log:  logrus.WithField("component", "mockprinter"),
	}
	if opts.Seed != 0 {
		p.rng = rand.New(rand.NewSource(opts.Seed))
	}
	return p
}

// Position implements calibration.Machine.
func (p *Printer) Position(ctx context.Context) (float64, float64, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y, p.z, nil
}

// MoveTo implements calibration.Machine.
func (p *Printer) MoveTo(ctx context.Context, x, y, z, speed float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x, p.y, p.z = x, y, z
	p.moves = append(p.moves, Move{x, y, z, speed})
	p.log.WithFields(logrus.Fields{"x": x, "y": y, "z": z, "speed": speed}).Debug("move")
	return nil
}

// ProbeDown implements calibration.Machine.
func (p *Printer) ProbeDown(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProbeErr != nil {
		err := p.ProbeErr
		p.ProbeErr = nil
		return 0, err
	}
	h := p.opts.BedHeight
	if p.x == p.opts.PinPoint.X && p.y == p.opts.PinPoint.Y {
		h = p.opts.PinHeight
	}
	if p.opts.Jitter > 0 && p.rng != nil {
		h += (p.rng.Float64()*2 - 1) * p.opts.Jitter
	}
	p.z = h
	p.log.WithFields(logrus.Fields{"x": p.x, "y": p.y, "z": h}).Debug("probe")
	return h, nil
}

// AlignmentState implements calibration.Machine.
func (p *Printer) AlignmentState(ctx context.Context) (calibration.AlignmentState, error) {
	return p.opts.Alignment, nil
}

// HomedAxes implements calibration.Machine.
func (p *Printer) HomedAxes(ctx context.Context) (bool, bool, bool, error) {
	return p.opts.Homed, p.opts.Homed, p.opts.Homed, nil
}

// SetZOffset implements calibration.Machine.
func (p *Printer) SetZOffset(ctx context.Context, offset float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, offset)
	p.log.WithField("offset", offset).Info("gcode offset set")
	return nil
}

// Moves returns a copy of the recorded motion log.
func (p *Printer) Moves() []Move {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Move, len(p.moves))
	copy(out, p.moves)
	return out
}

// AppliedOffsets returns every SetZOffset value in call order.
func (p *Printer) AppliedOffsets() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float64, len(p.applied))
	copy(out, p.applied)
	return out
}
