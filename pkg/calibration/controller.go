package calibration

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// State is a stage of a calibration run.
type State int

const (
	StateIdle State = iota
	StateCheckingHomed
	StateCheckingAlignment
	StateProbing
	StateComputing
	StateValidating
	StateApplying
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingHomed:
		return "checking_homed"
	case StateCheckingAlignment:
		return "checking_alignment"
	case StateProbing:
		return "probing"
	case StateComputing:
		return "computing"
	case StateValidating:
		return "validating"
	case StateApplying:
		return "applying"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one calibration run. The caller owns it; the
// controller keeps nothing between runs.
type Result struct {
	// ReferenceHeight is the trigger height on the endstop pin.
	ReferenceHeight float64

	// BedHeight is the trigger height on the bed surface.
	BedHeight float64

	// ComputedOffset is the calculated gcode Z offset. Only meaningful
	// once the run reached the computing stage.
	ComputedOffset float64

	// Accepted reports whether the offset passed validation and was
	// applied to the printer.
	Accepted bool

	// RejectionReason holds the error that stopped the run, nil on success.
	RejectionReason error

	// FinalState is the terminal state the run ended in.
	FinalState State

	Started  time.Time
	Finished time.Time
}

// Controller runs the calibration from precondition checks to applying the
// offset. One Controller serves one machine; concurrent runs are refused.
type Controller struct {
	machine  Machine
	cfg      Config
	reporter Reporter
	log      *logrus.Entry

	inProgress atomic.Bool
}

// NewController validates cfg and builds a controller for machine. reporter
// may be nil to discard operator output.
func NewController(machine Machine, cfg Config, reporter Reporter) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Controller{
		machine:  machine,
		cfg:      cfg,
		reporter: reporter,
		log:      logrus.WithField("component", "calibration"),
	}, nil
}

// Run executes one calibration. The returned Result is filled in on every
// path; err is non-nil whenever Result.Accepted is false. A second Run while
// one is in flight fails with ErrCalibrationInProgress before touching the
// machine.
//
// Stage failures are terminal for the run. Nothing is retried: re-probing
// without the operator fixing the cause (wrong pin location, unleveled
// gantry) risks driving the probe into the bed.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if !c.inProgress.CompareAndSwap(false, true) {
		return nil, ErrCalibrationInProgress
	}
	defer c.inProgress.Store(false)

	res := &Result{Started: time.Now(), FinalState: StateIdle}
	err := c.run(ctx, res)
	res.Finished = time.Now()
	if err != nil {
		res.Accepted = false
		res.RejectionReason = err
		if res.FinalState != StateRejected {
			res.FinalState = StateFailed
		}
		c.log.WithError(err).WithField("state", res.FinalState).Error("calibration failed")
		c.reporter.Respond(fmt.Sprintf("Calibration aborted: %v", err))
		return res, err
	}
	res.Accepted = true
	res.FinalState = StateApplying
	return res, nil
}

func (c *Controller) run(ctx context.Context, res *Result) error {
	res.FinalState = StateCheckingHomed
	if err := checkCtx(ctx); err != nil {
		return err
	}
	hx, hy, hz, err := c.machine.HomedAxes(ctx)
	if err != nil {
		return wrapMachine(err, "homed axes query")
	}
	if err := CheckHomed(hx, hy, hz); err != nil {
		return err
	}

	res.FinalState = StateCheckingAlignment
	if c.cfg.IgnoreAlignment {
		c.reporter.Respond("Ignoring gantry alignment as requested in the config")
	} else {
		state, err := c.machine.AlignmentState(ctx)
		if err != nil {
			return wrapMachine(err, "alignment state query")
		}
		if err := CheckAlignment(&c.cfg, state); err != nil {
			return err
		}
	}

	res.FinalState = StateProbing
	// A stale gcode offset would shift every probe result, so it is
	// cleared before any measurement.
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := c.machine.SetZOffset(ctx, 0); err != nil {
		return wrapMachine(err, "gcode offset reset")
	}
	seq := &sequencer{machine: c.machine, cfg: &c.cfg, log: c.log}
	pin, bed, err := seq.run(ctx)
	if err != nil {
		return err
	}
	res.ReferenceHeight = pin.TriggerHeight
	res.BedHeight = bed.TriggerHeight

	res.FinalState = StateComputing
	offset := ComputeOffset(pin.TriggerHeight, bed.TriggerHeight, &c.cfg)
	res.ComputedOffset = offset
	c.reporter.Respond(fmt.Sprintf(
		"Bed: %.3f\nEndstop: %.3f\nDiff: %.3f\nManual Adjust: %.3f\nTotal Calculated Offset: %.3f",
		bed.TriggerHeight, pin.TriggerHeight,
		pin.TriggerHeight-bed.TriggerHeight, c.cfg.ManualAdjust, offset))

	res.FinalState = StateValidating
	if err := CheckBounds(offset, &c.cfg); err != nil {
		res.FinalState = StateRejected
		return err
	}

	res.FinalState = StateApplying
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := c.machine.SetZOffset(ctx, offset); err != nil {
		return wrapMachine(err, "gcode offset apply")
	}
	c.log.WithField("offset", offset).Info("calibration applied")
	return nil
}
