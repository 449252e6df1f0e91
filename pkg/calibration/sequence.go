package calibration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Measurement is one probed point.
type Measurement struct {
	// Point is the XY the probe was positioned over.
	Point Point

	// TriggerHeight is the Z at which the probe triggered. With several
	// samples this is their aggregate.
	TriggerHeight float64

	// At records when the measurement finished.
	At time.Time
}

// sequencer executes the two-point probe protocol: lift, travel to the
// endstop pin, probe, lift, travel to the bed point, probe, lift. Horizontal
// travel only ever happens at hop height.
type sequencer struct {
	machine Machine
	cfg     *Config
	log     *logrus.Entry
}

// run probes the endstop pin and the bed point. Whatever happens, the
// toolhead ends up lifted to hop height; on failure the lift is best effort.
func (s *sequencer) run(ctx context.Context) (pin, bed Measurement, err error) {
	defer func() {
		if err != nil {
			s.safeLift(ctx)
		}
	}()

	if err = checkCtx(ctx); err != nil {
		return
	}
	x, y, _, merr := s.machine.Position(ctx)
	if merr != nil {
		err = wrapMachine(merr, "position query")
		return
	}
	if err = s.lift(ctx, x, y); err != nil {
		return
	}

	pin, err = s.probePoint(ctx, s.cfg.ReferencePoint)
	if err != nil {
		return
	}
	if err = checkEndstopBounds(pin.TriggerHeight, s.cfg); err != nil {
		return
	}

	bed, err = s.probePoint(ctx, s.cfg.BedPoint)
	return
}

// probePoint travels to pt at hop height, takes the configured number of
// samples and lifts back to hop height.
func (s *sequencer) probePoint(ctx context.Context, pt Point) (Measurement, error) {
	if err := s.travel(ctx, pt); err != nil {
		return Measurement{}, err
	}

	samples := make([]float64, 0, s.cfg.Samples)
	for i := 0; i < s.cfg.Samples; i++ {
		// Retract between samples (except before the first)
		if i > 0 {
			retractZ := samples[i-1] + s.cfg.SampleRetractDist
			if err := s.moveTo(ctx, pt.X, pt.Y, retractZ, s.cfg.HopSpeed); err != nil {
				return Measurement{}, err
			}
		}

		if err := checkCtx(ctx); err != nil {
			return Measurement{}, err
		}
		h, err := s.machine.ProbeDown(ctx)
		if err != nil {
			var cerr *CalibrationError
			if errors.As(err, &cerr) {
				return Measurement{}, err
			}
			return Measurement{}, &CalibrationError{
				Code:    ErrProbeNoTrigger,
				Message: fmt.Sprintf("probe at %.3f,%.3f failed: %v", pt.X, pt.Y, err),
				Err:     err,
			}
		}
		s.log.WithFields(logrus.Fields{
			"x": pt.X, "y": pt.Y, "z": h, "sample": i + 1,
		}).Debug("probe sample")
		samples = append(samples, h)
	}

	if err := s.lift(ctx, pt.X, pt.Y); err != nil {
		return Measurement{}, err
	}

	if spread := maxFloat(samples) - minFloat(samples); len(samples) > 1 && spread > s.cfg.SamplesTolerance {
		return Measurement{}, newError(ErrProbeInconsistent,
			"probe samples exceed tolerance (range=%.6f, tolerance=%.6f)", spread, s.cfg.SamplesTolerance)
	}

	return Measurement{
		Point:         pt,
		TriggerHeight: aggregateSamples(samples, s.cfg.SamplesResult),
		At:            time.Now(),
	}, nil
}

// travel moves horizontally at hop height.
func (s *sequencer) travel(ctx context.Context, pt Point) error {
	return s.moveTo(ctx, pt.X, pt.Y, s.cfg.HopHeight, s.cfg.TravelSpeed)
}

// lift raises the toolhead to hop height at the given XY.
func (s *sequencer) lift(ctx context.Context, x, y float64) error {
	return s.moveTo(ctx, x, y, s.cfg.HopHeight, s.cfg.HopSpeed)
}

func (s *sequencer) moveTo(ctx context.Context, x, y, z, speed float64) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := s.machine.MoveTo(ctx, x, y, z, speed); err != nil {
		return wrapMachine(err, fmt.Sprintf("move to %.3f,%.3f,%.3f", x, y, z))
	}
	return nil
}

// safeLift parks the toolhead at hop height after a failure. It runs on a
// detached context so a canceled run still ends lifted.
func (s *sequencer) safeLift(ctx context.Context) {
	lctx := context.WithoutCancel(ctx)
	x, y, _, err := s.machine.Position(lctx)
	if err != nil {
		s.log.WithError(err).Warn("cannot read position for safety lift")
		return
	}
	if err := s.machine.MoveTo(lctx, x, y, s.cfg.HopHeight, s.cfg.HopSpeed); err != nil {
		s.log.WithError(err).Warn("safety lift failed")
	}
}

// checkCtx reports cancellation before the next machine command is issued.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return canceledError(ctx.Err())
	default:
		return nil
	}
}

// aggregateSamples reduces the samples of one point to a single height.
func aggregateSamples(samples []float64, method string) float64 {
	if len(samples) == 0 {
		return 0
	}
	if method == "median" {
		sorted := append([]float64(nil), samples...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

func maxFloat(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func minFloat(values []float64) float64 {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
