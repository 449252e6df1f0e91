package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zcal/autoz/pkg/calibration"
	"github.com/zcal/autoz/pkg/config"
	"github.com/zcal/autoz/pkg/mockprinter"
	"github.com/zcal/autoz/pkg/moonraker"
	"github.com/zcal/autoz/pkg/serial"
)

// machineFlags selects and configures the printer transport. Exactly one of
// moonraker/port/tcp/sim is used.
type machineFlags struct {
	moonrakerURL string
	serialPort   string
	baudRate     int
	tcpAddr      string

	sim          bool
	simPinHeight float64
	simBedHeight float64
}

func (f *machineFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.moonrakerURL, "moonraker", "", "Moonraker address, e.g. printer.local:7125")
	flags.StringVar(&f.serialPort, "port", "", "G-code console serial device, e.g. /tmp/printer")
	flags.IntVar(&f.baudRate, "baud", 250000, "serial baud rate")
	flags.StringVar(&f.tcpAddr, "tcp", "", "TCP-bridged console address, e.g. host:2323")
	flags.BoolVar(&f.sim, "sim", false, "run against a simulated printer instead of hardware")
	flags.Float64Var(&f.simPinHeight, "sim-pin-height", 0.0, "simulator: trigger height over the endstop pin")
	flags.Float64Var(&f.simBedHeight, "sim-bed-height", -1.3, "simulator: trigger height over the bed")
}

// connect opens the selected transport. The returned closer is nil for the
// simulator.
func (f *machineFlags) connect(cmd *cobra.Command, profile *config.Profile) (calibration.Machine, io.Closer, error) {
	selected := 0
	for _, on := range []bool{f.moonrakerURL != "", f.serialPort != "", f.tcpAddr != "", f.sim} {
		if on {
			selected++
		}
	}
	if selected != 1 {
		return nil, nil, fmt.Errorf("select exactly one of --moonraker, --port, --tcp or --sim")
	}

	switch {
	case f.sim:
		return mockprinter.New(mockprinter.Options{
			PinHeight: f.simPinHeight,
			BedHeight: f.simBedHeight,
			PinPoint:  profile.Config.ReferencePoint,
			Alignment: calibration.AlignmentApplied,
			Homed:     true,
		}), nil, nil
	case f.moonrakerURL != "":
		c, err := moonraker.Dial(cmd.Context(), f.moonrakerURL)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case f.tcpAddr != "":
		c, err := serial.OpenTCP(f.tcpAddr, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		c, err := serial.Open(f.serialPort, f.baudRate)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
}
