// autoz calibrates a printer's nozzle Z offset against a physical Z endstop
// pin, CNC-style: probe the pin, probe the bed, apply the difference.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	logLevel   = "info"
	configPath = "printer.cfg"
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}
	return nil
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autoz",
		Short: "autoz calibrates the nozzle Z offset using a physical Z endstop as reference",
		Long: `autoz probes a fixed Z endstop pin (absolute Z=0) and a point on the
bed with the same probe, then applies the difference, corrected for the
endstop switch travel and an optional manual adjustment, as the printer's
gcode Z offset.

The printer is reached through Moonraker (--moonraker), a G-code serial
console (--port / --tcp), or a built-in simulator (--sim).`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVarP(&configPath, "config", "c", configPath, "printer.cfg-style config file with an [auto_offset_z] section")

	cmd.AddCommand(
		NewCalibrateCommand(),
		NewCheckCommand(),
		NewPortsCommand(),
		NewVersionCommand(),
	)
	return cmd
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
