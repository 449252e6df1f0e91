package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zcal/autoz/pkg/calibration"
	"github.com/zcal/autoz/pkg/config"
)

func NewCalibrateCommand() *cobra.Command {
	var mf machineFlags
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Probe the endstop pin and the bed and apply the calculated Z offset",
		Long: `Runs the full calibration: checks that the axes are homed and the
gantry is leveled, probes the endstop pin and the bed point from the config,
and applies the resulting offset via SET_GCODE_OFFSET unless it falls outside
the configured fail-safe bounds.

With --dry-run the run stops after the precondition checks; nothing moves.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := config.LoadProfile(configPath)
			if err != nil {
				return err
			}

			machine, closer, err := mf.connect(cmd, profile)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			if dryRun {
				return dryRunChecks(cmd, machine, profile)
			}

			reporter := calibration.ReporterFunc(func(msg string) {
				fmt.Println(msg)
			})
			ctrl, err := calibration.NewController(machine, profile.Config, reporter)
			if err != nil {
				return err
			}

			res, err := ctrl.Run(cmd.Context())
			if err != nil {
				state := "failed"
				if res != nil {
					state = res.FinalState.String()
				}
				color.New(color.FgRed, color.Bold).Printf("Calibration %s\n", state)
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("Calibration applied: Z offset %.3f\n", res.ComputedOffset)
			return nil
		},
	}

	mf.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "stop after the precondition checks, before any probing")
	return cmd
}

// dryRunChecks runs only the homing and alignment gates.
func dryRunChecks(cmd *cobra.Command, machine calibration.Machine, profile *config.Profile) error {
	ctx := cmd.Context()
	hx, hy, hz, err := machine.HomedAxes(ctx)
	if err != nil {
		return err
	}
	if err := calibration.CheckHomed(hx, hy, hz); err != nil {
		return err
	}
	if !profile.Config.IgnoreAlignment {
		state, err := machine.AlignmentState(ctx)
		if err != nil {
			return err
		}
		if err := calibration.CheckAlignment(&profile.Config, state); err != nil {
			return err
		}
	}
	color.New(color.FgGreen).Println("Preconditions pass; ready to calibrate")
	return nil
}
