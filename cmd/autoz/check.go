package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zcal/autoz/pkg/config"
)

func NewCheckCommand() *cobra.Command {
	var mf machineFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report the loaded profile and the printer's readiness without probing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := config.LoadProfile(configPath)
			if err != nil {
				return err
			}
			cfg := profile.Config

			bold := color.New(color.Bold).SprintFunc()
			fmt.Printf("Profile from %s:\n", configPath)
			fmt.Printf("  Endstop pin point:  %s (probe-adjusted)\n", bold(fmt.Sprintf("%.1f, %.1f", cfg.ReferencePoint.X, cfg.ReferencePoint.Y)))
			fmt.Printf("  Bed point:          %s (probe-adjusted)\n", bold(fmt.Sprintf("%.1f, %.1f", cfg.BedPoint.X, cfg.BedPoint.Y)))
			fmt.Printf("  Probe:              [%s] offset %.1f, %.1f\n", profile.ProbeSection, profile.ProbeXOffset, profile.ProbeYOffset)
			fmt.Printf("  Leveling:           %s\n", profile.AlignmentKind)
			fmt.Printf("  Offset bounds:      [%.3f, %.3f]\n", cfg.OffsetMin, cfg.OffsetMax)
			fmt.Printf("  Endstop bounds:     [%.3f, %.3f] (0 = disabled)\n", cfg.EndstopMin, cfg.EndstopMax)
			fmt.Printf("  Switch trigger:     %.3f\n", cfg.SwitchTriggerDistance)
			fmt.Printf("  Manual adjust:      %.3f\n", cfg.ManualAdjust)
			fmt.Printf("  Hop:                %.1f mm at %.0f mm/s\n", cfg.HopHeight, cfg.HopSpeed)
			fmt.Printf("  Samples:            %d (%s)\n", cfg.Samples, cfg.SamplesResult)

			machine, closer, err := mf.connect(cmd, profile)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			ctx := cmd.Context()
			hx, hy, hz, err := machine.HomedAxes(ctx)
			if err != nil {
				return err
			}
			state, err := machine.AlignmentState(ctx)
			if err != nil {
				return err
			}

			fmt.Println("Printer:")
			fmt.Printf("  Homed axes:         X=%v Y=%v Z=%v\n", hx, hy, hz)
			fmt.Printf("  Alignment:          %s\n", state)
			return nil
		},
	}

	mf.register(cmd)
	return cmd
}
