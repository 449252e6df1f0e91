package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zcal/autoz/pkg/serial"
)

func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports that may carry a G-code console",
		RunE: func(_ *cobra.Command, _ []string) error {
			ports, err := serial.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Println("no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Println(p)
			}
			return nil
		},
	}
}
