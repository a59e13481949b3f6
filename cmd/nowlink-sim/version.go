package main

import (
	"fmt"

	"github.com/opd-ai/nowlink/real"
	simradio "github.com/opd-ai/nowlink/testing"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show nowlink-sim and radio protocol versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "nowlink-sim version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "simulated radio protocol: %d\n", simradio.SimulatedVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "udp frame version: %d\n", real.FrameVersion)
			return nil
		},
	}
}
