package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/itohio/iaware/pkg/client"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Enable streaming",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDevice(func(dev client.Device) error {
				if err := dev.Start(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "streaming enabled")
				return nil
			})
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Disable streaming",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDevice(func(dev client.Device) error {
				if err := dev.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "streaming disabled")
				return nil
			})
		},
	}
}

func newSetFsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-fs HZ",
		Short: "Persist a new sampling frequency and restart the node",
		Long: `Persist a new sampling frequency. The node restarts to resize its
buffers and comes back with streaming disabled.

Example:
  iactl set-fs 10000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hz, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || hz == 0 {
				return fmt.Errorf("invalid sampling frequency %q", args[0])
			}
			return a.withDevice(func(dev client.Device) error {
				if err := dev.SetSamplingFrequency(uint32(hz)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sampling frequency set to %d Hz, node restarting\n", hz)
				return nil
			})
		},
	}
}

func newSetSendFreqCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-send-freq HZ",
		Short: "Change how often the node sends a frame",
		Long: `Change the frame rate of the running node, in Hz with 0.1 Hz
resolution. Takes effect immediately.

Example:
  iactl set-send-freq 2.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hz, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid send frequency %q", args[0])
			}
			d, err := deciHz(hz)
			if err != nil {
				return err
			}
			return a.withDevice(func(dev client.Device) error {
				if err := dev.SetSendFrequency(d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "send frequency set to %.1f Hz\n", float64(d)/10)
				return nil
			})
		},
	}
}
