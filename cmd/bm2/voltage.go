package main

import (
	"github.com/spf13/cobra"

	"github.com/KrystianD/bm2-battery-monitor/internal/publish"
)

var voltageCmd = &cobra.Command{
	Use:   "voltage",
	Short: "Print live voltage readings",
	Long: `Continuously print battery voltage readings as they arrive.

Keeps reconnecting when the monitor goes out of range. Press Ctrl+C to exit.`,
	Args: cobra.NoArgs,
	RunE: runVoltage,
}

func init() {
	rootCmd.AddCommand(voltageCmd)
}

func runVoltage(cmd *cobra.Command, args []string) error {
	client, _, log, err := startClient(cmd, nil)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx := cmd.Context()
	pub := publish.NewConsolePublisher(cmd.OutOrStdout())
	for v := range client.VoltageStream(ctx) {
		if err := pub.Publish(ctx, v); err != nil {
			log.Error("print voltage", "error", err)
		}
	}
	return nil
}
