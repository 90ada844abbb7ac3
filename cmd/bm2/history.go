package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KrystianD/bm2-battery-monitor/internal/ble/protocol"
)

const historyDateLayout = "2006-01-02 15:04:05"

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Download the on-device voltage history",
	Long: `Wait for the monitor to connect, download its stored voltage log and print
one line per record, oldest first.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, _, _, err := startClient(cmd, nil)
	if err != nil {
		return err
	}
	defer client.Stop()

	ctx := cmd.Context()
	if err := client.WaitForConnected(ctx); err != nil {
		return err
	}

	readings, err := client.GetHistory(ctx)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return printHistory(cmd.OutOrStdout(), readings)
}

func printHistory(w io.Writer, readings []protocol.HistoryReading) error {
	for _, r := range readings {
		if _, err := fmt.Fprintf(w, "%s = %v V\n", r.Date.Format(historyDateLayout), r.Voltage); err != nil {
			return err
		}
	}
	return nil
}
