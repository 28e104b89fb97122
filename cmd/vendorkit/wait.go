package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vendorkit/vendorkit/pkg/operations"
)

var waitCmd = &cobra.Command{
	Use:   "wait <operation-id>",
	Short: "Poll a long-running operation until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := vendorClient(cmd)
		if err != nil {
			return err
		}

		pathPrefix, err := cmd.Flags().GetString("path-prefix")
		if err != nil {
			return err
		}
		interval, err := cmd.Flags().GetDuration("interval")
		if err != nil {
			return err
		}
		timeout, err := cmd.Flags().GetDuration("timeout")
		if err != nil {
			return err
		}
		if interval <= 0 {
			interval = cfg.Poll.Interval()
		}
		if timeout <= 0 {
			timeout = cfg.Poll.Timeout()
		}

		poller := &operations.Poller{
			Fetch:    operations.FetchVia(client, pathPrefix, nil),
			Interval: interval,
			Timeout:  timeout,
		}

		start := time.Now()
		op, err := poller.Wait(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s after %s\n",
			op.ID, color.GreenString("%s", op.Status), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	waitCmd.Flags().String("path-prefix", "/operations", "endpoint prefix the operation id is appended to")
	waitCmd.Flags().Duration("interval", 0, "poll interval (defaults to poll.interval_ms)")
	waitCmd.Flags().Duration("timeout", 0, "wall-clock budget (defaults to poll.timeout_ms)")
}
