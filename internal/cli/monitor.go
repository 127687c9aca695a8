package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func createMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Paid monitoring subscriptions",
	}

	var threshold int64
	subscribe := &cobra.Command{
		Use:   "subscribe <target>",
		Short: "Subscribe to alerts on a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Subscribe(context.Background(), args[0], threshold)
			if err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}
			return printResult(cmd, res)
		},
	}
	subscribe.Flags().Int64Var(&threshold, "threshold", 0, "alert value that counts as reached")
	cmd.AddCommand(subscribe)

	cmd.AddCommand(&cobra.Command{
		Use:   "stop <index>",
		Short: "Stop one of your subscriptions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.StopMonitoring(context.Background(), index)
			if err != nil {
				return fmt.Errorf("failed to stop monitoring: %w", err)
			}
			return printResult(cmd, res)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "alert <target> <kind> <value>",
		Short: "Raise an alert on a target (operator)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[2])
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.TriggerAlert(context.Background(), args[0], args[1], value)
			if err != nil {
				return fmt.Errorf("failed to trigger alert: %w", err)
			}
			return printResult(cmd, res)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list [address]",
		Short: "List subscriptions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := addressArg(args, 0)
			if err != nil {
				return err
			}
			subs, err := readClient().Subscriptions(context.Background(), user)
			if err != nil {
				return fmt.Errorf("failed to list subscriptions: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, subs)
			}
			if len(subs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No subscriptions found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tTARGET\tTHRESHOLD\tACTIVE\tALERTS\tCREATED")
			for _, s := range subs {
				fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%d\t%s\n", s.Index, s.Target, s.Threshold, s.Active, s.AlertCount, formatUnix(s.CreatedAt))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "subscribers <target>",
		Short: "List the subscribers of a target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := readClient().Subscribers(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list subscribers: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, addrs)
			}
			for _, a := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), a.Hex())
			}
			return nil
		},
	})

	return cmd
}
