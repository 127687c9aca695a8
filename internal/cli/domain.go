package cli

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func createDomainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Tokenized domains and their rights",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tokenize <name>",
		Short: "Tokenize a domain to yourself",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Tokenize(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to tokenize: %w", err)
			}
			return printResult(cmd, res)
		},
	})

	var duration time.Duration
	grant := &cobra.Command{
		Use:   "grant <name> <right> <holder>",
		Short: "Grant a time-bounded right",
		Long: `Grant a right on a domain you own. A zero --duration never expires.

EXAMPLES:
  domaguardian domain grant example.doma lease 0xabc... --duration 720h
`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[2]) {
				return fmt.Errorf("invalid address %q", args[2])
			}
			if duration < 0 {
				return fmt.Errorf("--duration cannot be negative")
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.GrantRight(context.Background(), args[0], args[1], common.HexToAddress(args[2]), uint64(duration/time.Second))
			if err != nil {
				return fmt.Errorf("failed to grant right: %w", err)
			}
			return printResult(cmd, res)
		},
	}
	grant.Flags().DurationVar(&duration, "duration", 0, "how long the right lasts (0 = forever)")
	cmd.AddCommand(grant)

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <name> <right>",
		Short: "Clear a right",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.RevokeRight(context.Background(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to revoke right: %w", err)
			}
			return printResult(cmd, res)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "transfer <name> <new-owner>",
		Short: "Transfer a domain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.TransferDomain(context.Background(), args[0], common.HexToAddress(args[1]))
			if err != nil {
				return fmt.Errorf("failed to transfer domain: %w", err)
			}
			return printResult(cmd, res)
		},
	})

	var active bool
	syncCmd := &cobra.Command{
		Use:   "sync <name>",
		Short: "Mirror the external active state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.SyncActiveState(context.Background(), args[0], active)
			if err != nil {
				return fmt.Errorf("failed to sync domain: %w", err)
			}
			return printResult(cmd, res)
		},
	}
	syncCmd.Flags().BoolVar(&active, "active", true, "active state to record")
	cmd.AddCommand(syncCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show a domain record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readClient().Domain(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get domain: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, d)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:      %s\n", d.Name)
			fmt.Fprintf(out, "Owner:     %s\n", d.Owner.Hex())
			fmt.Fprintf(out, "Tokenized: %s\n", formatUnix(d.TokenizedAt))
			fmt.Fprintf(out, "Active:    %t\n", d.Active)
			if len(d.Rights) == 0 {
				return nil
			}
			fmt.Fprintln(out, "Rights:")
			names := make([]string, 0, len(d.Rights))
			for name := range d.Rights {
				names = append(names, name)
			}
			slices.Sort(names)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, name := range names {
				r := d.Rights[name]
				fmt.Fprintf(w, "  %s\t%s\texpires %s\n", name, r.Holder.Hex(), formatUnix(r.ExpiresAt))
			}
			return w.Flush()
		},
	})

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tokenized domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := readClient()
			var names []string
			var err error
			if owner != "" {
				if !common.IsHexAddress(owner) {
					return fmt.Errorf("invalid --owner %q", owner)
				}
				names, err = c.DomainsOf(context.Background(), common.HexToAddress(owner))
			} else {
				names, err = c.Domains(context.Background())
			}
			if err != nil {
				return fmt.Errorf("failed to list domains: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, names)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No domains found")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "only domains owned by this address")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "history <name>",
		Short: "Show the grant history of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grants, err := readClient().RightHistory(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, grants)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RIGHT\tHOLDER\tGRANTED\tEXPIRES")
			for _, g := range grants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Right, g.Holder.Hex(), formatUnix(g.GrantedAt), formatUnix(g.ExpiresAt))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <name> <right> <holder>",
		Short: "Check whether an address holds a live right",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[2]) {
				return fmt.Errorf("invalid address %q", args[2])
			}
			check, err := readClient().HasRight(context.Background(), args[0], args[1], common.HexToAddress(args[2]))
			if err != nil {
				return fmt.Errorf("failed to check right: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, check)
			}
			if check.HasRight {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s holds %s on %s (expires %s)\n", check.Holder, check.Right, check.Name, formatUnix(check.ExpiresAt))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "❌ %s does not hold %s on %s\n", check.Holder, check.Right, check.Name)
			}
			return nil
		},
	})

	return cmd
}
