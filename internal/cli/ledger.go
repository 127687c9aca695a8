package cli

import (
	"context"
	"fmt"
	"math/big"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func createChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain",
		Short: "Show the network and deployed contracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := readClient().Chain(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get chain: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chain ID: %d\n", info.ChainID)
			fmt.Fprintf(out, "Price:    %s\n", formatEther(info.PriceWei))
			fmt.Fprintf(out, "Time:     %s\n", formatUnix(info.Time))
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CONTRACT\tADDRESS\tOWNER")
			for _, c := range info.Contracts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, c.Address.Hex(), c.Owner.Hex())
			}
			return w.Flush()
		},
	}
}

func createOwnershipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ownership",
		Short: "Two-step contract ownership transfer",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "transfer <contract> <new-owner>",
		Short: "Nominate a new owner",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.TransferOwnership(context.Background(), args[0], common.HexToAddress(args[1]))
			if err != nil {
				return fmt.Errorf("failed to transfer ownership: %w", err)
			}
			return printResult(cmd, res)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "accept <contract>",
		Short: "Accept a pending ownership transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.AcceptOwnership(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to accept ownership: %w", err)
			}
			return printResult(cmd, res)
		},
	})

	return cmd
}

func createDepositCmd() *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Buy one credit",
		Long: `Buy one feature credit. The value defaults to the current feature price.

EXAMPLES:
  domaguardian deposit
  domaguardian deposit --value 0.001eth
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}

			var amount *big.Int
			if value != "" {
				if amount, err = parseAmount(value); err != nil {
					return err
				}
			} else {
				info, err := c.Chain(ctx)
				if err != nil {
					return fmt.Errorf("failed to get price: %w", err)
				}
				amount, _ = new(big.Int).SetString(info.PriceWei, 10)
			}

			res, err := c.Deposit(ctx, amount)
			if err != nil {
				return fmt.Errorf("failed to deposit: %w", err)
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "amount to send, in wei or with an eth suffix")
	return cmd
}

func createCreditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credit [address]",
		Short: "Show a credit balance",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := addressArg(args, 0)
			if err != nil {
				return err
			}
			acct, err := readClient().Account(context.Background(), addr)
			if err != nil {
				return fmt.Errorf("failed to get account: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, acct)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address:    %s\n", acct.Address)
			fmt.Fprintf(out, "Credit:     %s\n", formatEther(acct.CreditWei))
			fmt.Fprintf(out, "Has credit: %t\n", acct.HasCredit)
			fmt.Fprintf(out, "Uses:       %d\n", acct.UsageCount)
			if acct.Authorized {
				fmt.Fprintln(out, "Authorized spender")
			}
			return nil
		},
	}
}

func createLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger administration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the ledger summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := readClient().Ledger(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get ledger: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Address: %s\n", info.Address)
			fmt.Fprintf(out, "Owner:   %s\n", info.Owner)
			if info.PendingOwner != "" {
				fmt.Fprintf(out, "Pending: %s\n", info.PendingOwner)
			}
			fmt.Fprintf(out, "Price:   %s\n", formatEther(info.PriceWei))
			fmt.Fprintf(out, "Held:    %s\n", formatEther(info.HeldWei))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Compare outstanding credit with held currency",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readClient().Reconciliation(context.Background())
			if err != nil {
				return fmt.Errorf("failed to reconcile: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Outstanding: %s\n", formatEther(rec.OutstandingWei))
			fmt.Fprintf(out, "Held:        %s\n", formatEther(rec.HeldWei))
			if rec.Balanced {
				fmt.Fprintln(out, "✅ Balanced")
			} else {
				fmt.Fprintf(out, "⚠️  Shortfall: %s\n", formatEther(rec.ShortfallWei))
			}
			return nil
		},
	})

	var amount string
	withdraw := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw held currency to the owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			var v *big.Int
			if amount != "" {
				var err error
				if v, err = parseAmount(amount); err != nil {
					return err
				}
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Withdraw(context.Background(), v)
			if err != nil {
				return fmt.Errorf("failed to withdraw: %w", err)
			}
			return printResult(cmd, res)
		},
	}
	withdraw.Flags().StringVar(&amount, "amount", "", "amount to withdraw (default: everything held)")
	cmd.AddCommand(withdraw)

	var disable bool
	authorize := &cobra.Command{
		Use:   "authorize <spender>",
		Short: "Allow a contract to spend ledger credit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid address %q", args[0])
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.SetAuthorized(context.Background(), common.HexToAddress(args[0]), !disable)
			if err != nil {
				return fmt.Errorf("failed to set authorization: %w", err)
			}
			return printResult(cmd, res)
		},
	}
	authorize.Flags().BoolVar(&disable, "disable", false, "revoke the authorization instead")
	cmd.AddCommand(authorize)

	return cmd
}
