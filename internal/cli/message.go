package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/domaguardian/domaguardian/pkg/client"
)

func createMessageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "message",
		Aliases: []string{"msg"},
		Short:   "Paid messaging",
	}

	var destination uint64
	send := &cobra.Command{
		Use:   "send <recipient> <text>",
		Short: "Send a message",
		Long: `Send a message. With --chain the message is recorded for delivery to
another chain and is not added to the recipient's inbox.

EXAMPLES:
  domaguardian message send 0xabc... "is example.doma for sale?"
  domaguardian message send 0xabc... "bridged offer" --chain 1
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("invalid address %q", args[0])
			}
			recipient := common.HexToAddress(args[0])
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}

			var res *client.Result
			if destination != 0 {
				res, err = c.SendCrossChainMessage(context.Background(), destination, recipient, args[1])
			} else {
				res, err = c.SendMessage(context.Background(), recipient, args[1])
			}
			if err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			return printResult(cmd, res)
		},
	}
	send.Flags().Uint64Var(&destination, "chain", 0, "destination chain id for a cross-chain message")
	cmd.AddCommand(send)

	var offset, limit uint64
	list := &cobra.Command{
		Use:   "list",
		Short: "List all messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readClient().Messages(context.Background(), offset, limit)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, page)
			}
			if err := printMessages(cmd, page.Data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d messages\n", len(page.Data), page.Total)
			return nil
		},
	}
	list.Flags().Uint64Var(&offset, "offset", 0, "first message id")
	list.Flags().Uint64Var(&limit, "limit", 20, "number of messages to show")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			msg, err := readClient().Message(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to get message: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, msg)
			}
			return printMessages(cmd, []client.Message{*msg})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "inbox [address]",
		Short: "List received messages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := addressArg(args, 0)
			if err != nil {
				return err
			}
			msgs, err := readClient().ReceivedMessages(context.Background(), user)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, msgs)
			}
			return printMessages(cmd, msgs)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sent [address]",
		Short: "List sent messages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := addressArg(args, 0)
			if err != nil {
				return err
			}
			msgs, err := readClient().SentMessages(context.Background(), user)
			if err != nil {
				return fmt.Errorf("failed to list messages: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, msgs)
			}
			return printMessages(cmd, msgs)
		},
	})

	return cmd
}

func printMessages(cmd *cobra.Command, msgs []client.Message) error {
	if len(msgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages found")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tCHAIN\tSENT\tTEXT")
	for _, m := range msgs {
		chain := "-"
		if m.CrossChain {
			chain = strconv.FormatUint(m.DestinationChainID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.Sender.Hex(), m.Recipient.Hex(), chain, formatUnix(m.Timestamp), m.Text)
	}
	return w.Flush()
}
