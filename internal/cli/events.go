package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/domaguardian/domaguardian/pkg/client"
)

func createEventsCmd() *cobra.Command {
	var q client.EventQuery

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List journaled events",
		Long: `List events in commit order.

EXAMPLES:
  domaguardian events --contract ledger
  domaguardian events --name AlertTriggered --limit 100
  domaguardian events --tx 42
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := readClient().Events(context.Background(), q)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			if jsonOutput {
				return printJSON(cmd, page)
			}
			if len(page.Data) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTX\tCONTRACT\tEVENT\tTIME\tDATA")
			for _, ev := range page.Data {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", ev.Seq, ev.TxSeq, ev.Contract, ev.Name, ev.Time.UTC().Format(time.RFC3339), ev.Data)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if page.Pagination.HasMore {
				fmt.Fprintf(cmd.OutOrStdout(), "\nMore events: --cursor %s\n", page.Pagination.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.Contract, "contract", "", "filter by contract name")
	cmd.Flags().StringVar(&q.Name, "name", "", "filter by event name")
	cmd.Flags().Uint64Var(&q.TxSeq, "tx", 0, "filter by call sequence number")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "number of events to show")
	cmd.Flags().StringVar(&q.Cursor, "cursor", "", "cursor from a previous page")
	return cmd
}
