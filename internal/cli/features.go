package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/domaguardian/domaguardian/pkg/client"
)

func createRequestCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "request <kind> <target>",
		Short: "Request a paid analysis",
		Long: `Request an analysis. Kinds are contract-risk, tokenomics and social-sentiment.
Each request spends one credit.

EXAMPLES:
  domaguardian request contract-risk 0x1234...abcd
  domaguardian request tokenomics DOMA --param symbol=DOMA
  domaguardian request social-sentiment example.doma --param platform=x
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p any
			if len(params) > 0 {
				m, err := parseParams(params)
				if err != nil {
					return err
				}
				p = m
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Request(context.Background(), args[0], args[1], p)
			if err != nil {
				return fmt.Errorf("failed to submit request: %w", err)
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "request parameter as key=value (repeatable)")
	return cmd
}

func createRequestsCmd() *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "requests <kind> [address]",
		Short: "List analysis requests",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c := readClient()

			var records []client.FeatureRecord
			var err error
			if pending {
				records, err = c.Pending(ctx, args[0])
			} else {
				var user common.Address
				if user, err = addressArg(args, 1); err != nil {
					return err
				}
				records, err = c.Requests(ctx, args[0], user)
			}
			if err != nil {
				return fmt.Errorf("failed to list requests: %w", err)
			}

			if jsonOutput {
				return printJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tREQUESTER\tTARGET\tSTATUS\tRESULT")
			for _, r := range records {
				status, result := "pending", "-"
				if r.Completed {
					status, result = "completed", string(r.Result)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Index, r.Requester.Hex(), r.Target, status, result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "list incomplete requests of every user")
	return cmd
}

func createCompleteCmd() *cobra.Command {
	var result string

	cmd := &cobra.Command{
		Use:   "complete <kind> <user> <index>",
		Short: "Attach a result to a request (operator)",
		Long: `Attach the analysis result to a request. Only the contract owner can complete.

EXAMPLES:
  domaguardian complete contract-risk 0xabc... 0 --result '{"score":82,"report":"..."}'
`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			index, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid index %q", args[2])
			}
			if !json.Valid([]byte(result)) {
				return fmt.Errorf("--result must be valid JSON")
			}
			c, err := writeClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.Complete(context.Background(), args[0], common.HexToAddress(args[1]), index, json.RawMessage(result))
			if err != nil {
				return fmt.Errorf("failed to complete request: %w", err)
			}
			return printResult(cmd, res)
		},
	}

	cmd.Flags().StringVar(&result, "result", "", "result object as JSON (required)")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

// parseParams turns key=value pairs into a params object.
func parseParams(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q (want key=value)", p)
		}
		out[k] = v
	}
	return out, nil
}
