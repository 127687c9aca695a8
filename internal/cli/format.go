package cli

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/domaguardian/domaguardian/pkg/client"
)

const weiDecimals = 18

// formatEther renders a wei amount as ether.
func formatEther(wei string) string {
	v, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return wei
	}
	return decimal.NewFromBigInt(v, -weiDecimals).String() + " ETH"
}

// parseAmount parses "0.001eth", "0.001 ether" or a plain wei integer.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, unit := range []string{"ether", "eth"} {
		if strings.HasSuffix(s, unit) {
			d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(s, unit)))
			if err != nil {
				return nil, fmt.Errorf("invalid amount %q", s)
			}
			wei := d.Shift(weiDecimals)
			if !wei.Equal(wei.Truncate(0)) {
				return nil, fmt.Errorf("amount %q has more than %d decimals", s, weiDecimals)
			}
			if wei.Sign() < 0 {
				return nil, fmt.Errorf("amount %q is negative", s)
			}
			return wei.BigInt(), nil
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	return v, nil
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "never"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints a committed call.
func printResult(cmd *cobra.Command, res *client.Result) error {
	if jsonOutput {
		return printJSON(cmd, res)
	}
	out := cmd.OutOrStdout()
	r := res.Receipt
	fmt.Fprintf(out, "✅ Committed call #%d (%s)\n", r.Seq, r.Hash.Hex())
	if r.Value != nil && r.Value.Sign() > 0 {
		fmt.Fprintf(out, "   Value: %s\n", formatEther(r.Value.String()))
	}
	if len(res.Output) > 0 {
		fmt.Fprintf(out, "   Output: %s\n", res.Output)
	}
	if len(r.Events) > 0 {
		fmt.Fprintln(out, "   Events:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, ev := range r.Events {
			fmt.Fprintf(w, "     %d\t%s\t%s\n", ev.Seq, ev.Name, ev.Data)
		}
		w.Flush()
	}
	return nil
}
