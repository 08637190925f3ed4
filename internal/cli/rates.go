package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func ratesCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "rates [currency]",
		Short: "Show exchange rates",
		Long:  "Without an argument the whole rate table is listed. With a currency code the rate into --to (default AED) is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				r, err := a.client.ExchangeRate(cmd.Context(), args[0], to)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "1 %s = %g %s\n", r.From, r.Rate, r.To)
				return nil
			}

			table, err := a.client.Rates(cmd.Context())
			if err != nil {
				return err
			}
			codes := make([]string, 0, len(table.Rates))
			for code := range table.Rates {
				codes = append(codes, code)
			}
			sort.Strings(codes)

			fmt.Fprintf(out, "%-8s %s\n", "CURRENCY", table.Base)
			for _, code := range codes {
				fmt.Fprintf(out, "%-8s %g\n", code, table.Rates[code])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target currency")
	return cmd
}
