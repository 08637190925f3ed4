package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-intake/internal/apiclient"
)

func finalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <sessionId>",
		Short: "Book a session's stored invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Finalize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printBookings(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func bookCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "book <sessionId>",
		Short: "Validate and book invoices from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, err := readInvoices(cmd, file)
			if err != nil {
				return err
			}
			res, err := a.client.Book(cmd.Context(), args[0], invoices)
			if err != nil {
				return err
			}
			printBookings(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON array of invoices (- for stdin)")
	return cmd
}

func printBookings(w io.Writer, res *apiclient.BookingResponse) {
	fmt.Fprintf(w, "Booked %d invoice(s)\n\n", res.Count)
	fmt.Fprintf(w, "%-15s %-20s %-10s %14s %s\n", "REFERENCE", "INVOICE", "SUPPLIER", "AMOUNT", "CURRENCY")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, b := range res.Bookings {
		number := b.InvoiceNumber
		if len(number) > 20 {
			number = number[:17] + "..."
		}
		fmt.Fprintf(w, "%-15s %-20s %-10s %14.2f %s\n", b.Reference, number, b.SupplierNumber, b.Amount, b.Currency)
	}
	if res.ExportJobID != "" {
		fmt.Fprintf(w, "\nExport job: %s\n", res.ExportJobID)
	}
}
