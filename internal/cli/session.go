package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Open a new intake session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.NewSession(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Debug().Str("session_id", s.SessionID).Msg("Session created")

			fmt.Fprintf(cmd.OutOrStdout(), "Session:    %s\n", s.SessionID)
			fmt.Fprintf(cmd.OutOrStdout(), "Upload URL: %s\n", s.UploadURL)
			return nil
		},
	}
}

func uploadCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "upload <sessionId> <file>",
		Short: "Upload an invoice document for extraction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.log.Info().Str("session_id", args[0]).Str("file", args[1]).Msg("Uploading document")

			res, err := a.client.Upload(cmd.Context(), args[0], args[1], mode)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d invoice(s) into %s\n", res.Count, res.SessionID)
			return printJSON(cmd.OutOrStdout(), res.Invoices)
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "response shape: raw or business (server default if empty)")
	return cmd
}

func getCmd(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "get <sessionId>",
		Short: "Show a session's invoices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				res, err := a.client.GetRaw(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			res, err := a.client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "show the unnormalized vendor output")
	return cmd
}

func updateCmd(a *app) *cobra.Command {
	var (
		file   string
		status string
	)
	cmd := &cobra.Command{
		Use:   "update <sessionId>",
		Short: "Replace a session's invoices with reviewed data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, err := readInvoices(cmd, file)
			if err != nil {
				return err
			}
			if err := a.client.Update(cmd.Context(), args[0], invoices, status); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Invoice data updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON array of invoices (- for stdin)")
	cmd.Flags().StringVar(&status, "status", "", "session status to set (default user_reviewed)")
	return cmd
}
