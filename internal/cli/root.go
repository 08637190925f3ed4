// Package cli implements invoicectl, a command line client for the invoice
// intake API.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/invoice-intake/internal/apiclient"
	"github.com/dvloznov/invoice-intake/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
)

// SetVersion sets the version information
func SetVersion(v, c string) {
	version = v
	commit = c
}

type app struct {
	server   string
	timeout  time.Duration
	logLevel string

	client *apiclient.Client
	log    zerolog.Logger
}

// NewRootCmd builds the invoicectl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "invoicectl",
		Short: "Drive the invoice intake API from the terminal",
		Long: `invoicectl talks to a running invoice intake server.

Typical flow:
  invoicectl new
  invoicectl upload INV-... invoice.pdf
  invoicectl get INV-...
  invoicectl update INV-... --file reviewed.json
  invoicectl finalize INV-...`,
		SilenceUsage: true,
		Version:      version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.log = logger.NewWithOptions(logger.Options{Level: a.logLevel, Out: cmd.ErrOrStderr()})
			a.client = apiclient.New(a.server, a.timeout)
			return nil
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("invoicectl %s (%s)\n", version, commit))

	root.PersistentFlags().StringVar(&a.server, "server", envOr("INVOICE_API_URL", "http://localhost:3000"), "API base URL (or set INVOICE_API_URL)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 2*time.Minute, "request timeout")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newSessionCmd(a),
		uploadCmd(a),
		getCmd(a),
		updateCmd(a),
		finalizeCmd(a),
		bookCmd(a),
		ratesCmd(a),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInvoices loads a JSON array of invoices from path, or stdin for "-".
func readInvoices(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read invoices: %w", err)
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err != nil {
		return nil, fmt.Errorf("invoices file must hold a JSON array: %w", err)
	}
	return json.RawMessage(raw), nil
}
