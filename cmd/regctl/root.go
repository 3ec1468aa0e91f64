package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regctl",
		Short: "Inspect registration form rules and stored registrations",
		Long: `regctl runs the registration form rules outside the server.

Examples:
  regctl score 'Secr3t!pass'          # password strength
  regctl validate snapshot.yaml        # run every field check on a saved form
  regctl validate form.json --now 2024-06-15
  regctl list --config regform.yaml    # print stored registrations
`,
		SilenceUsage: true,
	}

	cmd.AddCommand(scoreCmd())
	cmd.AddCommand(validateCmd())
	cmd.AddCommand(listCmd())
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
