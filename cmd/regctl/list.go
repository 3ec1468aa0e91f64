package main

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"regform/internal/platform/config"
	"regform/internal/registration/models"
	"regform/internal/registration/store"
)

func listCmd() *cobra.Command {
	var (
		cfgFile    string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored registrations from the configured store",
		Long: `List stored registrations.

The store is chosen the same way the server chooses it: REGFORM_* environment
variables, optionally layered over a YAML file given with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			backend, err := store.Open(cmd.Context(), cfg.Store, quiet)
			if err != nil {
				return err
			}
			defer backend.Close()

			records, err := backend.Records.Load(cmd.Context(), cfg.Store.Key)
			if err != nil {
				return fmt.Errorf("load registrations: %w", err)
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output records as JSON")
	return cmd
}

func printRecords(w io.Writer, records []models.RegistrationRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "no registrations")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGISTERED\tNAME\tEMAIL\tCITY")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.RegistrationDate.Format(models.RegistrationDateLayout),
			r.Fields[string(models.FieldFullName)],
			r.Fields[string(models.FieldEmail)],
			r.Fields[string(models.FieldCity)],
		)
	}
	return tw.Flush()
}
