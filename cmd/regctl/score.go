package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regform/internal/registration/strength"
)

func scoreCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "score <password>",
		Short: "Score a password and print its strength level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ind := strength.Evaluate(args[0])
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), ind)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "score=%d level=%s width=%s\n", ind.Score, ind.Level, ind.Width)
			return err
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output the indicator as JSON")
	return cmd
}
