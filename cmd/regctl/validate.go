package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"regform/internal/registration/models"
	"regform/internal/registration/upload"
	"regform/internal/registration/validation"
)

const dateLayout = "2006-01-02"

// snapshotFile is the on-disk shape of a filled-in form.
type snapshotFile struct {
	Values map[string]string      `json:"values" yaml:"values"`
	File   *models.FileDescriptor `json:"file,omitempty" yaml:"file,omitempty"`
}

func validateCmd() *cobra.Command {
	var (
		now        string
		maxMB      float64
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "validate <snapshot.yaml|snapshot.json>",
		Short: "Run every submit-time check against a saved form",
		Long: `Run every submit-time check against a saved form.

The file holds the field values and an optional photo descriptor:

  values:
    fullName: Budi Santoso
    email: budi@example.com
  file:
    name: me.png
    size_bytes: 120000

Exits non-zero when any field is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			today := time.Now()
			if now != "" {
				t, err := time.Parse(dateLayout, now)
				if err != nil {
					return fmt.Errorf("invalid --now %q: %w", now, err)
				}
				today = t
			}

			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			outcomes := validation.DefaultRegistry().Validate(snap, today)
			outcomes = append(outcomes, upload.New(upload.WithMaxMB(maxMB)).Check(snap.File()).Outcome)
			result := models.NewSubmissionResult(outcomes)

			if outputJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				printOutcomes(cmd, result)
			}

			if !result.Accepted {
				return fmt.Errorf("%d field(s) invalid", len(result.Invalid()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "Evaluate age checks as of this date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&maxMB, "max-mb", upload.DefaultMaxMB, "Photo size limit in MB")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output the result as JSON")
	return cmd
}

func readSnapshot(path string) (models.FormSnapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.FormSnapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var doc snapshotFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(raw, &doc)
	default:
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return models.FormSnapshot{}, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return models.SnapshotFromStrings(doc.Values, doc.File), nil
}

func printOutcomes(cmd *cobra.Command, result models.SubmissionResult) {
	out := cmd.OutOrStdout()
	for _, o := range result.Outcomes {
		if o.Valid {
			fmt.Fprintf(out, "  ok    %s\n", o.FieldID)
			continue
		}
		msg := o.Message
		if msg == "" {
			if spec, ok := models.Lookup(o.FieldID); ok {
				msg = spec.DefaultMessage
			}
		}
		fmt.Fprintf(out, "  FAIL  %s: %s\n", o.FieldID, msg)
	}
	if result.Accepted {
		fmt.Fprintln(out, "accepted")
	} else {
		fmt.Fprintln(out, "rejected")
	}
}
