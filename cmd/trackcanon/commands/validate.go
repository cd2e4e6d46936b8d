package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackcanon/internal/ingest"
	"trackcanon/internal/shared"
)

// NewValidateCommand creates the source validation command
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <source.csv>",
		Short: "Check that every row of a CSV source has an Artist and a Title.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := ingest.ReadCSV(args[0])
			if err != nil {
				return err
			}
			v := ingest.ValidateRows(rows)

			out := cmd.OutOrStdout()
			for _, e := range v.Errors {
				shared.ColorError.Fprintf(out, "Row %d: %s\n", e.Row, e.Reason)
			}
			if !v.Valid {
				return fmt.Errorf("%d of %d rows are invalid", len(v.Errors), len(rows))
			}
			shared.ColorSuccess.Fprintf(out, "All %d rows are valid\n", len(rows))
			return nil
		},
	}
}
