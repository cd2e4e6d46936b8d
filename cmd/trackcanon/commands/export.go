package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trackcanon/internal/export"
	"trackcanon/internal/services"
)

// NewExportCommand creates the Parquet export command
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export staged records to a Parquet file.",
		Args:  cobra.NoArgs,
		RunE:  runExportCommand,
	}
	cmd.Flags().String("out", "", "Output Parquet file (default <output>/staging.parquet)")
	cmd.Flags().StringSlice("tier", nil, "Only export these tiers: accept, queue, skip")
	cmd.Flags().String("store", "", "Staging store backend: json or sqlite (overrides config)")
	return cmd
}

func runExportCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tiers, _ := cmd.Flags().GetStringSlice("tier")
	for _, t := range tiers {
		switch t {
		case "accept", "queue", "skip":
		default:
			return fmt.Errorf("unknown tier %q", t)
		}
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.OutputPath("staging.parquet")
	}

	st, err := services.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ReadAll(cmd.Context())
	if err != nil {
		return err
	}
	n, err := export.WriteFile(out, records, tiers)
	if err != nil {
		return err
	}
	abs, _ := filepath.Abs(out)
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d of %d records to %s\n", n, len(records), abs)
	return nil
}
