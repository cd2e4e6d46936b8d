package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackcanon/internal/metrics"
	"trackcanon/internal/services"
	"trackcanon/internal/shared"
)

// NewMetricsCommand creates the metrics display command
func NewMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show the recorded pipeline counters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			recorder, err := metrics.OpenRecorder(cfg.OutputPath(services.MetricsFile))
			if err != nil {
				return err
			}
			m := recorder.Snapshot()

			out := cmd.OutOrStdout()
			shared.ColorHeader.Fprintln(out, "=== Metrics ===")
			fmt.Fprintln(out, metrics.RenderCounters(m))
			if len(m.ByReason) > 0 {
				shared.ColorHeader.Fprintln(out, "\n=== Skip Reasons ===")
				fmt.Fprintln(out, metrics.RenderReasons(m))
			}
			fmt.Fprintf(out, "Source: %s\n", recorder.Path())
			return nil
		},
	}
}
