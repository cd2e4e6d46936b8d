package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackcanon/internal/metrics"
	"trackcanon/internal/services"
	"trackcanon/internal/shared"
)

// NewAlertsCommand creates the alert evaluation command
func NewAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate alert thresholds against the recorded metrics.",
		Args:  cobra.NoArgs,
		RunE:  runAlertsCommand,
	}
	cmd.Flags().Float64("skip-rate", 0, "Skip rate threshold (overrides config)")
	return cmd
}

func runAlertsCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	thresholds := metrics.Thresholds{SkipRate: cfg.Alerts.SkipRate}
	if cmd.Flags().Changed("skip-rate") {
		thresholds.SkipRate, _ = cmd.Flags().GetFloat64("skip-rate")
	}

	recorder, err := metrics.OpenRecorder(cfg.OutputPath(services.MetricsFile))
	if err != nil {
		return err
	}
	alertsPath := cfg.OutputPath(services.AlertsFile)
	ev, err := recorder.EvaluateAlerts(thresholds, alertsPath)
	if err != nil {
		return fmt.Errorf("failed to write alerts: %w", err)
	}

	out := cmd.OutOrStdout()
	m := ev.Metrics
	fmt.Fprintf(out, "Skip rate: %.2f%% (%d/%d), threshold %.2f%%\n",
		m.SkipRate()*100, m.Skipped, m.Processed, thresholds.SkipRate*100)
	if len(ev.Alerts) == 0 {
		shared.ColorSuccess.Fprintln(out, "No alerts")
	} else {
		shared.ColorWarning.Fprintf(out, "%d alert(s) raised\n", len(ev.Alerts))
		fmt.Fprintln(out, metrics.RenderAlerts(ev.Alerts))
	}
	fmt.Fprintf(out, "Alerts written to: %s\n", alertsPath)
	return nil
}
