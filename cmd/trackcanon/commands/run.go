package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"trackcanon/internal/ingest"
	"trackcanon/internal/metrics"
	"trackcanon/internal/services"
	"trackcanon/internal/shared"
)

// NewRunCommand creates the ingestion command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve every row of a CSV source and stage the results.",
		Long: `Reads a CSV with the columns Artist, Title and optionally ISRC, MBID, Provider
and audioFile, resolves each row through Spotify, MusicBrainz and AcoustID,
scores it and merges it into the staging store. Nothing is written to production.`,
		RunE: runRunCommand,
	}

	cmd.Flags().String("source", "sample-source.csv", "CSV source file")
	cmd.Flags().Int("limit", 0, "Process only the first N rows")
	cmd.Flags().Int("batch-size", 0, "Rows resolved concurrently per batch (overrides config)")
	cmd.Flags().String("store", "", "Staging store backend: json or sqlite (overrides config)")
	cmd.Flags().Bool("resume-metrics", false, "Continue the counters in metrics.json instead of starting from zero")
	cmd.Flags().Bool("write-tags", false, "Write identifiers of accepted records into their FLAC files")
	cmd.Flags().Bool("no-progress", false, "Print progress lines instead of a progress bar")
	cmd.Flags().BoolP("verbose", "v", false, "Print the tier and score of every row (implies --no-progress)")

	return cmd
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	resumeMetrics, _ := cmd.Flags().GetBool("resume-metrics")
	cfg, container, cleanup, err := initConfigAndServices(cmd, services.Options{ResumeMetrics: resumeMetrics})
	if err != nil {
		return err
	}
	defer cleanup()

	// metrics.json describes this batch from the first row on.
	if err := container.Metrics.Save(); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}

	source, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")
	writeTags, _ := cmd.Flags().GetBool("write-tags")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if bs, _ := cmd.Flags().GetInt("batch-size"); bs > 0 {
		cfg.BatchSize = bs
	}

	log := container.Logger
	log.Info("=== Ingestion Pipeline Runner ===")
	log.Info("Source: %s", source)
	log.Debug("Staging store: %s (%s)", cfg.StorePath(), cfg.Store.Backend)
	if !cfg.Spotify.Configured() {
		log.Warning("Spotify credentials not set; Spotify search is skipped")
	}
	if !container.AcoustID.Enabled() {
		log.Debug("ACOUSTID_API_KEY not set; fingerprint lookups are skipped")
	}
	if version, err := container.Fingerprint.Available(cmd.Context()); err != nil {
		log.Warning("Fingerprinting unavailable: %v", err)
	} else {
		log.Debug("Using %s", version)
	}

	resultsPath := cfg.OutputPath(services.ResultsFile)
	runner := container.Runner(container.Pipeline(writeTags), cmd.OutOrStdout())
	report, runErr := runner.Run(cmd.Context(), ingest.Options{
		Source:        source,
		Limit:         limit,
		BatchSize:     cfg.BatchSize,
		ProgressEvery: cfg.ProgressEvery,
		ResultsPath:   resultsPath,
		ShowProgress:  !noProgress && !verbose && shared.IsTTY(),
		Verbose:       verbose,
	})
	if report == nil {
		return runErr
	}
	if report.Results.Warning == ingest.WarningNoRows {
		log.Warning("Wrote %s with warning %q", resultsPath, ingest.WarningNoRows)
		return runErr
	}
	runner.PrintSummary(report, resultsPath)
	if runErr != nil {
		if cmd.Context().Err() != nil {
			log.Warning("Run interrupted; partial results saved to %s", resultsPath)
		}
		return runErr
	}

	ev, err := container.Metrics.EvaluateAlerts(metrics.Thresholds{SkipRate: cfg.Alerts.SkipRate}, cfg.OutputPath(services.AlertsFile))
	if err != nil {
		log.Warning("Failed to write alerts: %v", err)
	}
	if len(ev.Alerts) > 0 {
		shared.ColorWarning.Fprintln(cmd.OutOrStdout(), "\n=== Alerts ===")
		fmt.Fprintln(cmd.OutOrStdout(), metrics.RenderAlerts(ev.Alerts))
	}

	fmt.Fprintln(cmd.OutOrStdout())
	log.Info("Next steps:")
	log.Info("1. Review staging results: %s", resultsPath)
	log.Info("2. Review staging store: %s", cfg.StorePath())
	log.Info("3. Review skipped rows: %s", cfg.OutputPath(services.SkippedFile))
	return nil
}
