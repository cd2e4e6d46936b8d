package commands

import (
	"github.com/spf13/cobra"

	"trackcanon/internal/services"
)

// NewReenrichCommand creates the MBID backfill command
func NewReenrichCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reenrich",
		Short: "Backfill MusicBrainz ids on staged records that have only an ISRC.",
		Long: `Sweeps the staging store for records with an ISRC but no MBID and retries the
MusicBrainz ISRC lookup. Scores and tiers are not recomputed.`,
		Args: cobra.NoArgs,
		RunE: runReenrichCommand,
	}
	cmd.Flags().String("store", "", "Staging store backend: json or sqlite (overrides config)")
	return cmd
}

func runReenrichCommand(cmd *cobra.Command, args []string) error {
	_, container, cleanup, err := initConfigAndServices(cmd, services.Options{})
	if err != nil {
		return err
	}
	defer cleanup()

	log := container.Logger
	log.Info("Re-enriching staged records without an MBID...")
	res, err := container.Enricher().Run(cmd.Context())
	log.Info("Scanned: %d, eligible: %d", res.Scanned, res.Eligible)
	if res.Enriched > 0 {
		log.Success("Enriched %d records", res.Enriched)
	}
	if res.NotFound > 0 {
		log.Info("No MusicBrainz recording for %d records", res.NotFound)
	}
	if res.Failed > 0 {
		log.Warning("%d lookups failed; see reEnrichError on the records", res.Failed)
	}
	return err
}
