package commands

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"trackcanon/internal/config"
	"trackcanon/internal/logging"
	"trackcanon/internal/services"
	"trackcanon/internal/shared"
)

// NewRootCommand creates the trackcanon command tree.
func NewRootCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackcanon",
		Short: "Resolve and canonicalize music track identities across providers.",
		Long: fmt.Sprintf(`trackcanon (v%s)

Resolves artist/title rows to canonical recording identities using Spotify,
MusicBrainz and AcoustID, scores each result, and stages it for review.`, version),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			shared.InitializeColors()
		},
	}

	cmd.PersistentFlags().String("config", config.DefaultConfigFile, "Path to the YAML config file")
	cmd.PersistentFlags().String("output", "", "Output directory for staging files (overrides config)")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	cmd.PersistentFlags().String("log-level", "", "Structured log level: debug, info, warn, error")

	cmd.AddCommand(
		NewRunCommand(),
		NewReenrichCommand(),
		NewAlertsCommand(),
		NewMetricsCommand(),
		NewValidateCommand(),
		NewExportCommand(),
	)
	return cmd
}

// loadConfig reads the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.OutputDir = output
	}
	if cmd.Flags().Lookup("store") != nil {
		if backend, _ := cmd.Flags().GetString("store"); backend != "" {
			cfg.Store.Backend = backend
		}
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if !logging.ValidLevel(level) {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Manager, *slog.Logger) {
	return logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.FilePath,
		FileMaxSizeMB:  cfg.Logging.FileMaxSizeMB,
		FileMaxFiles:   cfg.Logging.FileMaxFiles,
		FileMaxAgeDays: cfg.Logging.FileMaxAgeDays,
	})
}

func newConsole(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) *logging.Console {
	console := logging.NewConsole(logger)
	console.SetOutput(cmd.OutOrStdout())
	console.SetDebugMode(cfg.Debug)
	return console
}

// initConfigAndServices loads configuration and builds the service container.
// The returned cleanup closes the store and the log file.
func initConfigAndServices(cmd *cobra.Command, opts services.Options) (*config.Config, *services.ServiceContainer, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	manager, logger := newLogger(cfg)
	opts.Logger = logger
	opts.Console = newConsole(cmd, cfg, logger)

	container, err := services.NewServiceContainer(cmd.Context(), cfg, opts)
	if err != nil {
		_ = manager.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := container.Close(); err != nil {
			logger.Warn("closing staging store", "error", err)
		}
		_ = manager.Close()
	}
	return cfg, container, cleanup, nil
}
