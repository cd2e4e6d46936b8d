package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"trackcanon/internal/api/acoustid"
	"trackcanon/internal/api/musicbrainz"
	"trackcanon/internal/api/spotify"
	"trackcanon/internal/config"
	"trackcanon/internal/core/canonical"
	"trackcanon/internal/core/reenrich"
	"trackcanon/internal/core/resolver"
	"trackcanon/internal/core/tags"
	"trackcanon/internal/fingerprint"
	"trackcanon/internal/ingest"
	"trackcanon/internal/interfaces"
	"trackcanon/internal/logging"
	"trackcanon/internal/metrics"
	"trackcanon/internal/shared"
	"trackcanon/internal/store"
)

// Output file names inside the configured output directory.
const (
	ResultsFile  = "staging-results.json"
	MetricsFile  = "metrics.json"
	AlertsFile   = "alerts.json"
	SkippedFile  = "skipped.json"
	MergeLogFile = "merge-log.json"
)

// Options adjusts container construction.
type Options struct {
	// ResumeMetrics continues the counters stored in metrics.json instead of
	// starting from zero.
	ResumeMetrics bool
	// Console receives human oriented output. Defaults to a console on stdout.
	Console *logging.Console
	Logger  *slog.Logger
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Cfg         *config.Config
	Config      interfaces.ConfigService
	Logger      interfaces.LoggerService
	Console     *logging.Console
	Structured  *slog.Logger
	Tokens      *spotify.TokenCache
	Spotify     *spotify.Client
	MusicBrainz *musicbrainz.Client
	AcoustID    *acoustid.Client
	Fingerprint *fingerprint.Calculator
	Tags        tags.FLAC
	Resolver    *resolver.Resolver
	Scorer      *canonical.Scorer
	Store       *store.Store
	MergeLog    *store.MergeLog
	Skipped     *store.SkippedQueue
	Metrics     *metrics.Recorder
	Summary     *shared.StageSummary
}

// NewServiceContainer creates a new service container with all services initialized.
// The staging store is opened and locked; Close releases it.
func NewServiceContainer(ctx context.Context, cfg *config.Config, opts Options) (*ServiceContainer, error) {
	logger := logging.OrDiscard(opts.Logger)
	console := opts.Console
	if console == nil {
		console = logging.NewConsole(logger)
	}
	console.SetDebugMode(cfg.Debug)

	if err := shared.CreateDirIfNotExists(cfg.OutputDir); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	c := &ServiceContainer{
		Cfg:        cfg,
		Config:     NewConfigService(),
		Logger:     console,
		Console:    console,
		Structured: logger,
		Summary:    shared.NewStageSummary(true),
	}

	c.Tokens = spotify.NewTokenCache(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.TokenURL)
	if cfg.Spotify.Configured() {
		c.Spotify = spotify.NewClient(spotify.Config{
			BaseURL:     cfg.Spotify.BaseURL,
			SearchLimit: cfg.Spotify.SearchLimit,
			RateLimit:   cfg.Spotify.RateLimit,
			Timeout:     cfg.ProviderTimeout,
		}, c.Tokens, logger)
	}

	c.MusicBrainz = musicbrainz.NewClientWithConfig(musicBrainzConfig(cfg), logger)

	c.AcoustID = acoustid.NewClient(acoustid.Config{
		APIKey:    cfg.AcoustID.APIKey,
		BaseURL:   cfg.AcoustID.BaseURL,
		RateLimit: cfg.AcoustID.RateLimit,
		Timeout:   cfg.ProviderTimeout,
	}, logger)

	c.Fingerprint = fingerprint.NewCalculator(cfg.Fingerprint.FpcalcPath, cfg.Fingerprint.Timeout, nil, logger)

	deps := resolver.Deps{
		MusicBrainz: c.MusicBrainz,
		AcoustID:    c.AcoustID,
		Fingerprint: c.Fingerprint,
		Tags:        c.Tags,
	}
	if c.Spotify != nil {
		deps.Spotify = c.Spotify
	}
	c.Resolver = resolver.New(deps, cfg.ProviderTimeout, logger)
	c.Scorer = canonical.NewScorer(Weights(cfg.Scoring.Weights), cfg.Scoring.AcoustIDEvidence)

	var err error
	if c.MergeLog, err = store.OpenMergeLog(cfg.OutputPath(MergeLogFile)); err != nil {
		return nil, fmt.Errorf("open merge log: %w", err)
	}
	if c.Skipped, err = store.OpenSkippedQueue(cfg.OutputPath(SkippedFile)); err != nil {
		return nil, fmt.Errorf("open skipped queue: %w", err)
	}
	if !opts.ResumeMetrics {
		c.Metrics = metrics.NewRecorder(cfg.OutputPath(MetricsFile))
	} else if c.Metrics, err = metrics.OpenRecorder(cfg.OutputPath(MetricsFile)); err != nil {
		return nil, err
	}

	c.Store, err = OpenStore(ctx, cfg, store.WithMergeLog(c.MergeLog), store.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// musicBrainzConfig overlays the configured MusicBrainz settings on the client defaults.
func musicBrainzConfig(cfg *config.Config) musicbrainz.Config {
	mb := musicbrainz.DefaultConfig()
	if cfg.MusicBrainz.BaseURL != "" {
		mb.BaseURL = cfg.MusicBrainz.BaseURL
	}
	if cfg.MusicBrainz.UserAgent != "" {
		mb.UserAgent = cfg.MusicBrainz.UserAgent
	}
	if cfg.ProviderTimeout > 0 {
		mb.Timeout = cfg.ProviderTimeout
	}
	if cfg.MusicBrainz.MaxRetries > 0 {
		mb.MaxRetries = cfg.MusicBrainz.MaxRetries
	}
	if cfg.MusicBrainz.InitialDelay > 0 {
		mb.InitialDelay = cfg.MusicBrainz.InitialDelay
	}
	if cfg.MusicBrainz.MaxDelay > 0 {
		mb.MaxDelay = cfg.MusicBrainz.MaxDelay
	}
	if cfg.MusicBrainz.RateLimit > 0 {
		mb.RateLimit = cfg.MusicBrainz.RateLimit
	}
	if cfg.MusicBrainz.Burst > 0 {
		mb.BurstLimit = cfg.MusicBrainz.Burst
	}
	return mb
}

// OpenStore opens the configured staging store backend.
func OpenStore(ctx context.Context, cfg *config.Config, opts ...store.Option) (*store.Store, error) {
	path := cfg.StorePath()
	var (
		backend store.KeyedRecordStore
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		backend, err = store.OpenSQLite(ctx, path)
	default:
		backend, err = store.OpenJSON(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open staging store %s: %w", path, err)
	}
	return store.New(backend, opts...), nil
}

// Weights converts configured weights to scorer weights.
func Weights(w config.WeightsConfig) canonical.Weights {
	return canonical.Weights{
		HasISRC:            w.HasISRC,
		MBIDMatch:          w.MBIDMatch,
		AcoustIDMatch:      w.AcoustIDMatch,
		DurationSimilarity: w.DurationSimilarity,
		EarliestRelease:    w.EarliestRelease,
		ProviderAgreement:  w.ProviderAgreement,
	}
}

// Pipeline assembles the per-row pipeline. With writeTags, accepted records
// are written back into their FLAC files.
func (c *ServiceContainer) Pipeline(writeTags bool) *ingest.Pipeline {
	p := &ingest.Pipeline{
		Resolver: c.Resolver,
		Scorer:   c.Scorer,
		Store:    c.Store,
		Metrics:  c.Metrics,
		Skipped:  c.Skipped,
		Summary:  c.Summary,
		Logger:   c.Structured,
	}
	if writeTags {
		p.TagWriter = c.Tags
	}
	return p
}

// Runner creates an ingest runner printing to out.
func (c *ServiceContainer) Runner(p *ingest.Pipeline, out io.Writer) *ingest.Runner {
	if out == nil {
		out = os.Stdout
	}
	return ingest.NewRunner(p, c.Console, out, c.Structured)
}

// Enricher creates the re-enrichment pass over the staging store.
func (c *ServiceContainer) Enricher() *reenrich.Enricher {
	return reenrich.New(c.MusicBrainz, c.Store, c.Cfg.ProviderTimeout, c.Structured)
}

// Close releases the staging store.
func (c *ServiceContainer) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// ConfigService implementation
type ConfigService struct{}

func NewConfigService() *ConfigService {
	return &ConfigService{}
}

func (cs *ConfigService) Load(configFile string) (*config.Config, error) {
	return config.Load(configFile)
}

func (cs *ConfigService) SaveConfig(configFile string, cfg *config.Config) error {
	return config.SaveConfig(configFile, cfg)
}

func (cs *ConfigService) ValidateConfig(cfg *config.Config) error {
	return cfg.Validate()
}

func (cs *ConfigService) GetDefaultConfig() *config.Config {
	return config.DefaultConfig()
}

// EnsureConfigExists writes a default config file if none exists.
func (cs *ConfigService) EnsureConfigExists(configFile string) error {
	if !shared.FileExists(configFile) {
		return cs.SaveConfig(configFile, cs.GetDefaultConfig())
	}
	return nil
}
