package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile      = "trackcanon.yaml"
	DefaultUserAgent       = "trackcanon/1.0 ( ops@trackcanon.dev )"
	DefaultProviderTimeout = 15 * time.Second
)

// Store backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// SpotifyConfig holds Spotify Web API settings
type SpotifyConfig struct {
	ClientID     string  `yaml:"client_id"`
	ClientSecret string  `yaml:"client_secret"`
	BaseURL      string  `yaml:"base_url"`
	TokenURL     string  `yaml:"token_url"`
	SearchLimit  int     `yaml:"search_limit"`
	RateLimit    float64 `yaml:"rate_limit"`
}

// Configured reports whether client credentials are present.
func (s SpotifyConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// MusicBrainzConfig holds MusicBrainz WS/2 settings
type MusicBrainzConfig struct {
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	RateLimit    time.Duration `yaml:"rate_limit"`
	Burst        int           `yaml:"burst"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// AcoustIDConfig holds AcoustID settings
type AcoustIDConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	RateLimit time.Duration `yaml:"rate_limit"`
}

// FingerprintConfig holds the fpcalc subprocess settings
type FingerprintConfig struct {
	FpcalcPath string        `yaml:"fpcalc_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StoreConfig selects the staging store backend
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// WeightsConfig holds the canonicality evidence weights
type WeightsConfig struct {
	HasISRC            float64 `yaml:"has_isrc"`
	MBIDMatch          float64 `yaml:"mbid_match"`
	AcoustIDMatch      float64 `yaml:"acoustid_match"`
	DurationSimilarity float64 `yaml:"duration_similarity"`
	EarliestRelease    float64 `yaml:"earliest_release"`
	ProviderAgreement  float64 `yaml:"provider_agreement"`
}

// ScoringConfig configures the canonicality scorer
type ScoringConfig struct {
	Weights WeightsConfig `yaml:"weights"`
	// AcoustIDEvidence feeds real AcoustID matches into the acoustidMatch term.
	AcoustIDEvidence bool `yaml:"acoustid_evidence"`
}

// AlertsConfig holds alert thresholds
type AlertsConfig struct {
	SkipRate float64 `yaml:"skip_rate"`
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// Configuration structure
type Config struct {
	OutputDir       string            `yaml:"output_dir"`
	Store           StoreConfig       `yaml:"store"`
	Spotify         SpotifyConfig     `yaml:"spotify"`
	MusicBrainz     MusicBrainzConfig `yaml:"musicbrainz"`
	AcoustID        AcoustIDConfig    `yaml:"acoustid"`
	Fingerprint     FingerprintConfig `yaml:"fingerprint"`
	ProviderTimeout time.Duration     `yaml:"provider_timeout"`
	BatchSize       int               `yaml:"batch_size"`
	ProgressEvery   int               `yaml:"progress_every"`
	Scoring         ScoringConfig     `yaml:"scoring"`
	Alerts          AlertsConfig      `yaml:"alerts"`
	Logging         LoggingConfig     `yaml:"logging"`
	Debug           bool              `yaml:"debug"`
}

// DefaultConfig returns a configuration with every value populated.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "data",
		Store: StoreConfig{
			Backend: BackendJSON,
		},
		Spotify: SpotifyConfig{
			BaseURL:     "https://api.spotify.com/v1/",
			TokenURL:    "https://accounts.spotify.com/api/token",
			SearchLimit: 8,
			RateLimit:   5,
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:      "https://musicbrainz.org/ws/2/",
			UserAgent:    DefaultUserAgent,
			RateLimit:    time.Second,
			Burst:        1,
			MaxRetries:   3,
			InitialDelay: 2 * time.Second,
			MaxDelay:     30 * time.Second,
		},
		AcoustID: AcoustIDConfig{
			BaseURL:   "https://api.acoustid.org/v2/lookup",
			RateLimit: 334 * time.Millisecond,
		},
		Fingerprint: FingerprintConfig{
			FpcalcPath: "fpcalc",
			Timeout:    60 * time.Second,
		},
		ProviderTimeout: DefaultProviderTimeout,
		BatchSize:       1,
		ProgressEvery:   100,
		Scoring: ScoringConfig{
			Weights: WeightsConfig{
				HasISRC:            0.35,
				MBIDMatch:          0.2,
				AcoustIDMatch:      0.2,
				DurationSimilarity: 0.05,
				EarliestRelease:    0.1,
				ProviderAgreement:  0.1,
			},
		},
		Alerts: AlertsConfig{SkipRate: 0.25},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			FileMaxSizeMB:  100,
			FileMaxFiles:   3,
			FileMaxAgeDays: 30,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := LoadConfig(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(filePath string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays credentials and tool paths from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("ACOUSTID_API_KEY"); v != "" {
		c.AcoustID.APIKey = v
	}
	if v := os.Getenv("INGEST_USER_AGENT"); v != "" {
		c.MusicBrainz.UserAgent = v
	}
	if v := os.Getenv("FPCALC_PATH"); v != "" {
		c.Fingerprint.FpcalcPath = v
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.ProgressEvery < 1 {
		return fmt.Errorf("progress interval must be at least 1, got %d", c.ProgressEvery)
	}
	if c.Alerts.SkipRate < 0 || c.Alerts.SkipRate > 1 {
		return fmt.Errorf("skip rate threshold must be within [0,1], got %v", c.Alerts.SkipRate)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	w := c.Scoring.Weights
	for name, v := range map[string]float64{
		"has_isrc":            w.HasISRC,
		"mbid_match":          w.MBIDMatch,
		"acoustid_match":      w.AcoustIDMatch,
		"duration_similarity": w.DurationSimilarity,
		"earliest_release":    w.EarliestRelease,
		"provider_agreement":  w.ProviderAgreement,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	if c.MusicBrainz.UserAgent == "" {
		return fmt.Errorf("musicbrainz user agent is required")
	}
	return nil
}

// StorePath returns the staging store location, defaulting inside the output dir.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	if c.Store.Backend == BackendSQLite {
		return filepath.Join(c.OutputDir, "staging-db.sqlite")
	}
	return filepath.Join(c.OutputDir, "staging-db.json")
}

// OutputPath joins name onto the output directory.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.OutputDir, name)
}
