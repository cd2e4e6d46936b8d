package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Alerts.SkipRate != 0.25 {
		t.Errorf("expected skip rate 0.25, got %v", cfg.Alerts.SkipRate)
	}
	if cfg.Spotify.SearchLimit != 8 {
		t.Errorf("expected spotify search limit 8, got %d", cfg.Spotify.SearchLimit)
	}
	w := cfg.Scoring.Weights
	sum := w.HasISRC + w.MBIDMatch + w.AcoustIDMatch + w.DurationSimilarity + w.EarliestRelease + w.ProviderAgreement
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("expected default weights to sum to 1, got %v", sum)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Backend != BackendJSON {
		t.Errorf("expected json backend, got %q", cfg.Store.Backend)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackcanon.yaml")
	content := `
output_dir: out
batch_size: 4
provider_timeout: 3s
store:
  backend: sqlite
alerts:
  skip_rate: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OutputDir != "out" || cfg.BatchSize != 4 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.ProviderTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.ProviderTimeout)
	}
	if cfg.StorePath() != filepath.Join("out", "staging-db.sqlite") {
		t.Errorf("unexpected store path %q", cfg.StorePath())
	}
	// untouched sections keep defaults
	if cfg.MusicBrainz.UserAgent == "" {
		t.Error("expected default user agent to survive partial YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("ACOUSTID_API_KEY", "key")
	t.Setenv("INGEST_USER_AGENT", "tester/1.0")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if !cfg.Spotify.Configured() {
		t.Error("expected spotify credentials from env")
	}
	if cfg.AcoustID.APIKey != "key" {
		t.Errorf("expected acoustid key from env, got %q", cfg.AcoustID.APIKey)
	}
	if cfg.MusicBrainz.UserAgent != "tester/1.0" {
		t.Errorf("expected user agent from env, got %q", cfg.MusicBrainz.UserAgent)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"skip rate above one", func(c *Config) { c.Alerts.SkipRate = 1.5 }},
		{"negative weight", func(c *Config) { c.Scoring.Weights.HasISRC = -0.1 }},
		{"no user agent", func(c *Config) { c.MusicBrainz.UserAgent = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.BatchSize = 7
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded := DefaultConfig()
	if err := LoadConfig(path, loaded); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.BatchSize != 7 {
		t.Errorf("expected batch size 7, got %d", loaded.BatchSize)
	}
}
