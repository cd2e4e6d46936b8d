package interfaces

import (
	"context"

	"trackcanon/internal/config"
	"trackcanon/internal/core/tags"
	"trackcanon/internal/shared"
)

// SpotifySearcher defines the interface for Spotify track search
type SpotifySearcher interface {
	// Search returns the best matching track for an artist and title.
	// On provider failure the evidence is not-found and the error is non-nil.
	Search(ctx context.Context, artist, title string) (*shared.SpotifyEvidence, error)
}

// MusicBrainzResolver defines the interface for MusicBrainz recording lookups
type MusicBrainzResolver interface {
	// LookupByISRC resolves an ISRC to a recording
	LookupByISRC(ctx context.Context, isrc string) (*shared.MusicBrainzEvidence, error)

	// SearchRecording is the free-text fallback search
	SearchRecording(ctx context.Context, artist, title string) (*shared.MusicBrainzEvidence, error)
}

// FingerprintLookup defines the interface for fingerprint to recording resolution
type FingerprintLookup interface {
	// Lookup resolves an acoustic fingerprint to recording MBIDs
	Lookup(ctx context.Context, fingerprint string, duration float64) (*shared.AcoustIDEvidence, error)
}

// FingerprintComputer defines the interface for acoustic fingerprint computation
type FingerprintComputer interface {
	// Compute fingerprints an audio file. Failures are reported in the result.
	Compute(ctx context.Context, filePath string) shared.Fingerprint

	// Available reports whether the fingerprint tool can be executed
	Available(ctx context.Context) (string, error)
}

// TagReader defines the interface for reading embedded identity tags
type TagReader interface {
	// Read extracts identity tags from an audio file
	Read(path string) (tags.Tags, error)
}

// TagWriter defines the interface for writing identifiers back into audio files
type TagWriter interface {
	// WriteIdentifiers stores a record's identifiers in the file
	WriteIdentifiers(path string, rec *shared.CanonicalRecord) error
}

// ConfigService defines the interface for configuration management
type ConfigService interface {
	// Load reads configuration from file, falling back to defaults
	Load(configFile string) (*config.Config, error)

	// SaveConfig saves configuration to file
	SaveConfig(configFile string, config *config.Config) error

	// ValidateConfig validates configuration settings
	ValidateConfig(config *config.Config) error

	// GetDefaultConfig returns a default configuration
	GetDefaultConfig() *config.Config
}

// LoggerService defines the interface for console logging operations
type LoggerService interface {
	// Info logs an informational message
	Info(message string, args ...interface{})

	// Warning logs a warning message
	Warning(message string, args ...interface{})

	// Error logs an error message
	Error(message string, args ...interface{})

	// Debug logs a debug message
	Debug(message string, args ...interface{})

	// Success logs a success message
	Success(message string, args ...interface{})

	// SetDebugMode enables or disables debug logging
	SetDebugMode(enabled bool)
}

// StageSummaryService defines the interface for collecting per-stage misses
type StageSummaryService interface {
	// Add records the non-matching stage events of a row
	Add(row shared.RawRow, events []shared.StageEvent)

	// HasEntries returns true if anything was recorded
	HasEntries() bool

	// Count returns the number of recorded events
	Count() int
}
