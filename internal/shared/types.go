package shared

import (
	"encoding/json"
	"time"
)

// Identifier types carried by canonical records.
const (
	IdentifierISRC      = "isrc"
	IdentifierMBID      = "mbid"
	IdentifierSpotifyID = "spotify_id"
)

// MusicBrainz evidence sources.
const (
	SourceProvided = "provided"
	SourceFileTags = "file-tags"
	SourceISRC     = "isrc"
	SourceFuzzy    = "fuzzy"
	SourceAcoustID = "acoustid"
)

// RawRow is one line of ingestion input.
type RawRow struct {
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	ISRC      string `json:"isrc,omitempty"`
	MBID      string `json:"mbid,omitempty"`
	Provider  string `json:"provider,omitempty"`
	AudioFile string `json:"audioFile,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Label returns a short human readable form of the row.
func (r RawRow) Label() string {
	return r.Artist + " - " + r.Title
}

// SpotifyEvidence is the best Spotify search candidate for a row.
type SpotifyEvidence struct {
	Found      bool            `json:"found"`
	SpotifyID  string          `json:"spotify_id,omitempty"`
	ISRC       string          `json:"isrc,omitempty"`
	Title      string          `json:"title,omitempty"`
	Artists    []string        `json:"artists,omitempty"`
	DurationMs int             `json:"duration_ms,omitempty"`
	Score      int             `json:"score,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Release is a dated MusicBrainz release a recording appears on.
type Release struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Date  string `json:"date,omitempty"`
}

// MusicBrainzEvidence describes how (and whether) an MBID was acquired.
type MusicBrainzEvidence struct {
	Found      bool            `json:"found"`
	MBID       string          `json:"mbid,omitempty"`
	Source     string          `json:"source,omitempty"`
	Title      string          `json:"title,omitempty"`
	Artists    []string        `json:"artists,omitempty"`
	Duration   int             `json:"duration,omitempty"`
	Releases   []Release       `json:"releases,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// AcoustIDRecording is a recording attached to an AcoustID result.
type AcoustIDRecording struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Artists  []string `json:"artists,omitempty"`
	Duration float64  `json:"duration,omitempty"`
}

// AcoustIDEvidence is the result of a fingerprint lookup.
type AcoustIDEvidence struct {
	Found      bool                `json:"found"`
	MBIDs      []string            `json:"mbids,omitempty"`
	Recordings []AcoustIDRecording `json:"recordings,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Error      string              `json:"error,omitempty"`
	Raw        json.RawMessage     `json:"raw,omitempty"`
}

// Fingerprint is the output of the fingerprint subprocess. Error is set
// instead of returning one so callers always get a value.
type Fingerprint struct {
	Fingerprint string  `json:"fingerprint,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Identifier is an alternate key for a canonical record. (Type, Value) is unique per record.
type Identifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Key returns the dedup key of the identifier.
func (i Identifier) Key() string {
	return i.Type + ":" + i.Value
}

// Breakdown is the evidence vector behind a canonicality score.
type Breakdown struct {
	HasISRC            bool    `json:"hasIsrc"`
	MBIDMatch          bool    `json:"mbidMatch"`
	AcoustIDMatch      bool    `json:"acoustidMatch"`
	DurationSimilarity float64 `json:"durationSimilarity"`
	EarliestRelease    bool    `json:"earliestRelease"`
	ProviderAgreement  float64 `json:"providerAgreement"`
}

// Contributions are the weighted terms of a canonicality score.
type Contributions struct {
	HasISRC            float64 `json:"hasIsrc"`
	MBIDMatch          float64 `json:"mbidMatch"`
	AcoustIDMatch      float64 `json:"acoustidMatch"`
	DurationSimilarity float64 `json:"durationSimilarity"`
	EarliestRelease    float64 `json:"earliestRelease"`
	ProviderAgreement  float64 `json:"providerAgreement"`
}

// Sum adds up the contributions.
func (c Contributions) Sum() float64 {
	return c.HasISRC + c.MBIDMatch + c.AcoustIDMatch + c.DurationSimilarity + c.EarliestRelease + c.ProviderAgreement
}

// Canonicality is the weighted confidence that a record is correctly resolved.
// Score is Parts.Sum() clamped to [0,1].
type Canonicality struct {
	Score     float64       `json:"score"`
	Breakdown Breakdown     `json:"breakdown"`
	Parts     Contributions `json:"parts"`
}

// RawPayloads keeps the provider responses a record was built from.
type RawPayloads struct {
	Spotify     json.RawMessage `json:"spotify,omitempty"`
	MusicBrainz json.RawMessage `json:"musicbrainz,omitempty"`
}

// CanonicalRecord is a resolved recording identity held in the staging store.
type CanonicalRecord struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Artists       []string     `json:"artists"`
	ISRC          string       `json:"isrc,omitempty"`
	SpotifyID     string       `json:"spotify_id,omitempty"`
	MBID          string       `json:"mbid,omitempty"`
	DurationMs    int          `json:"duration_ms,omitempty"`
	Releases      []Release    `json:"releases"`
	ReleaseDate   string       `json:"releaseDate,omitempty"`
	IsRemix       bool         `json:"isRemix,omitempty"`
	Identifiers   []Identifier `json:"identifiers"`
	Canonicality  Canonicality `json:"canonicality"`
	Accept        bool         `json:"accept"`
	Queue         bool         `json:"queue"`
	Skip          bool         `json:"skip"`
	Raw           RawPayloads  `json:"raw"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	ReEnrichError string       `json:"reEnrichError,omitempty"`
}

// Tier returns the name of the tier flag that is set on the record.
func (r *CanonicalRecord) Tier() string {
	switch {
	case r.Accept:
		return "accept"
	case r.Queue:
		return "queue"
	default:
		return "skip"
	}
}

// Clone returns a deep copy of the record.
func (r *CanonicalRecord) Clone() *CanonicalRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Artists = append([]string(nil), r.Artists...)
	c.Releases = append([]Release(nil), r.Releases...)
	c.Identifiers = append([]Identifier(nil), r.Identifiers...)
	c.Raw.Spotify = append(json.RawMessage(nil), r.Raw.Spotify...)
	c.Raw.MusicBrainz = append(json.RawMessage(nil), r.Raw.MusicBrainz...)
	return &c
}

// Pipeline stages recorded in row notes.
const (
	StageTags        = "tags"
	StageProvided    = "mbid-provided"
	StageSpotify     = "spotify"
	StageISRC        = "musicbrainz-isrc"
	StageFuzzy       = "musicbrainz-fuzzy"
	StageFingerprint = "fingerprint"
	StageAcoustID    = "acoustid"
	StageValidate    = "validate"
	StageUpsert      = "upsert"
	StageWriteTags   = "write-tags"
)

// Stage outcomes.
const (
	OutcomeMatch   = "match"
	OutcomeNoMatch = "no-match"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// StageEvent is a tagged diagnostic note emitted while resolving a row.
type StageEvent struct {
	Stage   string `json:"stage"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

func (e StageEvent) String() string {
	if e.Detail == "" {
		return e.Stage + ": " + e.Outcome
	}
	return e.Stage + ": " + e.Outcome + " (" + e.Detail + ")"
}

// Resolution is the evidence gathered for a single row by the cascade.
type Resolution struct {
	Row         RawRow               `json:"row"`
	Spotify     *SpotifyEvidence     `json:"spotify,omitempty"`
	MusicBrainz *MusicBrainzEvidence `json:"musicbrainz,omitempty"`
	AcoustID    *AcoustIDEvidence    `json:"acoustid,omitempty"`
	Notes       []StageEvent         `json:"notes"`
}

// Note appends a stage event.
func (r *Resolution) Note(stage, outcome, detail string) {
	r.Notes = append(r.Notes, StageEvent{Stage: stage, Outcome: outcome, Detail: detail})
}

// HasMBID reports whether an MBID has been acquired.
func (r *Resolution) HasMBID() bool {
	return r.MusicBrainz != nil && r.MusicBrainz.MBID != ""
}

// RowResult is one entry of staging-results.json.
type RowResult struct {
	RawRow
	Spotify     *SpotifyEvidence     `json:"spotify,omitempty"`
	MusicBrainz *MusicBrainzEvidence `json:"musicbrainz,omitempty"`
	AcoustID    *AcoustIDEvidence    `json:"acoustid,omitempty"`
	Notes       []StageEvent         `json:"notes"`
	Canonical   *CanonicalRecord     `json:"canonical"`
}

// StagingResults is the document written for a pipeline run.
type StagingResults struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Warning     string      `json:"warning,omitempty"`
	Results     []RowResult `json:"results"`
}
