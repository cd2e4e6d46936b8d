// Package resolver runs the provider cascade that gathers identity evidence for a row.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"trackcanon/internal/api/acoustid"
	"trackcanon/internal/core/tags"
	"trackcanon/internal/interfaces"
	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
)

// Note details shared with reports and tests.
const (
	DetailNoSpotifyCreds    = "no-spotify-creds"
	DetailNoISRC            = "no-isrc"
	DetailRowISRC           = "row-isrc"
	DetailNoAudioFile       = "no-audio-file"
	DetailAudioFileMissing  = "audio-file-missing"
	DetailNoFingerprinter   = "fingerprint-unavailable"
	DetailUnsupportedFormat = "unsupported-format"
	DetailNoIdentifiers     = "no-identifiers"
)

// Deps are the providers used by the cascade. Spotify, Fingerprint, AcoustID
// and Tags may be nil, which disables their stages.
type Deps struct {
	Spotify     interfaces.SpotifySearcher
	MusicBrainz interfaces.MusicBrainzResolver
	AcoustID    interfaces.FingerprintLookup
	Fingerprint interfaces.FingerprintComputer
	Tags        interfaces.TagReader
}

// Resolver executes the ordered evidence cascade for single rows.
type Resolver struct {
	deps       Deps
	timeout    time.Duration
	logger     *slog.Logger
	fileExists func(string) bool
}

// New creates a Resolver. Every provider call is bounded by timeout when it is positive.
func New(deps Deps, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		deps:       deps,
		timeout:    timeout,
		logger:     logging.OrDiscard(logger).With("component", "resolver"),
		fileExists: shared.FileExists,
	}
}

// Resolve gathers evidence for row. MBID acquisition stops at the first
// stage that yields an MBID, but Spotify search always runs when configured.
// Provider failures become notes; Resolve itself never fails.
func (r *Resolver) Resolve(ctx context.Context, row shared.RawRow) *shared.Resolution {
	res := &shared.Resolution{Row: row, Notes: []shared.StageEvent{}}

	mbidSource := shared.SourceProvided
	if r.readTags(res) {
		mbidSource = shared.SourceFileTags
	}

	if res.Row.MBID != "" {
		res.MusicBrainz = &shared.MusicBrainzEvidence{Found: true, MBID: res.Row.MBID, Source: mbidSource}
		res.Note(shared.StageProvided, shared.OutcomeMatch, mbidSource)
	}

	r.searchSpotify(ctx, res)

	if !res.HasMBID() {
		r.lookupISRC(ctx, res)
	}
	if !res.HasMBID() {
		r.searchFuzzy(ctx, res)
	}
	if !res.HasMBID() {
		r.fingerprint(ctx, res)
	}

	r.logger.Debug("row resolved", "row", row.Label(), "mbid", res.HasMBID(), "notes", len(res.Notes))
	return res
}

// readTags fills missing ISRC and MBID from the row's audio file. It reports
// whether the MBID came from the file.
func (r *Resolver) readTags(res *shared.Resolution) bool {
	row := &res.Row
	if r.deps.Tags == nil || row.AudioFile == "" || (row.ISRC != "" && row.MBID != "") {
		return false
	}
	if !r.fileExists(row.AudioFile) {
		return false
	}

	t, err := r.deps.Tags.Read(row.AudioFile)
	if errors.Is(err, tags.ErrUnsupportedFormat) {
		res.Note(shared.StageTags, shared.OutcomeSkipped, DetailUnsupportedFormat)
		return false
	}
	if err != nil {
		res.Note(shared.StageTags, shared.OutcomeError, err.Error())
		return false
	}

	var filled []string
	if row.ISRC == "" && t.ISRC != "" {
		row.ISRC = strings.TrimSpace(t.ISRC)
		filled = append(filled, shared.IdentifierISRC)
	}
	fromFile := false
	if row.MBID == "" && t.MBID != "" {
		row.MBID = strings.TrimSpace(t.MBID)
		filled = append(filled, shared.IdentifierMBID)
		fromFile = true
	}
	if len(filled) == 0 {
		res.Note(shared.StageTags, shared.OutcomeNoMatch, DetailNoIdentifiers)
		return false
	}
	res.Note(shared.StageTags, shared.OutcomeMatch, strings.Join(filled, ","))
	return fromFile
}

func (r *Resolver) searchSpotify(ctx context.Context, res *shared.Resolution) {
	if r.deps.Spotify == nil {
		res.Note(shared.StageSpotify, shared.OutcomeSkipped, DetailNoSpotifyCreds)
		return
	}

	cctx, cancel := r.withTimeout(ctx)
	sp, err := r.deps.Spotify.Search(cctx, res.Row.Artist, res.Row.Title)
	cancel()

	res.Spotify = sp
	switch {
	case err != nil:
		r.logger.Warn("spotify search failed", "row", res.Row.Label(), "error", err)
		res.Note(shared.StageSpotify, shared.OutcomeError, reasonOf(sp != nil, spotifyReason(sp), err))
	case sp == nil || !sp.Found:
		res.Note(shared.StageSpotify, shared.OutcomeNoMatch, spotifyReason(sp))
	case sp.ISRC == "":
		res.Note(shared.StageSpotify, shared.OutcomeMatch, DetailNoISRC)
	default:
		res.Note(shared.StageSpotify, shared.OutcomeMatch, "")
	}
}

func (r *Resolver) lookupISRC(ctx context.Context, res *shared.Resolution) {
	isrc, detail := "", ""
	if res.Spotify != nil && res.Spotify.Found && res.Spotify.ISRC != "" {
		isrc = res.Spotify.ISRC
	} else if res.Row.ISRC != "" {
		isrc, detail = res.Row.ISRC, DetailRowISRC
	}
	if isrc == "" {
		res.Note(shared.StageISRC, shared.OutcomeSkipped, DetailNoISRC)
		return
	}

	cctx, cancel := r.withTimeout(ctx)
	mb, err := r.deps.MusicBrainz.LookupByISRC(cctx, isrc)
	cancel()

	if mb != nil {
		res.MusicBrainz = mb
	}
	switch {
	case err != nil:
		r.logger.Warn("isrc lookup failed", "isrc", isrc, "error", err)
		res.Note(shared.StageISRC, shared.OutcomeError, reasonOf(mb != nil, mbReason(mb), err))
	case mb == nil || !mb.Found:
		res.Note(shared.StageISRC, shared.OutcomeNoMatch, joinDetail(mbReason(mb), detail))
	default:
		res.Note(shared.StageISRC, shared.OutcomeMatch, detail)
	}
}

func (r *Resolver) searchFuzzy(ctx context.Context, res *shared.Resolution) {
	cctx, cancel := r.withTimeout(ctx)
	mb, err := r.deps.MusicBrainz.SearchRecording(cctx, res.Row.Artist, res.Row.Title)
	cancel()

	switch {
	case err != nil:
		r.logger.Warn("fuzzy search failed", "row", res.Row.Label(), "error", err)
		res.Note(shared.StageFuzzy, shared.OutcomeError, reasonOf(mb != nil, mbReason(mb), err))
	case mb == nil || !mb.Found || mb.MBID == "":
		res.Note(shared.StageFuzzy, shared.OutcomeNoMatch, mbReason(mb))
	default:
		res.MusicBrainz = mb
		res.Note(shared.StageFuzzy, shared.OutcomeMatch, "")
	}
}

func (r *Resolver) fingerprint(ctx context.Context, res *shared.Resolution) {
	path := res.Row.AudioFile
	switch {
	case path == "":
		res.Note(shared.StageFingerprint, shared.OutcomeSkipped, DetailNoAudioFile)
		return
	case !r.fileExists(path):
		res.Note(shared.StageFingerprint, shared.OutcomeSkipped, DetailAudioFileMissing)
		return
	case r.deps.Fingerprint == nil || r.deps.AcoustID == nil:
		res.Note(shared.StageFingerprint, shared.OutcomeSkipped, DetailNoFingerprinter)
		return
	}

	cctx, cancel := r.withTimeout(ctx)
	fp := r.deps.Fingerprint.Compute(cctx, path)
	cancel()
	if fp.Fingerprint == "" {
		detail := fp.Error
		if detail == "" {
			detail = "unknown"
		}
		res.Note(shared.StageFingerprint, shared.OutcomeError, detail)
		return
	}
	res.Note(shared.StageFingerprint, shared.OutcomeMatch, "")

	cctx, cancel = r.withTimeout(ctx)
	ac, err := r.deps.AcoustID.Lookup(cctx, fp.Fingerprint, fp.Duration)
	cancel()

	res.AcoustID = ac
	switch {
	case err != nil:
		r.logger.Warn("acoustid lookup failed", "file", path, "error", err)
		res.Note(shared.StageAcoustID, shared.OutcomeError, reasonOf(ac != nil, acoustIDReason(ac), err))
	case ac == nil || !ac.Found || len(ac.MBIDs) == 0:
		outcome := shared.OutcomeNoMatch
		if ac != nil && ac.Reason == acoustid.ReasonNoAPIKey {
			outcome = shared.OutcomeSkipped
		}
		res.Note(shared.StageAcoustID, outcome, acoustIDReason(ac))
	default:
		res.MusicBrainz = &shared.MusicBrainzEvidence{
			Found:      true,
			MBID:       ac.MBIDs[0],
			Source:     shared.SourceAcoustID,
			Confidence: ac.Confidence,
		}
		res.Note(shared.StageAcoustID, shared.OutcomeMatch, "")
	}
}

func (r *Resolver) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func reasonOf(hasEvidence bool, reason string, err error) string {
	if hasEvidence && reason != "" {
		return reason
	}
	return shared.ReasonFor(err)
}

func joinDetail(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "," + b
}

func spotifyReason(sp *shared.SpotifyEvidence) string {
	if sp == nil {
		return shared.ReasonNoMatch
	}
	return sp.Reason
}

func mbReason(mb *shared.MusicBrainzEvidence) string {
	if mb == nil {
		return shared.ReasonNoMatch
	}
	return mb.Reason
}

func acoustIDReason(ac *shared.AcoustIDEvidence) string {
	if ac == nil {
		return shared.ReasonNoMatch
	}
	return ac.Reason
}
