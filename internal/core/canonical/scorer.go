package canonical

import (
	"math"
	"strings"

	"trackcanon/internal/shared"
)

// Tier thresholds. accept ⇔ score ≥ AcceptThreshold, queue ⇔
// QueueThreshold ≤ score < AcceptThreshold, skip otherwise.
const (
	AcceptThreshold = 0.7
	QueueThreshold  = 0.4
)

// Skip reasons recorded in metrics.
const (
	SkipLowConfidence = "low-confidence"
	SkipNoMatch       = "no-match"
)

// Weights are the per-term weights of the canonicality score.
type Weights struct {
	HasISRC            float64
	MBIDMatch          float64
	AcoustIDMatch      float64
	DurationSimilarity float64
	EarliestRelease    float64
	ProviderAgreement  float64
}

// DefaultWeights returns the standard evidence weights.
func DefaultWeights() Weights {
	return Weights{
		HasISRC:            0.35,
		MBIDMatch:          0.2,
		AcoustIDMatch:      0.2,
		DurationSimilarity: 0.05,
		EarliestRelease:    0.1,
		ProviderAgreement:  0.1,
	}
}

// Scorer turns resolved evidence into scored canonical records.
type Scorer struct {
	weights Weights
	// acoustID feeds real AcoustID matches into the acoustidMatch term.
	// When false the term is always false.
	acoustID bool
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights, useAcoustID bool) *Scorer {
	return &Scorer{weights: weights, acoustID: useAcoustID}
}

// ComputeCanonicality returns the weighted, clamped score for an evidence vector.
func ComputeCanonicality(b shared.Breakdown, w Weights) shared.Canonicality {
	b.DurationSimilarity = clamp(b.DurationSimilarity)
	b.ProviderAgreement = clamp(b.ProviderAgreement)

	parts := shared.Contributions{
		HasISRC:            w.HasISRC * boolf(b.HasISRC),
		MBIDMatch:          w.MBIDMatch * boolf(b.MBIDMatch),
		AcoustIDMatch:      w.AcoustIDMatch * boolf(b.AcoustIDMatch),
		DurationSimilarity: w.DurationSimilarity * b.DurationSimilarity,
		EarliestRelease:    w.EarliestRelease * boolf(b.EarliestRelease),
		ProviderAgreement:  w.ProviderAgreement * b.ProviderAgreement,
	}

	// Rounded to 1e-9 so tier comparisons are exact.
	score := math.Round(clamp(parts.Sum())*1e9) / 1e9
	return shared.Canonicality{Score: score, Breakdown: b, Parts: parts}
}

// Tier returns the accept/queue/skip flags for a score. Exactly one is true.
func Tier(score float64) (accept, queue, skip bool) {
	switch {
	case score >= AcceptThreshold:
		return true, false, false
	case score >= QueueThreshold:
		return false, true, false
	default:
		return false, false, true
	}
}

// DurationSimilarity compares two durations in milliseconds: 1 for an exact
// match, 0.8 within three seconds, otherwise 1 - |Δ|/max. Missing values score 0.
func DurationSimilarity(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return 1
	case diff <= 3000:
		return 0.8
	}
	return math.Max(0, 1-float64(diff)/float64(max(a, b)))
}

// ProviderAgreement is the fraction of title-equality and artist-overlap
// checks that hold between Spotify and MusicBrainz. A check only counts
// when Spotify supplies the field.
func ProviderAgreement(sp *shared.SpotifyEvidence, mb *shared.MusicBrainzEvidence) float64 {
	if sp == nil {
		return 0
	}
	var mbTitle string
	var mbArtists []string
	if mb != nil {
		mbTitle = mb.Title
		mbArtists = mb.Artists
	}

	total, agree := 0, 0
	if sp.Title != "" {
		total++
		if strings.EqualFold(sp.Title, mbTitle) {
			agree++
		}
	}
	if len(sp.Artists) > 0 {
		total++
		if overlaps(sp.Artists, mbArtists) {
			agree++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(agree) / float64(total)
}

// Normalize builds the canonical record for a resolution and scores it.
func (s *Scorer) Normalize(res *shared.Resolution) *shared.CanonicalRecord {
	sp := foundSpotify(res.Spotify)
	mb := res.MusicBrainz

	rec := &shared.CanonicalRecord{
		Releases: []shared.Release{},
	}

	switch {
	case sp != nil && sp.Title != "":
		rec.Title = sp.Title
	case mb != nil && mb.Title != "":
		rec.Title = mb.Title
	default:
		rec.Title = res.Row.Title
	}
	switch {
	case sp != nil && len(sp.Artists) > 0:
		rec.Artists = append([]string(nil), sp.Artists...)
	case mb != nil && len(mb.Artists) > 0:
		rec.Artists = append([]string(nil), mb.Artists...)
	case res.Row.Artist != "":
		rec.Artists = []string{res.Row.Artist}
	default:
		rec.Artists = []string{}
	}

	if sp != nil {
		rec.ISRC = sp.ISRC
		rec.SpotifyID = sp.SpotifyID
		rec.DurationMs = sp.DurationMs
		rec.Raw.Spotify = sp.Raw
	}
	// A row supplied ISRC counts once MusicBrainz confirmed it.
	if rec.ISRC == "" && mb != nil && mb.Found && mb.Source == shared.SourceISRC {
		rec.ISRC = res.Row.ISRC
	}
	var mbDuration int
	if mb != nil {
		rec.MBID = mb.MBID
		mbDuration = mb.Duration
		if rec.DurationMs == 0 {
			rec.DurationMs = mb.Duration
		}
		if len(mb.Releases) > 0 {
			rec.Releases = append([]shared.Release(nil), mb.Releases...)
		}
		rec.Raw.MusicBrainz = mb.Raw
	}

	rec.ReleaseDate = ChooseReleaseDate(rec.Releases)
	rec.IsRemix = IsRemix(rec.Title)
	rec.Identifiers = IdentifiersFor(rec)

	evidence := shared.Breakdown{
		HasISRC:            rec.ISRC != "",
		MBIDMatch:          rec.MBID != "",
		AcoustIDMatch:      s.acoustID && acoustIDConfirms(res.AcoustID, rec.MBID),
		DurationSimilarity: DurationSimilarity(rec.DurationMs, mbDuration),
		EarliestRelease:    hasDatedRelease(rec.Releases),
		ProviderAgreement:  ProviderAgreement(sp, mb),
	}
	rec.Canonicality = ComputeCanonicality(evidence, s.weights)
	rec.Accept, rec.Queue, rec.Skip = Tier(rec.Canonicality.Score)
	return rec
}

// SkipReason explains why a skipped record was skipped.
func SkipReason(rec *shared.CanonicalRecord) string {
	if rec.ISRC == "" && rec.MBID == "" && rec.SpotifyID == "" {
		return SkipNoMatch
	}
	return SkipLowConfidence
}

// IdentifiersFor lists the record's alternate keys in lookup priority order.
func IdentifiersFor(rec *shared.CanonicalRecord) []shared.Identifier {
	ids := make([]shared.Identifier, 0, 3)
	if rec.ISRC != "" {
		ids = append(ids, shared.Identifier{Type: shared.IdentifierISRC, Value: rec.ISRC})
	}
	if rec.MBID != "" {
		ids = append(ids, shared.Identifier{Type: shared.IdentifierMBID, Value: rec.MBID})
	}
	if rec.SpotifyID != "" {
		ids = append(ids, shared.Identifier{Type: shared.IdentifierSpotifyID, Value: rec.SpotifyID})
	}
	return ids
}

func foundSpotify(sp *shared.SpotifyEvidence) *shared.SpotifyEvidence {
	if sp == nil || !sp.Found {
		return nil
	}
	return sp
}

func acoustIDConfirms(ac *shared.AcoustIDEvidence, mbid string) bool {
	if ac == nil || !ac.Found || mbid == "" {
		return false
	}
	for _, id := range ac.MBIDs {
		if id == mbid {
			return true
		}
	}
	return false
}

func hasDatedRelease(releases []shared.Release) bool {
	for _, r := range releases {
		if r.Date != "" {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range a {
		if _, ok := seen[strings.ToLower(s)]; ok {
			return true
		}
	}
	return false
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
