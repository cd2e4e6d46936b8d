package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
)

const (
	defaultBaseURL     = "https://api.spotify.com/v1/"
	defaultSearchLimit = 8
	defaultRatePerSec  = 5
	defaultTimeout     = 30 * time.Second
)

// Candidate scoring points.
const (
	pointsExactTitle = 50
	pointsArtist     = 30
	pointsISRC       = 20
)

// Config holds configuration for the Spotify search client
type Config struct {
	BaseURL     string
	SearchLimit int
	RateLimit   float64 // requests per second
	Timeout     time.Duration
}

// DefaultConfig returns sensible defaults for the Spotify search client
func DefaultConfig() Config {
	return Config{
		BaseURL:     defaultBaseURL,
		SearchLimit: defaultSearchLimit,
		RateLimit:   defaultRatePerSec,
		Timeout:     defaultTimeout,
	}
}

// Client searches the Spotify catalog for the best matching track.
type Client struct {
	api     *spotify.Client
	tokens  *TokenCache
	limiter *rate.Limiter
	config  Config
	logger  *slog.Logger
}

// NewClient creates a search client authenticated through tokens.
func NewClient(config Config, tokens *TokenCache, logger *slog.Logger) *Client {
	if config.SearchLimit <= 0 {
		config.SearchLimit = defaultSearchLimit
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRatePerSec
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	config.BaseURL = baseURL

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &oauth2.Transport{
			Source: tokens,
			Base:   http.DefaultTransport,
		},
	}

	return &Client{
		api:     spotify.New(httpClient, spotify.WithBaseURL(baseURL)),
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		config:  config,
		logger:  logging.OrDiscard(logger).With("provider", "spotify"),
	}
}

// Candidate is a flattened Spotify track considered for a row.
type Candidate struct {
	ID         string
	Title      string
	Artists    []string
	ISRC       string
	DurationMs int
	Raw        json.RawMessage
}

// ScoreCandidate awards points for an exact (case-insensitive) title
// match, an artist containing the queried artist, and a present ISRC.
func ScoreCandidate(c Candidate, artist, title string) int {
	score := 0
	if strings.EqualFold(strings.TrimSpace(c.Title), strings.TrimSpace(title)) {
		score += pointsExactTitle
	}
	want := strings.ToLower(artist)
	for _, a := range c.Artists {
		if strings.Contains(strings.ToLower(a), want) {
			score += pointsArtist
			break
		}
	}
	if c.ISRC != "" {
		score += pointsISRC
	}
	return score
}

// PickBest returns the highest scoring candidate. Ties keep the earliest.
func PickBest(cands []Candidate, artist, title string) (Candidate, int, bool) {
	if len(cands) == 0 {
		return Candidate{}, 0, false
	}
	best, bestScore := cands[0], ScoreCandidate(cands[0], artist, title)
	for _, c := range cands[1:] {
		if s := ScoreCandidate(c, artist, title); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best, bestScore, true
}

// Search looks up "artist title" and returns the best candidate as evidence.
// Provider failures are returned as not-found evidence together with the error.
func (c *Client) Search(ctx context.Context, artist, title string) (*shared.SpotifyEvidence, error) {
	query := strings.TrimSpace(artist + " " + title)
	if query == "" {
		return &shared.SpotifyEvidence{Found: false, Reason: "no-query"}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return failed(err), fmt.Errorf("rate limiter error: %w", err)
	}

	c.logger.Debug("searching", "query", query)
	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(c.config.SearchLimit))
	if err != nil {
		err = mapError(err)
		return failed(err), fmt.Errorf("spotify search %q: %w", query, err)
	}
	if result == nil || result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return &shared.SpotifyEvidence{Found: false, Reason: shared.ReasonNoMatch}, nil
	}

	cands := make([]Candidate, 0, len(result.Tracks.Tracks))
	for _, t := range result.Tracks.Tracks {
		cand, err := toCandidate(t)
		if err != nil {
			return failed(err), fmt.Errorf("decode spotify track: %w", err)
		}
		cands = append(cands, cand)
	}

	best, score, _ := PickBest(cands, artist, title)
	return &shared.SpotifyEvidence{
		Found:      true,
		SpotifyID:  best.ID,
		ISRC:       best.ISRC,
		Title:      best.Title,
		Artists:    best.Artists,
		DurationMs: best.DurationMs,
		Score:      score,
		Raw:        best.Raw,
	}, nil
}

// trackIDs pulls the fields whose Go representation differs between
// library versions straight from the wire form.
type trackIDs struct {
	DurationMs  float64 `json:"duration_ms"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

func toCandidate(t spotify.FullTrack) (Candidate, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return Candidate{}, err
	}
	var ids trackIDs
	if err := json.Unmarshal(raw, &ids); err != nil {
		return Candidate{}, err
	}

	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return Candidate{
		ID:         string(t.ID),
		Title:      t.Name,
		Artists:    artists,
		ISRC:       ids.ExternalIDs.ISRC,
		DurationMs: int(ids.DurationMs),
		Raw:        raw,
	}, nil
}

// mapError converts library errors into shared.HTTPError so reasons are uniform.
func mapError(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return &shared.HTTPError{
			StatusCode: apiErr.Status,
			Status:     http.StatusText(apiErr.Status),
			Message:    apiErr.Message,
		}
	}
	return err
}

func failed(err error) *shared.SpotifyEvidence {
	return &shared.SpotifyEvidence{Found: false, Reason: shared.ReasonFor(err), Error: err.Error()}
}
