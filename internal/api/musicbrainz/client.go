package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
)

// 1. Constants and types
const (
	defaultBaseURL      = "https://musicbrainz.org/ws/2/"
	defaultUserAgent    = "trackcanon/1.0 ( ops@trackcanon.dev )"
	defaultTimeout      = 30 * time.Second
	defaultRateLimit    = time.Second // MusicBrainz allows one request per second per client
	defaultBurstLimit   = 1
	defaultMaxRetries   = 3
	defaultInitialDelay = 2 * time.Second
	defaultMaxDelay     = 30 * time.Second
	searchLimit         = 5
)

// Lookup reasons
const (
	ReasonNoISRC  = "no-isrc"
	ReasonNoMBID  = "no-mbid"
	ReasonNoQuery = "no-query"
)

// Config holds configuration for MusicBrainz API client
type Config struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	RateLimit    time.Duration
	BurstLimit   int
}

// Client represents a MusicBrainz API client
type Client struct {
	httpClient  *http.Client
	config      Config
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// 2. Constructor and configuration

// DefaultConfig returns sensible defaults for MusicBrainz API client
func DefaultConfig() Config {
	return Config{
		BaseURL:      defaultBaseURL,
		UserAgent:    defaultUserAgent,
		Timeout:      defaultTimeout,
		MaxRetries:   defaultMaxRetries,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		RateLimit:    defaultRateLimit,
		BurstLimit:   defaultBurstLimit,
	}
}

// NewClientWithConfig creates a new MusicBrainz API client with custom configuration
func NewClientWithConfig(config Config, logger *slog.Logger) *Client {
	if config.BurstLimit <= 0 {
		config.BurstLimit = defaultBurstLimit
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.BaseURL != "" && !strings.HasSuffix(config.BaseURL, "/") {
		config.BaseURL += "/"
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Every(config.RateLimit)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config:      config,
		rateLimiter: rate.NewLimiter(limit, config.BurstLimit),
		logger:      logging.OrDiscard(logger).With("provider", "musicbrainz"),
	}
}

// GetConfig returns the current client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// 3. Core HTTP methods (private)

// makeRequest creates and executes an HTTP request with proper headers
func (c *Client) makeRequest(ctx context.Context, path string) (*http.Response, error) {
	reqURL, err := url.Parse(c.config.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// get makes a single GET request to the MusicBrainz API
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	resp, err := c.makeRequest(ctx, path)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &shared.HTTPError{
				StatusCode: http.StatusGatewayTimeout,
				Status:     "Gateway Timeout",
				Message:    err.Error(),
			}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, shared.NewHTTPError(resp, body)
	}

	return body, nil
}

// getWithRetry makes a GET request with retry logic
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var result []byte
	policy := shared.RetryPolicy{
		MaxRetries:   c.config.MaxRetries,
		InitialDelay: c.config.InitialDelay,
		MaxDelay:     c.config.MaxDelay,
	}
	err := shared.RetryWithBackoffForHTTP(ctx, policy, c.logger, func() error {
		var err error
		result, err = c.get(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// searchRecordings runs a recording search and returns each hit with its raw JSON.
func (c *Client) searchRecordings(ctx context.Context, query string) ([]Track, []json.RawMessage, error) {
	path := fmt.Sprintf("recording?query=%s&fmt=json&limit=%d", url.QueryEscape(query), searchLimit)
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	var searchResult struct {
		Recordings []json.RawMessage `json:"recordings"`
	}
	if err := json.Unmarshal(body, &searchResult); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal recording search result: %w", err)
	}

	tracks := make([]Track, 0, len(searchResult.Recordings))
	for _, raw := range searchResult.Recordings {
		var t Track
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal recording: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, searchResult.Recordings, nil
}

// 4. Public API methods

// LookupByISRC resolves an ISRC to a recording. The first search hit wins.
func (c *Client) LookupByISRC(ctx context.Context, isrc string) (*shared.MusicBrainzEvidence, error) {
	isrc = strings.TrimSpace(isrc)
	if isrc == "" {
		return &shared.MusicBrainzEvidence{Found: false, Reason: ReasonNoISRC}, nil
	}

	c.logger.Debug("isrc lookup", "isrc", isrc)
	tracks, raws, err := c.searchRecordings(ctx, fmt.Sprintf("isrc:%s", isrc))
	if err != nil {
		return failed(err), fmt.Errorf("failed to search track by ISRC %s: %w", isrc, err)
	}
	if len(tracks) == 0 {
		return &shared.MusicBrainzEvidence{Found: false, Reason: ReasonNoMBID}, nil
	}

	t := tracks[0]
	return &shared.MusicBrainzEvidence{
		Found:    true,
		MBID:     t.ID,
		Source:   shared.SourceISRC,
		Title:    t.Title,
		Artists:  t.ArtistNames(),
		Duration: t.Length,
		Releases: t.ReleaseList(),
		Raw:      raws[0],
	}, nil
}

// SearchRecording is the free-text fallback search by artist and title.
func (c *Client) SearchRecording(ctx context.Context, artist, title string) (*shared.MusicBrainzEvidence, error) {
	query := buildTrackSearchQuery(strings.TrimSpace(artist), strings.TrimSpace(title))
	if query == "" {
		return &shared.MusicBrainzEvidence{Found: false, Reason: ReasonNoQuery}, nil
	}

	c.logger.Debug("fuzzy search", "query", query)
	tracks, raws, err := c.searchRecordings(ctx, query)
	if err != nil {
		return failed(err), fmt.Errorf("failed to search track: %w", err)
	}
	if len(tracks) == 0 {
		return &shared.MusicBrainzEvidence{Found: false, Reason: shared.ReasonNoMatch}, nil
	}

	t := tracks[0]
	return &shared.MusicBrainzEvidence{
		Found:   true,
		MBID:    t.ID,
		Source:  shared.SourceFuzzy,
		Title:   t.Title,
		Artists: t.ArtistNames(),
		Raw:     raws[0],
	}, nil
}

// 5. Helper/utility functions

// buildTrackSearchQuery constructs a lucene query from whichever parts are present
func buildTrackSearchQuery(artist, title string) string {
	var parts []string
	if title != "" {
		parts = append(parts, fmt.Sprintf("recording:%q", title))
	}
	if artist != "" {
		parts = append(parts, fmt.Sprintf("artist:%q", artist))
	}
	return strings.Join(parts, " AND ")
}

func failed(err error) *shared.MusicBrainzEvidence {
	return &shared.MusicBrainzEvidence{Found: false, Reason: shared.ReasonFor(err), Error: err.Error()}
}

// Data types

// Artist represents a MusicBrainz artist
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ArtistCredit represents artist credit information
type ArtistCredit struct {
	Name   string `json:"name"`
	Artist Artist `json:"artist"`
}

// TrackRelease represents release information within a track
type TrackRelease struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// Track represents a MusicBrainz recording (track)
type Track struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Releases     []TrackRelease `json:"releases"`
	Length       int            `json:"length"` // Duration in milliseconds
}

// ArtistNames returns the credited names, falling back to the artist's own name.
func (t Track) ArtistNames() []string {
	names := make([]string, 0, len(t.ArtistCredit))
	for _, ac := range t.ArtistCredit {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ReleaseList converts the recording's releases to the shared form.
func (t Track) ReleaseList() []shared.Release {
	releases := make([]shared.Release, 0, len(t.Releases))
	for _, r := range t.Releases {
		releases = append(releases, shared.Release{ID: r.ID, Title: r.Title, Date: r.Date})
	}
	return releases
}
