package acoustid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
)

const (
	defaultBaseURL   = "https://api.acoustid.org/v2/lookup"
	defaultRateLimit = 334 * time.Millisecond // three requests per second
	defaultTimeout   = 30 * time.Second
)

// Lookup reasons
const (
	ReasonNoFingerprint = "no-fingerprint"
	ReasonNoAPIKey      = "no-api-key"
	ReasonAPIError      = "acoustid-error"
	ReasonNoMatches     = "no-matches"
	ReasonNoMBID        = "no-mbid"
	ReasonMatched       = "matched"
)

// Config holds configuration for the AcoustID client
type Config struct {
	APIKey    string
	BaseURL   string
	RateLimit time.Duration
	Timeout   time.Duration
}

// Client performs fingerprint lookups against AcoustID.
type Client struct {
	httpClient *http.Client
	config     Config
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an AcoustID client. An empty API key leaves the
// client in mock mode: every lookup returns no-api-key without network access.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		limiter:    rate.NewLimiter(rate.Every(config.RateLimit), 1),
		logger:     logging.OrDiscard(logger).With("provider", "acoustid"),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.config.APIKey != ""
}

type lookupResponse struct {
	Status string `json:"status"`
	Error  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Results []struct {
		ID         string  `json:"id"`
		Score      float64 `json:"score"`
		Recordings []struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Duration float64 `json:"duration"`
			Artists  []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"recordings"`
	} `json:"results"`
}

// Lookup resolves a fingerprint to MusicBrainz recording ids using the top result.
func (c *Client) Lookup(ctx context.Context, fingerprint string, duration float64) (*shared.AcoustIDEvidence, error) {
	if fingerprint == "" {
		return &shared.AcoustIDEvidence{Found: false, Reason: ReasonNoFingerprint}, nil
	}
	if !c.Enabled() {
		return &shared.AcoustIDEvidence{Found: false, Reason: ReasonNoAPIKey}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return failed(err), fmt.Errorf("rate limiter error: %w", err)
	}

	params := url.Values{}
	params.Set("client", c.config.APIKey)
	params.Set("fingerprint", fingerprint)
	params.Set("meta", "recordings")
	if duration > 0 {
		params.Set("duration", strconv.Itoa(int(math.Round(duration))))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return failed(err), fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed(err), fmt.Errorf("acoustid lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(err), fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		herr := shared.NewHTTPError(resp, body)
		return failed(herr), fmt.Errorf("acoustid lookup: %w", herr)
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failed(err), fmt.Errorf("failed to unmarshal acoustid response: %w", err)
	}
	if parsed.Status != "ok" {
		return &shared.AcoustIDEvidence{
			Found:  false,
			Reason: ReasonAPIError,
			Error:  parsed.Error.Message,
			Raw:    body,
		}, nil
	}
	if len(parsed.Results) == 0 {
		return &shared.AcoustIDEvidence{Found: false, Reason: ReasonNoMatches, Raw: body}, nil
	}

	top := parsed.Results[0]
	ev := &shared.AcoustIDEvidence{Confidence: top.Score, Raw: body}
	for _, rec := range top.Recordings {
		if rec.ID == "" {
			continue
		}
		artists := make([]string, 0, len(rec.Artists))
		for _, a := range rec.Artists {
			artists = append(artists, a.Name)
		}
		ev.MBIDs = append(ev.MBIDs, rec.ID)
		ev.Recordings = append(ev.Recordings, shared.AcoustIDRecording{
			ID:       rec.ID,
			Title:    rec.Title,
			Artists:  artists,
			Duration: rec.Duration,
		})
	}
	ev.Found = len(ev.MBIDs) > 0
	ev.Reason = ReasonNoMBID
	if ev.Found {
		ev.Reason = ReasonMatched
	}
	c.logger.Debug("lookup complete", "reason", ev.Reason, "score", top.Score)
	return ev, nil
}

func failed(err error) *shared.AcoustIDEvidence {
	return &shared.AcoustIDEvidence{Found: false, Reason: shared.ReasonFor(err), Error: err.Error()}
}
