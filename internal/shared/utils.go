package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Provider failure reasons
const (
	ReasonLookupError = "lookup-error"
	ReasonNoMatch     = "no-match"
)

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Status, e.Message)
}

// NewHTTPError builds an HTTPError from a response, truncating the body.
func NewHTTPError(resp *http.Response, body []byte) *HTTPError {
	message := string(body)
	if len(message) > 200 {
		message = message[:200] + "..."
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    message,
	}
}

// IsRetryableHTTPError checks if an HTTP error should be retried
func IsRetryableHTTPError(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	switch httpErr.StatusCode {
	case http.StatusServiceUnavailable, // 503
		http.StatusTooManyRequests, // 429
		http.StatusBadGateway,      // 502
		http.StatusGatewayTimeout:  // 504
		return true
	}
	return false
}

// ReasonFor maps a provider error to its structured reason:
// http-<code> for HTTP failures, lookup-error for everything else.
func ReasonFor(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("http-%d", httpErr.StatusCode)
	}
	return ReasonLookupError
}

// RetryPolicy configures RetryWithBackoffForHTTP.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// RetryWithBackoffForHTTP retries fn while it fails with a retryable HTTP
// error, using exponential backoff with jitter. It stops early when ctx is done.
func RetryWithBackoffForHTTP(ctx context.Context, policy RetryPolicy, logger *slog.Logger, fn func() error) error {
	if policy.MaxRetries <= 0 {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryableHTTPError(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries-1 {
			break
		}

		delay := policy.InitialDelay * time.Duration(1<<uint(attempt))
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
		finalDelay := delay
		if delay > 0 {
			// ±25% jitter
			finalDelay = delay + time.Duration(rand.Int63n(int64(delay/2)+1)) - delay/4
			if finalDelay < 0 {
				finalDelay = delay
			}
		}

		if logger != nil {
			logger.Debug("retrying request",
				"attempt", attempt+1, "max_attempts", policy.MaxRetries,
				"delay", finalDelay, "error", lastErr)
		}

		timer := time.NewTimer(finalDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", policy.MaxRetries, lastErr)
}

// FileExists checks if a file exists at the given path
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// CreateDirIfNotExists creates a directory if it doesn't exist
func CreateDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// TruncateString shortens s to maxLen display columns, ending in an ellipsis
// when it was cut. Multi-byte characters are never split.
func TruncateString(s string, maxLen int) string {
	return text.Snip(s, maxLen, "...")
}

func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// WriteJSONFile writes v as indented JSON. The file is replaced atomically
// so readers never observe a partial document.
func WriteJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := CreateDirIfNotExists(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadJSONFile decodes path into v. A missing file returns an error
// satisfying errors.Is(err, os.ErrNotExist).
func ReadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}
