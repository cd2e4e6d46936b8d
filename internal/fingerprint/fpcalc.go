package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
)

const defaultFpcalc = "fpcalc"

// Calculator computes Chromaprint fingerprints through the fpcalc binary.
type Calculator struct {
	binary string
	runner Command
	logger *slog.Logger
}

// NewCalculator creates a Calculator. A nil runner uses ExecRunner with timeout.
func NewCalculator(binary string, timeout time.Duration, runner Command, logger *slog.Logger) *Calculator {
	if binary == "" {
		binary = defaultFpcalc
	}
	if runner == nil {
		runner = ExecRunner{Timeout: timeout}
	}
	return &Calculator{
		binary: binary,
		runner: runner,
		logger: logging.OrDiscard(logger).With("component", "fingerprint"),
	}
}

type fpcalcOutput struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// Compute fingerprints filePath. Failures are reported in the Error
// field of the result; Compute never returns an error.
func (c *Calculator) Compute(ctx context.Context, filePath string) shared.Fingerprint {
	res, err := c.runner.Run(ctx, c.binary, "-json", filePath)
	if err != nil {
		c.logger.Debug("fpcalc failed", "file", filePath, "error", err)
		return shared.Fingerprint{Error: err.Error()}
	}

	var out fpcalcOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return shared.Fingerprint{Error: fmt.Sprintf("invalid fpcalc output: %v", err)}
	}
	if out.Fingerprint == "" {
		return shared.Fingerprint{Error: "fpcalc returned no fingerprint"}
	}
	return shared.Fingerprint{Fingerprint: out.Fingerprint, Duration: out.Duration}
}

// Available checks that fpcalc can be executed and returns its version line.
func (c *Calculator) Available(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.binary, "-version")
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) && errors.Is(cerr, ErrBinaryNotFound) {
			return "", fmt.Errorf("%s: %w", c.binary, ErrBinaryNotFound)
		}
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}
