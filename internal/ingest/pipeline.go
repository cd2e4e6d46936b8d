package ingest

import (
	"context"
	"log/slog"

	"trackcanon/internal/core/canonical"
	"trackcanon/internal/core/tags"
	"trackcanon/internal/interfaces"
	"trackcanon/internal/logging"
	"trackcanon/internal/metrics"
	"trackcanon/internal/shared"
	"trackcanon/internal/store"
)

// Resolver gathers evidence for a row.
type Resolver interface {
	Resolve(ctx context.Context, row shared.RawRow) *shared.Resolution
}

// Pipeline processes single rows: resolve, score, upsert, count.
// All of its collaborators are safe for concurrent use.
type Pipeline struct {
	Resolver Resolver
	Scorer   *canonical.Scorer
	Store    *store.Store
	Metrics  *metrics.Recorder
	// Skipped receives skip-tier rows when set.
	Skipped *store.SkippedQueue
	// TagWriter writes identifiers of accepted records back to the row's audio file when set.
	TagWriter interfaces.TagWriter
	Summary   *shared.StageSummary
	Logger    *slog.Logger
}

// Process runs one row through the pipeline. It always returns a result;
// failures are recorded as notes and counted as errors.
func (p *Pipeline) Process(ctx context.Context, row shared.RawRow) shared.RowResult {
	logger := logging.OrDiscard(p.Logger)

	res := p.Resolver.Resolve(ctx, row)
	if !rowValid(row) {
		res.Note(shared.StageValidate, shared.OutcomeError, ReasonMissingFields)
	}
	rec := p.Scorer.Normalize(res)

	up, err := p.Store.Upsert(ctx, rec)
	if err != nil {
		logger.Error("upsert failed", "row", row.Label(), "error", err)
		res.Note(shared.StageUpsert, shared.OutcomeError, err.Error())
		p.count(logger, p.Metrics.IncError())
	} else {
		rec.ID = up.Record.ID
		rec.CreatedAt = up.Record.CreatedAt
		rec.UpdatedAt = up.Record.UpdatedAt
		p.record(logger, res, rec)
	}

	if p.Summary != nil {
		p.Summary.Add(row, res.Notes)
	}

	return shared.RowResult{
		RawRow:      res.Row,
		Spotify:     res.Spotify,
		MusicBrainz: res.MusicBrainz,
		AcoustID:    res.AcoustID,
		Notes:       res.Notes,
		Canonical:   rec,
	}
}

func (p *Pipeline) record(logger *slog.Logger, res *shared.Resolution, rec *shared.CanonicalRecord) {
	p.count(logger, p.Metrics.IncProcessed())
	switch {
	case rec.Accept:
		p.count(logger, p.Metrics.IncAccepted())
		p.writeTags(logger, res, rec)
	case rec.Queue:
		p.count(logger, p.Metrics.IncQueued())
	default:
		reason := canonical.SkipReason(rec)
		p.count(logger, p.Metrics.IncSkipped(reason))
		if p.Skipped != nil {
			if err := p.Skipped.Add(res.Row, reason, rec.Canonicality.Score); err != nil {
				logger.Warn("skipped queue write failed", "error", err)
			}
		}
	}
	logger.Debug("row staged", "row", res.Row.Label(), "tier", rec.Tier(), "score", rec.Canonicality.Score)
}

func (p *Pipeline) writeTags(logger *slog.Logger, res *shared.Resolution, rec *shared.CanonicalRecord) {
	path := res.Row.AudioFile
	if p.TagWriter == nil || path == "" || !tags.Supported(path) || !shared.FileExists(path) {
		return
	}
	if err := p.TagWriter.WriteIdentifiers(path, rec); err != nil {
		logger.Warn("tag write failed", "file", path, "error", err)
		res.Note(shared.StageWriteTags, shared.OutcomeError, err.Error())
		return
	}
	res.Note(shared.StageWriteTags, shared.OutcomeMatch, "")
}

func (p *Pipeline) count(logger *slog.Logger, err error) {
	if err != nil {
		logger.Warn("metrics write failed", "error", err)
	}
}
