// Package reenrich backfills MusicBrainz ids on staged records that were
// stored with an ISRC but without an MBID.
package reenrich

import (
	"context"
	"log/slog"
	"time"

	"trackcanon/internal/core/canonical"
	"trackcanon/internal/interfaces"
	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
	"trackcanon/internal/store"
)

// Result summarizes a sweep.
type Result struct {
	Scanned  int `json:"scanned"`
	Eligible int `json:"eligible"`
	Enriched int `json:"enriched"`
	NotFound int `json:"notFound"`
	Failed   int `json:"failed"`
}

// Enricher re-runs the ISRC lookup for eligible staged records.
type Enricher struct {
	mb      interfaces.MusicBrainzResolver
	store   *store.Store
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Enricher. Each lookup is bounded by timeout when it is positive.
func New(mb interfaces.MusicBrainzResolver, st *store.Store, timeout time.Duration, logger *slog.Logger) *Enricher {
	return &Enricher{
		mb:      mb,
		store:   st,
		timeout: timeout,
		logger:  logging.OrDiscard(logger).With("component", "reenrich"),
	}
}

// Eligible reports whether rec lacks an MBID but has an ISRC.
func Eligible(rec *shared.CanonicalRecord) bool {
	return rec.MBID == "" && rec.ISRC != ""
}

// Run sweeps every staged record. A failed lookup is recorded on the record
// and the sweep continues. Canonicality scores and tiers are left unchanged.
func (e *Enricher) Run(ctx context.Context) (Result, error) {
	var res Result
	records, err := e.store.ReadAll(ctx)
	if err != nil {
		return res, err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		if !Eligible(rec) {
			continue
		}
		res.Eligible++

		changed, err := e.enrich(ctx, rec)
		switch {
		case err != nil:
			res.Failed++
			rec.ReEnrichError = err.Error()
			e.logger.Warn("re-enrichment failed", "id", rec.ID, "isrc", rec.ISRC, "error", err)
		case changed:
			res.Enriched++
			rec.ReEnrichError = ""
		default:
			res.NotFound++
			continue
		}
		if err := e.store.Save(ctx, rec); err != nil {
			return res, err
		}
	}

	e.logger.Info("re-enrichment complete",
		"scanned", res.Scanned, "eligible", res.Eligible, "enriched", res.Enriched,
		"not_found", res.NotFound, "failed", res.Failed)
	return res, nil
}

func (e *Enricher) enrich(ctx context.Context, rec *shared.CanonicalRecord) (bool, error) {
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if e.timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	mb, err := e.mb.LookupByISRC(cctx, rec.ISRC)
	if err != nil {
		return false, err
	}
	if mb == nil || !mb.Found || mb.MBID == "" {
		return false, nil
	}

	rec.MBID = mb.MBID
	if len(mb.Releases) > 0 {
		rec.Releases = append([]shared.Release(nil), mb.Releases...)
		rec.ReleaseDate = canonical.ChooseReleaseDate(rec.Releases)
	}
	if len(mb.Raw) > 0 {
		rec.Raw.MusicBrainz = mb.Raw
	}
	rec.Identifiers = store.UnionIdentifiers(rec.Identifiers,
		[]shared.Identifier{{Type: shared.IdentifierMBID, Value: mb.MBID}})
	return true, nil
}
