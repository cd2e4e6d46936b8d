// Package export writes staged records to columnar files for promotion tooling.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/parquet-go/parquet-go"

	"trackcanon/internal/shared"
)

// Row is the flattened form of a canonical record.
type Row struct {
	ID                 string   `parquet:"id"`
	Title              string   `parquet:"title"`
	Artists            []string `parquet:"artists,list"`
	ISRC               string   `parquet:"isrc"`
	SpotifyID          string   `parquet:"spotify_id"`
	MBID               string   `parquet:"mbid"`
	DurationMs         int64    `parquet:"duration_ms"`
	ReleaseDate        string   `parquet:"release_date"`
	ReleaseCount       int32    `parquet:"release_count"`
	IsRemix            bool     `parquet:"is_remix"`
	Score              float64  `parquet:"score"`
	Tier               string   `parquet:"tier"`
	HasISRC            bool     `parquet:"has_isrc"`
	MBIDMatch          bool     `parquet:"mbid_match"`
	AcoustIDMatch      bool     `parquet:"acoustid_match"`
	DurationSimilarity float64  `parquet:"duration_similarity"`
	EarliestRelease    bool     `parquet:"earliest_release"`
	ProviderAgreement  float64  `parquet:"provider_agreement"`
	CreatedAt          string   `parquet:"created_at"`
	UpdatedAt          string   `parquet:"updated_at"`
}

// Flatten converts a record to a Row.
func Flatten(rec *shared.CanonicalRecord) Row {
	b := rec.Canonicality.Breakdown
	return Row{
		ID:                 rec.ID,
		Title:              rec.Title,
		Artists:            append([]string{}, rec.Artists...),
		ISRC:               rec.ISRC,
		SpotifyID:          rec.SpotifyID,
		MBID:               rec.MBID,
		DurationMs:         int64(rec.DurationMs),
		ReleaseDate:        rec.ReleaseDate,
		ReleaseCount:       int32(len(rec.Releases)),
		IsRemix:            rec.IsRemix,
		Score:              rec.Canonicality.Score,
		Tier:               rec.Tier(),
		HasISRC:            b.HasISRC,
		MBIDMatch:          b.MBIDMatch,
		AcoustIDMatch:      b.AcoustIDMatch,
		DurationSimilarity: b.DurationSimilarity,
		EarliestRelease:    b.EarliestRelease,
		ProviderAgreement:  b.ProviderAgreement,
		CreatedAt:          formatTime(rec.CreatedAt),
		UpdatedAt:          formatTime(rec.UpdatedAt),
	}
}

// Filter keeps the records whose tier is listed. An empty list keeps everything.
func Filter(records []*shared.CanonicalRecord, tiers []string) []*shared.CanonicalRecord {
	if len(tiers) == 0 {
		return records
	}
	out := make([]*shared.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if slices.Contains(tiers, r.Tier()) {
			out = append(out, r)
		}
	}
	return out
}

// WriteParquet encodes records as a single Parquet file on w.
func WriteParquet(w io.Writer, records []*shared.CanonicalRecord) error {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Flatten(r))
	}

	writer := parquet.NewGenericWriter[Row](w)
	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WriteFile exports the records of the given tiers to path and returns how many were written.
func WriteFile(path string, records []*shared.CanonicalRecord, tiers []string) (int, error) {
	selected := Filter(records, tiers)
	if err := shared.CreateDirIfNotExists(filepath.Dir(path)); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.parquet")
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteParquet(tmp, selected); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move export into place: %w", err)
	}
	return len(selected), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
