package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"trackcanon/internal/shared"
)

func sample() []*shared.CanonicalRecord {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []*shared.CanonicalRecord{
		{
			ID: "a", Title: "Accepted", Artists: []string{"X", "Y"}, ISRC: "I1", MBID: "M1",
			DurationMs: 180000, Releases: []shared.Release{{ID: "r1", Date: "2001"}}, ReleaseDate: "2001-01-01",
			Canonicality: shared.Canonicality{Score: 0.85, Breakdown: shared.Breakdown{HasISRC: true, MBIDMatch: true}},
			Accept:       true, CreatedAt: at, UpdatedAt: at,
		},
		{ID: "q", Title: "Queued", Canonicality: shared.Canonicality{Score: 0.5}, Queue: true},
		{ID: "s", Title: "Skipped", Skip: true},
	}
}

func readBack(t *testing.T, path string) []Row {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		t.Fatal(err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		t.Fatal(err)
	}
	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	rows := make([]Row, pf.NumRows())
	n, _ := reader.Read(rows)
	return rows[:n]
}

func TestWriteFileFiltersByTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "accepted.parquet")
	n, err := WriteFile(path, sample(), []string{"accept"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 exported record, got %d", n)
	}

	rows := readBack(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.ID != "a" || r.Tier != "accept" || r.Score != 0.85 || !r.HasISRC || r.ReleaseCount != 1 {
		t.Errorf("unexpected row %+v", r)
	}
	if len(r.Artists) != 2 || r.Artists[1] != "Y" {
		t.Errorf("artists not preserved: %v", r.Artists)
	}
	if r.CreatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %q", r.CreatedAt)
	}
}

func TestWriteFileAllTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.parquet")
	n, err := WriteFile(path, sample(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(readBack(t, path)) != 3 {
		t.Fatalf("expected every record exported, got %d", n)
	}
}

func TestFilter(t *testing.T) {
	got := Filter(sample(), []string{"queue", "skip"})
	if len(got) != 2 || got[0].ID != "q" || got[1].ID != "s" {
		t.Fatalf("unexpected filter result %+v", got)
	}
}
