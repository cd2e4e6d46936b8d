package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trackcanon/internal/shared"
)

func TestParseCSV(t *testing.T) {
	input := "\ufeffartist,TITLE,Isrc,MBID,Provider,audioFile\n" +
		"Daft Punk,One More Time,GBDUW0000059,,spotify,\n" +
		"\n" +
		"\"Crosby, Stills & Nash\",\"Suite: Judy Blue Eyes\",,mb-1,,/music/cs.flac\n"

	rows, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Artist != "Daft Punk" || rows[0].ISRC != "GBDUW0000059" || rows[0].Provider != "spotify" {
		t.Errorf("row 0: %+v", rows[0])
	}
	want := shared.RawRow{
		Artist:    "Crosby, Stills & Nash",
		Title:     "Suite: Judy Blue Eyes",
		MBID:      "mb-1",
		AudioFile: "/music/cs.flac",
		Line:      4,
	}
	if rows[1] != want {
		t.Errorf("row 1:\n got %+v\nwant %+v", rows[1], want)
	}
}

func TestParseCSVMissingOptionalColumns(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("Artist,Title\nA,T\nB\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Artist != "B" || rows[1].Title != "" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestParseCSVEmpty(t *testing.T) {
	for _, in := range []string{"", "Artist,Title\n", "Artist,Title\n,\n"} {
		if _, err := ParseCSV(strings.NewReader(in)); !errors.Is(err, ErrNoRows) {
			t.Errorf("ParseCSV(%q) = %v, want ErrNoRows", in, err)
		}
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestValidateRows(t *testing.T) {
	v := ValidateRows([]shared.RawRow{
		{Artist: "A", Title: "T"},
		{Artist: "A"},
		{Title: "T"},
	})
	if v.Valid {
		t.Fatal("expected invalid")
	}
	if len(v.Errors) != 2 || v.Errors[0].Row != 2 || v.Errors[1].Row != 3 {
		t.Fatalf("unexpected errors %+v", v.Errors)
	}
	if ok := ValidateRows([]shared.RawRow{{Artist: "A", Title: "T"}}); !ok.Valid || len(ok.Errors) != 0 {
		t.Errorf("expected valid, got %+v", ok)
	}
}
