// Package ingest reads ingestion sources and drives rows through the
// resolve, score and stage pipeline.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"trackcanon/internal/shared"
)

// ErrNoRows is returned when a source yields no data rows.
var ErrNoRows = errors.New("no rows")

// ReadCSV reads rows from the CSV file at path.
func ReadCSV(path string) ([]shared.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads rows with the columns Artist, Title and optionally ISRC,
// MBID, Provider and audioFile. Header names are matched case-insensitively
// and unknown columns are ignored. Quoted fields may contain commas.
func ParseCSV(r io.Reader) ([]shared.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimPrefix(h, "\ufeff")
		name = strings.ToLower(strings.Trim(strings.TrimSpace(name), `"`))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []shared.RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read row: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, shared.RawRow{
			Artist:    field(rec, "artist"),
			Title:     field(rec, "title"),
			ISRC:      field(rec, "isrc"),
			MBID:      field(rec, "mbid"),
			Provider:  field(rec, "provider"),
			AudioFile: field(rec, "audiofile"),
			Line:      line,
		})
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ReasonMissingFields is reported for rows without an artist or a title.
const ReasonMissingFields = "missing Artist or Title"

// RowError describes one invalid row. Row is the 1-based data row index.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Validation is the result of ValidateRows.
type Validation struct {
	Valid  bool       `json:"valid"`
	Errors []RowError `json:"errors"`
}

// ValidateRows checks that every row names an artist and a title.
func ValidateRows(rows []shared.RawRow) Validation {
	v := Validation{Errors: []RowError{}}
	for i, r := range rows {
		if !rowValid(r) {
			v.Errors = append(v.Errors, RowError{Row: i + 1, Reason: ReasonMissingFields})
		}
	}
	v.Valid = len(v.Errors) == 0
	return v
}

func rowValid(r shared.RawRow) bool {
	return r.Artist != "" && r.Title != ""
}
