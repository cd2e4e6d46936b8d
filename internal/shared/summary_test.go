package shared

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestStageSummaryIgnoresMatches(t *testing.T) {
	s := NewStageSummary(true)
	row := RawRow{Artist: "A", Title: "T"}
	s.Add(row, []StageEvent{
		{Stage: StageSpotify, Outcome: OutcomeMatch},
		{Stage: StageISRC, Outcome: OutcomeSkipped, Detail: "no-isrc"},
		{Stage: StageFuzzy, Outcome: OutcomeNoMatch},
	})
	s.Add(RawRow{Artist: "B", Title: "U"}, []StageEvent{
		{Stage: StageISRC, Outcome: OutcomeSkipped, Detail: "no-isrc"},
	})

	if got := s.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}
	counts := s.CountByDetail(StageISRC)
	if counts["skipped: no-isrc"] != 2 {
		t.Errorf("unexpected counts %v", counts)
	}
	if len(s.CountByDetail(StageSpotify)) != 0 {
		t.Error("matches must not be collected")
	}
}

func TestStageSummaryDisabled(t *testing.T) {
	s := NewStageSummary(false)
	s.Add(RawRow{}, []StageEvent{{Stage: StageISRC, Outcome: OutcomeError}})
	if s.HasEntries() {
		t.Error("disabled summary must stay empty")
	}
	var buf bytes.Buffer
	s.PrintSummary(&buf)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestStageSummaryPrint(t *testing.T) {
	s := NewStageSummary(true)
	for range 2 {
		s.Add(RawRow{Artist: "A", Title: "T"}, []StageEvent{{Stage: StageAcoustID, Outcome: OutcomeSkipped, Detail: "no-api-key"}})
	}
	var buf bytes.Buffer
	s.PrintSummary(&buf)
	out := buf.String()
	if !strings.Contains(out, "acoustid (2)") || !strings.Contains(out, "skipped: no-api-key (×2)") {
		t.Errorf("unexpected summary %q", out)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := TruncateString("a rather long title", 10); got != "a rathe..." {
		t.Errorf("got %q", got)
	}
	got := TruncateString("Björk Guðmundsdóttir", 8)
	if got != "Björk..." || !utf8.ValidString(got) {
		t.Errorf("multi-byte names must be cut on character boundaries, got %q", got)
	}
}
