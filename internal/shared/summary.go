package shared

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// StageSummary collects non-matching stage events across a run and
// prints them grouped by stage.
type StageSummary struct {
	mu      sync.Mutex
	entries map[string][]summaryEntry
	enabled bool
}

type summaryEntry struct {
	Context string
	Event   StageEvent
}

// NewStageSummary creates a new summary collector
func NewStageSummary(enabled bool) *StageSummary {
	return &StageSummary{
		entries: make(map[string][]summaryEntry),
		enabled: enabled,
	}
}

// Add records every event of a row that did not end in a match.
func (s *StageSummary) Add(row RawRow, events []StageEvent) {
	if !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		if ev.Outcome == OutcomeMatch {
			continue
		}
		s.entries[ev.Stage] = append(s.entries[ev.Stage], summaryEntry{Context: row.Label(), Event: ev})
	}
}

// HasEntries returns true if anything was collected
func (s *StageSummary) HasEntries() bool {
	return s.Count() > 0
}

// Count returns the total number of collected events
func (s *StageSummary) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, list := range s.entries {
		n += len(list)
	}
	return n
}

// CountByDetail returns how often each outcome/detail pair occurred for a stage.
func (s *StageSummary) CountByDetail(stage string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countDetails(s.entries[stage])
}

// PrintSummary prints a formatted summary of the collected events
func (s *StageSummary) PrintSummary(w io.Writer) {
	if !s.HasEntries() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	stages := make([]string, 0, len(s.entries))
	for stage, list := range s.entries {
		stages = append(stages, stage)
		total += len(list)
	}
	sort.Strings(stages)

	ColorWarning.Fprintf(w, "\n⚠️  Stage Summary (%d events):\n", total)
	ColorWarning.Fprintln(w, strings.Repeat("─", 50))

	for _, stage := range stages {
		list := s.entries[stage]
		ColorWarning.Fprintf(w, "\n%s (%d):\n", stage, len(list))

		counts := countDetails(list)
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if counts[k] > 1 {
				ColorWarning.Fprintf(w, "  • %s (×%d)\n", k, counts[k])
			} else {
				ColorWarning.Fprintf(w, "  • %s\n", k)
			}
		}
	}
}

func countDetails(list []summaryEntry) map[string]int {
	counts := make(map[string]int)
	for _, e := range list {
		counts[detailKey(e.Event)]++
	}
	return counts
}

func detailKey(ev StageEvent) string {
	if ev.Detail == "" {
		return ev.Outcome
	}
	return fmt.Sprintf("%s: %s", ev.Outcome, ev.Detail)
}
