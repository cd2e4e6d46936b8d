package store

import (
	"errors"
	"os"
	"sync"
	"time"

	"trackcanon/internal/shared"
)

// MergeEntry records one upsert that folded a row into an existing record.
type MergeEntry struct {
	// FromID is the incoming key, formatted as "<type>:<value>".
	FromID string    `json:"fromId"`
	ToID   string    `json:"toId"`
	Reason string    `json:"reason"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

type mergeLogDocument struct {
	Merges []MergeEntry `json:"merges"`
}

// MergeLog is an append-only audit file of merges.
type MergeLog struct {
	path    string
	mu      sync.Mutex
	entries []MergeEntry
}

// OpenMergeLog loads existing entries from path, if any.
func OpenMergeLog(path string) (*MergeLog, error) {
	var doc mergeLogDocument
	if err := shared.ReadJSONFile(path, &doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &MergeLog{path: path, entries: doc.Merges}, nil
}

// Append adds entry and rewrites the file.
func (l *MergeLog) Append(entry MergeEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return shared.WriteJSONFile(l.path, mergeLogDocument{Merges: l.entries})
}

// Entries returns a copy of the log.
func (l *MergeLog) Entries() []MergeEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]MergeEntry(nil), l.entries...)
}
