package store

import (
	"errors"
	"os"
	"sync"
	"time"

	"trackcanon/internal/shared"
)

// SkippedItem is a row that did not reach the queue tier.
type SkippedItem struct {
	CreatedAt time.Time `json:"createdAt"`
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Reason    string    `json:"reason"`
	Score     float64   `json:"score"`
}

type skippedDocument struct {
	Items []SkippedItem `json:"items"`
}

// SkippedQueue persists skipped rows for later manual review.
type SkippedQueue struct {
	path  string
	mu    sync.Mutex
	items []SkippedItem
	now   func() time.Time
}

// OpenSkippedQueue loads existing items from path, if any.
func OpenSkippedQueue(path string) (*SkippedQueue, error) {
	var doc skippedDocument
	if err := shared.ReadJSONFile(path, &doc); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return &SkippedQueue{
		path:  path,
		items: doc.Items,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Add appends a skipped row and rewrites the file.
func (q *SkippedQueue) Add(row shared.RawRow, reason string, score float64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, SkippedItem{
		CreatedAt: q.now(),
		Artist:    row.Artist,
		Title:     row.Title,
		Reason:    reason,
		Score:     score,
	})
	return shared.WriteJSONFile(q.path, skippedDocument{Items: q.items})
}

// Items returns a copy of the queue.
func (q *SkippedQueue) Items() []SkippedItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]SkippedItem(nil), q.items...)
}
