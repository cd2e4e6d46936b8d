package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"trackcanon/internal/shared"
)

// ErrLocked is returned when another process holds the staging store.
var ErrLocked = errors.New("staging store is locked by another process")

// Database is the on-disk JSON document.
type Database struct {
	Records []*shared.CanonicalRecord `json:"records"`
}

// JSONStore keeps every record in one JSON document, rewritten atomically
// on each Put. An advisory file lock keeps it single-writer across processes.
type JSONStore struct {
	path    string
	mu      sync.Mutex
	lock    *flock.Flock
	records []*shared.CanonicalRecord
}

// OpenJSON loads (or creates) the document at path and takes its lock.
func OpenJSON(path string) (*JSONStore, error) {
	if err := shared.CreateDirIfNotExists(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock staging store: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	var db Database
	if err := shared.ReadJSONFile(path, &db); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = lock.Unlock()
		return nil, fmt.Errorf("load staging store: %w", err)
	}

	return &JSONStore{path: path, lock: lock, records: db.Records}, nil
}

// Get implements KeyedRecordStore.
func (s *JSONStore) Get(_ context.Context, key shared.Identifier) (*shared.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if matches(r, key) {
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// Put implements KeyedRecordStore. The whole document is written before
// the in-memory view changes, so a failed write leaves both untouched.
func (s *JSONStore) Put(_ context.Context, rec *shared.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*shared.CanonicalRecord, 0, len(s.records)+1)
	replaced := false
	for _, r := range s.records {
		if r.ID == rec.ID {
			next = append(next, rec.Clone())
			replaced = true
			continue
		}
		next = append(next, r)
	}
	if !replaced {
		next = append(next, rec.Clone())
	}

	if err := shared.WriteJSONFile(s.path, Database{Records: next}); err != nil {
		return err
	}
	s.records = next
	return nil
}

// ReadAll implements KeyedRecordStore.
func (s *JSONStore) ReadAll(_ context.Context) ([]*shared.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*shared.CanonicalRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Close releases the file lock.
func (s *JSONStore) Close() error {
	if s.lock == nil {
		return nil
	}
	return s.lock.Unlock()
}
