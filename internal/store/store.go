package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trackcanon/internal/logging"
	"trackcanon/internal/shared"
)

// ErrNotFound is returned by KeyedRecordStore.Get when no record carries the key.
var ErrNotFound = errors.New("record not found")

// KeyedRecordStore persists canonical records addressable by isrc, mbid or spotify_id.
type KeyedRecordStore interface {
	// Get returns the record whose field named by key.Type equals key.Value.
	Get(ctx context.Context, key shared.Identifier) (*shared.CanonicalRecord, error)
	// Put inserts rec, or replaces the record with the same ID.
	Put(ctx context.Context, rec *shared.CanonicalRecord) error
	// ReadAll returns every record in insertion order.
	ReadAll(ctx context.Context) ([]*shared.CanonicalRecord, error)
	Close() error
}

// lookupOrder is the priority in which identifiers are matched during upsert.
var lookupOrder = []string{shared.IdentifierISRC, shared.IdentifierMBID, shared.IdentifierSpotifyID}

// UpsertResult describes what an upsert did.
type UpsertResult struct {
	Record  *shared.CanonicalRecord
	Created bool
	// MatchedOn is the identifier type that located the existing record.
	MatchedOn string
}

// Store implements merge-upsert on top of a KeyedRecordStore. Upserts are
// serialized, so a Store may be shared by concurrent workers.
type Store struct {
	backend  KeyedRecordStore
	mergeLog *MergeLog
	mu       sync.Mutex
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMergeLog records an audit entry for every merge.
func WithMergeLog(l *MergeLog) Option {
	return func(s *Store) { s.mergeLog = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps backend with the merge algorithm.
func New(backend KeyedRecordStore, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "store")
	return s
}

// Backend returns the underlying record store.
func (s *Store) Backend() KeyedRecordStore {
	return s.backend
}

// Upsert merges rec into the store. The existing record is located by
// isrc, then mbid, then spotify_id; the first match wins. On a match,
// non-empty incoming fields replace existing ones, scores and tiers are
// taken from rec, and identifiers are unioned. Otherwise rec is inserted.
func (s *Store) Upsert(ctx context.Context, rec *shared.CanonicalRecord) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, matchedOn, err := s.find(ctx, rec)
	if err != nil {
		return UpsertResult{}, err
	}

	now := s.now()
	if existing == nil {
		created := rec.Clone()
		created.ID = s.newID()
		created.Identifiers = UnionIdentifiers(nil, rec.Identifiers)
		created.CreatedAt = now
		created.UpdatedAt = now
		if err := s.backend.Put(ctx, created); err != nil {
			return UpsertResult{}, fmt.Errorf("insert record: %w", err)
		}
		return UpsertResult{Record: created, Created: true}, nil
	}

	merged := Merge(existing, rec)
	merged.UpdatedAt = now
	if err := s.backend.Put(ctx, merged); err != nil {
		return UpsertResult{}, fmt.Errorf("update record %s: %w", merged.ID, err)
	}

	if s.mergeLog != nil {
		entry := MergeEntry{
			FromID: matchedOn + ":" + keyValue(rec, matchedOn),
			ToID:   merged.ID,
			Reason: "match:" + matchedOn,
			Actor:  "upsert",
			At:     now,
		}
		if err := s.mergeLog.Append(entry); err != nil {
			s.logger.Warn("merge log append failed", "error", err)
		}
	}
	return UpsertResult{Record: merged, MatchedOn: matchedOn}, nil
}

// Save writes back a record that was modified in place, refreshing updatedAt.
func (s *Store) Save(ctx context.Context, rec *shared.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = s.now()
	return s.backend.Put(ctx, rec)
}

// ReadAll returns a snapshot of every record.
func (s *Store) ReadAll(ctx context.Context) ([]*shared.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.ReadAll(ctx)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) find(ctx context.Context, rec *shared.CanonicalRecord) (*shared.CanonicalRecord, string, error) {
	for _, typ := range lookupOrder {
		value := keyValue(rec, typ)
		if value == "" {
			continue
		}
		existing, err := s.backend.Get(ctx, shared.Identifier{Type: typ, Value: value})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("lookup by %s: %w", typ, err)
		}
		return existing, typ, nil
	}
	return nil, "", nil
}

// Merge returns existing updated with incoming. It never mutates either argument.
func Merge(existing, incoming *shared.CanonicalRecord) *shared.CanonicalRecord {
	m := existing.Clone()

	if incoming.Title != "" {
		m.Title = incoming.Title
	}
	if len(incoming.Artists) > 0 {
		m.Artists = append([]string(nil), incoming.Artists...)
	}
	if incoming.ISRC != "" {
		m.ISRC = incoming.ISRC
	}
	if incoming.SpotifyID != "" {
		m.SpotifyID = incoming.SpotifyID
	}
	if incoming.MBID != "" {
		m.MBID = incoming.MBID
	}
	if incoming.DurationMs != 0 {
		m.DurationMs = incoming.DurationMs
	}
	if len(incoming.Releases) > 0 {
		m.Releases = append([]shared.Release(nil), incoming.Releases...)
	}
	if incoming.ReleaseDate != "" {
		m.ReleaseDate = incoming.ReleaseDate
	}
	if len(incoming.Raw.Spotify) > 0 {
		m.Raw.Spotify = append([]byte(nil), incoming.Raw.Spotify...)
	}
	if len(incoming.Raw.MusicBrainz) > 0 {
		m.Raw.MusicBrainz = append([]byte(nil), incoming.Raw.MusicBrainz...)
	}

	m.IsRemix = incoming.IsRemix
	m.Canonicality = incoming.Canonicality
	m.Accept, m.Queue, m.Skip = incoming.Accept, incoming.Queue, incoming.Skip
	m.ReEnrichError = incoming.ReEnrichError
	m.Identifiers = UnionIdentifiers(existing.Identifiers, incoming.Identifiers)
	return m
}

// UnionIdentifiers concatenates a and b, dropping repeated (type, value) pairs.
func UnionIdentifiers(a, b []shared.Identifier) []shared.Identifier {
	out := make([]shared.Identifier, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]shared.Identifier{a, b} {
		for _, id := range list {
			if id.Value == "" {
				continue
			}
			if _, dup := seen[id.Key()]; dup {
				continue
			}
			seen[id.Key()] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func keyValue(rec *shared.CanonicalRecord, typ string) string {
	switch typ {
	case shared.IdentifierISRC:
		return rec.ISRC
	case shared.IdentifierMBID:
		return rec.MBID
	case shared.IdentifierSpotifyID:
		return rec.SpotifyID
	}
	return ""
}

// matches reports whether rec carries key in the corresponding field.
func matches(rec *shared.CanonicalRecord, key shared.Identifier) bool {
	return key.Value != "" && keyValue(rec, key.Type) == key.Value
}
