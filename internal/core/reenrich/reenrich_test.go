package reenrich

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"trackcanon/internal/shared"
	"trackcanon/internal/store"
)

type fakeMB struct {
	byISRC map[string]*shared.MusicBrainzEvidence
	errs   map[string]error
	calls  []string
}

func (f *fakeMB) LookupByISRC(_ context.Context, isrc string) (*shared.MusicBrainzEvidence, error) {
	f.calls = append(f.calls, isrc)
	if err := f.errs[isrc]; err != nil {
		return &shared.MusicBrainzEvidence{Reason: shared.ReasonFor(err), Error: err.Error()}, err
	}
	if ev, ok := f.byISRC[isrc]; ok {
		return ev, nil
	}
	return &shared.MusicBrainzEvidence{Reason: "no-mbid"}, nil
}

func (f *fakeMB) SearchRecording(context.Context, string, string) (*shared.MusicBrainzEvidence, error) {
	return &shared.MusicBrainzEvidence{}, nil
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	js, err := store.OpenJSON(filepath.Join(t.TempDir(), "staging-db.json"))
	if err != nil {
		t.Fatal(err)
	}
	s := store.New(js)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *store.Store, recs ...*shared.CanonicalRecord) {
	t.Helper()
	for _, r := range recs {
		if _, err := s.Upsert(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunBackfillsMBIDWithoutRescoring(t *testing.T) {
	s := openStore(t)
	queued := &shared.CanonicalRecord{
		Title:        "Needs MBID",
		ISRC:         "ISRC1",
		Identifiers:  []shared.Identifier{{Type: shared.IdentifierISRC, Value: "ISRC1"}},
		Canonicality: shared.Canonicality{Score: 0.55},
		Queue:        true,
	}
	done := &shared.CanonicalRecord{Title: "Has MBID", ISRC: "ISRC2", MBID: "m2"}
	noKey := &shared.CanonicalRecord{Title: "No ISRC", SpotifyID: "sp3"}
	seed(t, s, queued, done, noKey)

	mb := &fakeMB{byISRC: map[string]*shared.MusicBrainzEvidence{
		"ISRC1": {
			Found:    true,
			MBID:     "m1",
			Releases: []shared.Release{{ID: "r1", Date: "1999-05"}},
			Raw:      []byte(`{"id":"m1"}`),
		},
	}}
	res, err := New(mb, s, time.Second, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Scanned != 3 || res.Eligible != 1 || res.Enriched != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(mb.calls) != 1 || mb.calls[0] != "ISRC1" {
		t.Fatalf("unexpected lookups %v", mb.calls)
	}

	got, err := s.Backend().Get(context.Background(), shared.Identifier{Type: shared.IdentifierISRC, Value: "ISRC1"})
	if err != nil {
		t.Fatal(err)
	}
	if got.MBID != "m1" || len(got.Releases) != 1 || got.ReleaseDate != "1999-05-01" {
		t.Errorf("record not enriched: %+v", got)
	}
	if string(got.Raw.MusicBrainz) != `{"id":"m1"}` {
		t.Errorf("raw payload not stored: %s", got.Raw.MusicBrainz)
	}
	if got.Canonicality.Score != 0.55 || !got.Queue || got.Accept {
		t.Errorf("score or tier changed: %+v", got.Canonicality)
	}
	if len(got.Identifiers) != 2 {
		t.Errorf("mbid identifier not added: %v", got.Identifiers)
	}
}

func TestRunRecordsFailuresAndContinues(t *testing.T) {
	s := openStore(t)
	seed(t, s,
		&shared.CanonicalRecord{Title: "Broken", ISRC: "BAD"},
		&shared.CanonicalRecord{Title: "Fine", ISRC: "GOOD"},
	)
	mb := &fakeMB{
		errs:   map[string]error{"BAD": errors.New("connection reset")},
		byISRC: map[string]*shared.MusicBrainzEvidence{"GOOD": {Found: true, MBID: "g1"}},
	}

	res, err := New(mb, s, time.Second, nil).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Enriched != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	bad, _ := s.Backend().Get(context.Background(), shared.Identifier{Type: shared.IdentifierISRC, Value: "BAD"})
	if bad.ReEnrichError != "connection reset" || bad.MBID != "" {
		t.Errorf("failure not recorded: %+v", bad)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := openStore(t)
	seed(t, s, &shared.CanonicalRecord{Title: "X", ISRC: "I1"})
	mb := &fakeMB{byISRC: map[string]*shared.MusicBrainzEvidence{"I1": {Found: true, MBID: "m"}}}
	e := New(mb, s, time.Second, nil)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Eligible != 0 || len(mb.calls) != 1 {
		t.Fatalf("second sweep should be a no-op: %+v calls=%v", res, mb.calls)
	}
}
