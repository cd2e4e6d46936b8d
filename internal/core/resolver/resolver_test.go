package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trackcanon/internal/api/acoustid"
	"trackcanon/internal/core/tags"
	"trackcanon/internal/shared"
)

type fakeSpotify struct {
	ev    *shared.SpotifyEvidence
	err   error
	calls int
	block bool
}

func (f *fakeSpotify) Search(ctx context.Context, artist, title string) (*shared.SpotifyEvidence, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		err := ctx.Err()
		return &shared.SpotifyEvidence{Reason: shared.ReasonFor(err), Error: err.Error()}, err
	}
	return f.ev, f.err
}

type fakeMB struct {
	isrc       *shared.MusicBrainzEvidence
	fuzzy      *shared.MusicBrainzEvidence
	isrcErr    error
	isrcCalls  []string
	fuzzyCalls int
}

func (f *fakeMB) LookupByISRC(_ context.Context, isrc string) (*shared.MusicBrainzEvidence, error) {
	f.isrcCalls = append(f.isrcCalls, isrc)
	if f.isrc == nil {
		return &shared.MusicBrainzEvidence{Reason: "no-mbid"}, f.isrcErr
	}
	return f.isrc, f.isrcErr
}

func (f *fakeMB) SearchRecording(context.Context, string, string) (*shared.MusicBrainzEvidence, error) {
	f.fuzzyCalls++
	if f.fuzzy == nil {
		return &shared.MusicBrainzEvidence{Reason: shared.ReasonNoMatch}, nil
	}
	return f.fuzzy, nil
}

type fakeFingerprint struct {
	fp    shared.Fingerprint
	calls int
}

func (f *fakeFingerprint) Compute(context.Context, string) shared.Fingerprint {
	f.calls++
	return f.fp
}

func (f *fakeFingerprint) Available(context.Context) (string, error) { return "fpcalc 1.5", nil }

type fakeAcoustID struct {
	ev *shared.AcoustIDEvidence
}

func (f *fakeAcoustID) Lookup(context.Context, string, float64) (*shared.AcoustIDEvidence, error) {
	return f.ev, nil
}

type fakeTags struct {
	t   tags.Tags
	err error
}

func (f fakeTags) Read(string) (tags.Tags, error) { return f.t, f.err }

func hasNote(res *shared.Resolution, stage, outcome, detail string) bool {
	for _, n := range res.Notes {
		if n.Stage == stage && n.Outcome == outcome && n.Detail == detail {
			return true
		}
	}
	return false
}

func hasStage(res *shared.Resolution, stage string) bool {
	for _, n := range res.Notes {
		if n.Stage == stage {
			return true
		}
	}
	return false
}

func audioFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(p, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProvidedMBIDShortCircuitsButSpotifyRuns(t *testing.T) {
	sp := &fakeSpotify{ev: &shared.SpotifyEvidence{Found: true, SpotifyID: "sp1", ISRC: "ISRC1"}}
	mb := &fakeMB{}
	r := New(Deps{Spotify: sp, MusicBrainz: mb}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", MBID: "mbid-1"})

	if sp.calls != 1 {
		t.Fatalf("spotify should run once, ran %d times", sp.calls)
	}
	if len(mb.isrcCalls) != 0 || mb.fuzzyCalls != 0 {
		t.Fatalf("mbid stages ran: isrc=%v fuzzy=%d", mb.isrcCalls, mb.fuzzyCalls)
	}
	if res.MusicBrainz == nil || res.MusicBrainz.Source != shared.SourceProvided || res.MusicBrainz.MBID != "mbid-1" {
		t.Fatalf("unexpected musicbrainz evidence %+v", res.MusicBrainz)
	}
	if hasStage(res, shared.StageFuzzy) {
		t.Error("fuzzy stage should not be noted")
	}
	if !hasNote(res, shared.StageProvided, shared.OutcomeMatch, shared.SourceProvided) {
		t.Errorf("missing provided note: %v", res.Notes)
	}
}

func TestSpotifyISRCFeedsMusicBrainz(t *testing.T) {
	sp := &fakeSpotify{ev: &shared.SpotifyEvidence{Found: true, ISRC: "USX1"}}
	mb := &fakeMB{isrc: &shared.MusicBrainzEvidence{Found: true, MBID: "m1", Source: shared.SourceISRC}}
	r := New(Deps{Spotify: sp, MusicBrainz: mb}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", ISRC: "ROW1"})

	if len(mb.isrcCalls) != 1 || mb.isrcCalls[0] != "USX1" {
		t.Fatalf("expected lookup of spotify isrc, got %v", mb.isrcCalls)
	}
	if mb.fuzzyCalls != 0 {
		t.Error("fuzzy search ran after isrc match")
	}
	if !hasNote(res, shared.StageISRC, shared.OutcomeMatch, "") {
		t.Errorf("notes: %v", res.Notes)
	}
}

func TestNoSpotifyCredsUsesRowISRC(t *testing.T) {
	mb := &fakeMB{isrc: &shared.MusicBrainzEvidence{Found: true, MBID: "m1", Source: shared.SourceISRC}}
	r := New(Deps{MusicBrainz: mb}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", ISRC: "ROW1"})

	if !hasNote(res, shared.StageSpotify, shared.OutcomeSkipped, DetailNoSpotifyCreds) {
		t.Errorf("missing no-spotify-creds note: %v", res.Notes)
	}
	if len(mb.isrcCalls) != 1 || mb.isrcCalls[0] != "ROW1" {
		t.Fatalf("expected row isrc lookup, got %v", mb.isrcCalls)
	}
	if !hasNote(res, shared.StageISRC, shared.OutcomeMatch, DetailRowISRC) {
		t.Errorf("missing row-isrc note: %v", res.Notes)
	}
}

func TestFallsBackToFuzzy(t *testing.T) {
	sp := &fakeSpotify{ev: &shared.SpotifyEvidence{Found: false, Reason: shared.ReasonNoMatch}}
	mb := &fakeMB{fuzzy: &shared.MusicBrainzEvidence{Found: true, MBID: "fz", Source: shared.SourceFuzzy}}
	r := New(Deps{Spotify: sp, MusicBrainz: mb}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T"})

	if !hasNote(res, shared.StageISRC, shared.OutcomeSkipped, DetailNoISRC) {
		t.Errorf("missing no-isrc note: %v", res.Notes)
	}
	if mb.fuzzyCalls != 1 || res.MusicBrainz.MBID != "fz" {
		t.Fatalf("fuzzy not used: %+v", res.MusicBrainz)
	}
	if hasStage(res, shared.StageFingerprint) {
		t.Error("fingerprint stage ran after fuzzy match")
	}
}

func TestNoAudioFileNoted(t *testing.T) {
	r := New(Deps{MusicBrainz: &fakeMB{}}, time.Second, nil)
	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T"})
	if !hasNote(res, shared.StageFingerprint, shared.OutcomeSkipped, DetailNoAudioFile) {
		t.Errorf("missing no-audio-file note: %v", res.Notes)
	}
	if res.HasMBID() {
		t.Error("unexpected mbid")
	}
}

func TestAcoustIDFallback(t *testing.T) {
	fp := &fakeFingerprint{fp: shared.Fingerprint{Fingerprint: "AQAA", Duration: 201}}
	ac := &fakeAcoustID{ev: &shared.AcoustIDEvidence{Found: true, MBIDs: []string{"ac-1", "ac-2"}, Confidence: 0.93}}
	r := New(Deps{MusicBrainz: &fakeMB{}, Fingerprint: fp, AcoustID: ac}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: audioFile(t)})

	if res.MusicBrainz == nil || res.MusicBrainz.MBID != "ac-1" || res.MusicBrainz.Source != shared.SourceAcoustID {
		t.Fatalf("expected first acoustid mbid, got %+v", res.MusicBrainz)
	}
	if res.MusicBrainz.Confidence != 0.93 || res.AcoustID == nil {
		t.Errorf("acoustid evidence not kept: %+v", res)
	}
}

func TestAcoustIDWithoutKeyIsSkipped(t *testing.T) {
	fp := &fakeFingerprint{fp: shared.Fingerprint{Fingerprint: "AQAA", Duration: 201}}
	ac := &fakeAcoustID{ev: &shared.AcoustIDEvidence{Found: false, Reason: acoustid.ReasonNoAPIKey}}
	r := New(Deps{MusicBrainz: &fakeMB{}, Fingerprint: fp, AcoustID: ac}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: audioFile(t)})
	if !hasNote(res, shared.StageAcoustID, shared.OutcomeSkipped, acoustid.ReasonNoAPIKey) {
		t.Errorf("notes: %v", res.Notes)
	}
}

func TestFingerprintErrorNoted(t *testing.T) {
	fp := &fakeFingerprint{fp: shared.Fingerprint{Error: "fpcalc: executable not found"}}
	r := New(Deps{MusicBrainz: &fakeMB{}, Fingerprint: fp, AcoustID: &fakeAcoustID{}}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: audioFile(t)})
	if !hasNote(res, shared.StageFingerprint, shared.OutcomeError, "fpcalc: executable not found") {
		t.Errorf("notes: %v", res.Notes)
	}
	if hasStage(res, shared.StageAcoustID) {
		t.Error("acoustid ran without a fingerprint")
	}
}

func TestMissingAudioFileNoted(t *testing.T) {
	fp := &fakeFingerprint{}
	r := New(Deps{MusicBrainz: &fakeMB{}, Fingerprint: fp, AcoustID: &fakeAcoustID{}}, time.Second, nil)
	res := r.Resolve(context.Background(), shared.RawRow{AudioFile: "/does/not/exist.flac"})
	if !hasNote(res, shared.StageFingerprint, shared.OutcomeSkipped, DetailAudioFileMissing) || fp.calls != 0 {
		t.Errorf("notes: %v calls: %d", res.Notes, fp.calls)
	}
}

func TestProviderErrorDoesNotStopRow(t *testing.T) {
	httpErr := &shared.HTTPError{StatusCode: 503, Status: "Service Unavailable"}
	sp := &fakeSpotify{
		ev:  &shared.SpotifyEvidence{Reason: shared.ReasonFor(httpErr), Error: httpErr.Error()},
		err: httpErr,
	}
	mb := &fakeMB{fuzzy: &shared.MusicBrainzEvidence{Found: true, MBID: "fz", Source: shared.SourceFuzzy}}
	r := New(Deps{Spotify: sp, MusicBrainz: mb}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T"})
	if !hasNote(res, shared.StageSpotify, shared.OutcomeError, "http-503") {
		t.Errorf("notes: %v", res.Notes)
	}
	if !res.HasMBID() {
		t.Error("cascade stopped after provider error")
	}
}

func TestProviderCallsHaveDeadline(t *testing.T) {
	sp := &fakeSpotify{block: true}
	r := New(Deps{Spotify: sp, MusicBrainz: &fakeMB{}}, 20*time.Millisecond, nil)

	start := time.Now()
	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T"})
	if time.Since(start) > 2*time.Second {
		t.Fatal("provider call was not bounded")
	}
	if !hasNote(res, shared.StageSpotify, shared.OutcomeError, shared.ReasonFor(context.DeadlineExceeded)) {
		t.Errorf("notes: %v", res.Notes)
	}
}

func TestFileTagsSeedIdentifiers(t *testing.T) {
	mb := &fakeMB{}
	reader := fakeTags{t: tags.Tags{MBID: "tag-mbid", ISRC: "TAGISRC"}}
	r := New(Deps{MusicBrainz: mb, Tags: reader}, time.Second, nil)

	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: audioFile(t)})
	if res.MusicBrainz == nil || res.MusicBrainz.Source != shared.SourceFileTags || res.MusicBrainz.MBID != "tag-mbid" {
		t.Fatalf("unexpected evidence %+v", res.MusicBrainz)
	}
	if res.Row.ISRC != "TAGISRC" {
		t.Errorf("isrc not filled from tags: %+v", res.Row)
	}
	if !hasNote(res, shared.StageTags, shared.OutcomeMatch, "isrc,mbid") {
		t.Errorf("notes: %v", res.Notes)
	}
}

func TestUnsupportedTagFormatIsSkipped(t *testing.T) {
	reader := fakeTags{err: tags.ErrUnsupportedFormat}
	r := New(Deps{MusicBrainz: &fakeMB{}, Tags: reader}, time.Second, nil)
	res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: audioFile(t)})
	if !hasNote(res, shared.StageTags, shared.OutcomeSkipped, DetailUnsupportedFormat) {
		t.Errorf("notes: %v", res.Notes)
	}
}

func TestTagReadErrorNoted(t *testing.T) {
	reader := fakeTags{err: errors.New("corrupt")}
	r := New(Deps{MusicBrainz: &fakeMB{}, Tags: reader}, time.Second, nil)
	res := r.Resolve(context.Background(), shared.RawRow{AudioFile: audioFile(t)})
	if !hasNote(res, shared.StageTags, shared.OutcomeError, "corrupt") {
		t.Errorf("notes: %v", res.Notes)
	}
}

func TestTruncatedFLACDoesNotStopTheRow(t *testing.T) {
	dir := t.TempDir()
	streamInfo := append([]byte{0x80, 0x00, 0x00, 0x22}, make([]byte, 34)...)
	files := map[string][]byte{
		"metadata-only.flac": append([]byte("fLaC"), streamInfo...),
		"cut-header.flac":    append([]byte("fLaC"), 0x80, 0x00),
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, content, 0o644); err != nil {
				t.Fatal(err)
			}
			mb := &fakeMB{}
			r := New(Deps{MusicBrainz: mb, Tags: tags.FLAC{}}, time.Second, nil)

			res := r.Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: path})
			if !hasStage(res, shared.StageTags) {
				t.Errorf("expected a tags note, got %v", res.Notes)
			}
			if mb.fuzzyCalls != 1 {
				t.Errorf("cascade should continue to fuzzy search, got %d calls", mb.fuzzyCalls)
			}
		})
	}

	res := New(Deps{MusicBrainz: &fakeMB{}, Tags: tags.FLAC{}}, time.Second, nil).
		Resolve(context.Background(), shared.RawRow{Artist: "A", Title: "T", AudioFile: filepath.Join(dir, "cut-header.flac")})
	for _, n := range res.Notes {
		if n.Stage == shared.StageTags && n.Outcome != shared.OutcomeError {
			t.Errorf("a cut header is a tags error, got %v", n)
		}
	}
}
