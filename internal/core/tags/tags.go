package tags

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"trackcanon/internal/shared"
)

// Vorbis comment fields holding recording identifiers.
const (
	FieldISRC             = flacvorbis.FIELD_ISRC
	FieldMusicBrainzTrack = "MUSICBRAINZ_TRACKID"
	FieldSpotifyID        = "SPOTIFY_TRACKID"
)

// ErrUnsupportedFormat is returned for files that are not FLAC.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Tags are the identity related fields embedded in an audio file.
type Tags struct {
	Title  string
	Artist string
	ISRC   string
	MBID   string
}

// Supported reports whether path has a readable tag format.
func Supported(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".flac")
}

// Read extracts identity tags from a FLAC file's Vorbis comment block.
func Read(path string) (Tags, error) {
	if !Supported(path) {
		return Tags{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	f, err := parseFile(path, false)
	if err != nil {
		return Tags{}, err
	}

	var t Tags
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return Tags{}, fmt.Errorf("failed to parse vorbis comment: %w", err)
		}
		t.Title = first(cmt, flacvorbis.FIELD_TITLE)
		t.Artist = first(cmt, flacvorbis.FIELD_ARTIST)
		t.ISRC = first(cmt, FieldISRC)
		t.MBID = first(cmt, FieldMusicBrainzTrack)
		break
	}
	return t, nil
}

// WriteIdentifiers stores a record's non-empty identifiers in the file's
// Vorbis comments, replacing previous values of those fields and keeping
// every other comment. The file is replaced atomically.
func WriteIdentifiers(path string, rec *shared.CanonicalRecord) error {
	if !Supported(path) {
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
	f, err := parseFile(path, true)
	if err != nil {
		return err
	}

	// Fields the record has no value for keep whatever the file carries.
	replace := make(map[string]string, 3)
	for field, value := range map[string]string{
		FieldISRC:             rec.ISRC,
		FieldMusicBrainzTrack: rec.MBID,
		FieldSpotifyID:        rec.SpotifyID,
	} {
		if value != "" {
			replace[field] = value
		}
	}
	if len(replace) == 0 {
		return nil
	}

	comment := flacvorbis.New()
	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			kept = append(kept, block)
			continue
		}
		existing, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return fmt.Errorf("failed to parse vorbis comment: %w", err)
		}
		comment.Vendor = existing.Vendor
		for _, c := range existing.Comments {
			key, _, _ := strings.Cut(c, "=")
			if _, ok := replace[strings.ToUpper(key)]; ok {
				continue
			}
			comment.Comments = append(comment.Comments, c)
		}
	}
	for _, field := range []string{FieldISRC, FieldMusicBrainzTrack, FieldSpotifyID} {
		addField(comment, field, replace[field])
	}

	block := comment.Marshal()
	f.Meta = append(kept, &block)
	if err := save(path, f); err != nil {
		return fmt.Errorf("failed to save FLAC file with identifiers: %w", err)
	}
	return nil
}

// parseFile parses path, with its audio frames when withFrames is set.
// A go-flac panic on a truncated stream is returned as a parse error.
func parseFile(path string, withFrames bool) (f *flac.File, err error) {
	defer func() {
		if p := recover(); p != nil {
			f, err = nil, fmt.Errorf("failed to parse FLAC file: %v", p)
		}
	}()

	if withFrames {
		f, err = flac.ParseFile(path)
	} else {
		var in *os.File
		if in, err = os.Open(path); err != nil {
			return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
		}
		defer in.Close()
		f, err = flac.ParseMetadata(in)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC file: %w", err)
	}
	return f, nil
}

// save replaces path with the encoded file through a temp file and rename,
// keeping the original permissions.
func save(path string, f *flac.File) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tags-*.flac")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.Marshal()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// addField adds a field to vorbis comment only if value is not empty
func addField(comment *flacvorbis.MetaDataBlockVorbisComment, field, value string) {
	if value != "" {
		comment.Add(field, value) //nolint:errcheck
	}
}

func first(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	values, err := cmt.Get(field)
	if err != nil || len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// FLAC reads and writes identity tags on FLAC files.
type FLAC struct{}

// Read implements the tag reader used by the resolver.
func (FLAC) Read(path string) (Tags, error) { return Read(path) }

// WriteIdentifiers implements the tag writer used by the ingest runner.
func (FLAC) WriteIdentifiers(path string, rec *shared.CanonicalRecord) error {
	return WriteIdentifiers(path, rec)
}
