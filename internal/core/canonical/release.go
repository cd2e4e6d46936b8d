package canonical

import (
	"regexp"
	"time"

	"trackcanon/internal/shared"
)

var remixPattern = regexp.MustCompile(`(?i)\b(remix|mix|instrumental|edit|version|radio edit|dub)\b`)

// IsRemix reports whether a title names a derivative version of a recording.
func IsRemix(title string) bool {
	return remixPattern.MatchString(title)
}

var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// ChooseReleaseDate returns the earliest parseable release date as
// YYYY-MM-DD, or "" when no release is dated.
func ChooseReleaseDate(releases []shared.Release) string {
	var earliest time.Time
	for _, r := range releases {
		d, ok := parseReleaseDate(r.Date)
		if !ok {
			continue
		}
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if earliest.IsZero() {
		return ""
	}
	return earliest.Format("2006-01-02")
}

func parseReleaseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
