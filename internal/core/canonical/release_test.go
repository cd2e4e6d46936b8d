package canonical

import (
	"testing"

	"trackcanon/internal/shared"
)

func TestChooseReleaseDate(t *testing.T) {
	tests := []struct {
		name     string
		releases []shared.Release
		want     string
	}{
		{"earliest wins", []shared.Release{{ID: "r1", Date: "2020-02-01"}, {ID: "r2", Date: "2019-01-01"}}, "2019-01-01"},
		{"partial dates", []shared.Release{{Date: "1999-05"}, {Date: "2001"}}, "1999-05-01"},
		{"year only", []shared.Release{{Date: "1968"}}, "1968-01-01"},
		{"undated ignored", []shared.Release{{ID: "x"}, {Date: "garbage"}, {Date: "2010-10-10"}}, "2010-10-10"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseReleaseDate(tt.releases); got != tt.want {
				t.Errorf("ChooseReleaseDate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRemix(t *testing.T) {
	tests := map[string]bool{
		"Song (Remix)":                   true,
		"Song - Radio Edit":              true,
		"Song (Instrumental)":            true,
		"Song (Extended Mix)":            true,
		"Original Song":                  false,
		"Dublin Skyline":                 false,
		"":                               false,
		"Song (2011 Remastered Version)": true,
	}
	for title, want := range tests {
		if got := IsRemix(title); got != want {
			t.Errorf("IsRemix(%q) = %v, want %v", title, got, want)
		}
	}
}
