package metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeList(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "scalar", input: "eng", want: []string{"eng"}},
		{name: "strings", input: []any{"Jane Austen", "", nil}, want: []string{"Jane Austen"}},
		{
			name:  "drops key references",
			input: []any{map[string]any{"key": "/authors/OL21594A"}, "Jane Austen"},
			want:  []string{"Jane Austen"},
		},
		{
			name:  "keeps named objects",
			input: []any{map[string]any{"name": "Charlotte Brontë", "url": "x"}},
			want:  []string{"Charlotte Brontë"},
		},
		{name: "only references", input: []any{map[string]any{"key": "/a"}}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeList(tt.input))
		})
	}
}

func TestNormalizeDescription(t *testing.T) {
	require.Equal(t, "", NormalizeDescription(nil))
	require.Equal(t, "plain", NormalizeDescription("plain"))
	require.Equal(t, "wrapped", NormalizeDescription(map[string]any{"type": "/type/text", "value": "wrapped"}))
	require.Equal(t, "", NormalizeDescription(map[string]any{"value": nil}))
}

func TestSeriesExtraction(t *testing.T) {
	require.Equal(t, "Discworld", ExtractSeries([]any{"", "Discworld", "Other"}))
	require.Equal(t, "Foundation", ExtractSeries(" Foundation "))
	require.Equal(t, "", ExtractSeries(42))

	subjects := []any{"Fiction", "SERIES: Mistborn ", "series:"}
	require.Equal(t, "Mistborn", SeriesFromSubjects(subjects))
	require.Equal(t, "", SeriesFromSubjects([]any{"series:"}))

	require.Equal(t, "The Expanse Series", SeriesFromSubtitle(" The Expanse Series"))
	require.Equal(t, "", SeriesFromSubtitle("A Novel"))
}

func TestNormalizeLanguages(t *testing.T) {
	got := NormalizeLanguages([]string{"/languages/eng", "en", "fra", "Klingon-ish"})
	require.Equal(t, []string{"en", "fr", "klingon-ish"}, got)
}

func TestDetectSearchMode(t *testing.T) {
	require.Equal(t, ModeISBN, DetectSearchMode("978-0-14-143951-8"))
	require.Equal(t, ModeISBN, DetectSearchMode("0141439513"))
	require.Equal(t, ModeTitle, DetectSearchMode("Pride and Prejudice"))
	require.Equal(t, ModeTitle, DetectSearchMode("12345"))
	require.Equal(t, ModeTitle, DetectSearchMode("014143951X"))
}

func TestParseSearchMode(t *testing.T) {
	mode, err := ParseSearchMode("")
	require.NoError(t, err)
	require.Equal(t, ModeAuto, mode)

	mode, err = ParseSearchMode("ISBN")
	require.NoError(t, err)
	require.Equal(t, ModeISBN, mode)

	_, err = ParseSearchMode("author")
	require.Error(t, err)
}

func TestSourceKey(t *testing.T) {
	prefix, key, ok := SourceKey("google:vol123")
	require.True(t, ok)
	require.Equal(t, GoogleVolumePrefix, prefix)
	require.Equal(t, "vol123", key)

	prefix, key, ok = SourceKey(" openlibrary:/works/OL66554W ")
	require.True(t, ok)
	require.Equal(t, OpenLibraryWorkPrefix, prefix)
	require.Equal(t, "/works/OL66554W", key)

	for _, id := range []string{"9780141439518", "978-0-14-143951-8", "google:", "isbn:123"} {
		_, _, ok := SourceKey(id)
		require.False(t, ok, id)
	}
}
