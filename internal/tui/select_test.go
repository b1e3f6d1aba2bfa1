package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/libris/internal/metadata"
)

func sampleResults() []metadata.SearchResult {
	return []metadata.SearchResult{
		{Title: "Emma", Authors: []string{"Jane Austen"}, Identifier: "9780141439587", Source: "OpenLibrary"},
		{Title: "Emma (annotated)", Source: "OpenLibrary"},
		{Title: "Emma", Authors: []string{"J. Austen"}, Identifier: "google:abc", Source: "Google Books", Publisher: "Penguin"},
	}
}

func stubProgram(t *testing.T, keys ...tea.KeyMsg) {
	t.Helper()

	original := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		for _, key := range keys {
			m, _ = m.Update(key)
		}
		return m, nil
	}
	t.Cleanup(func() { runProgram = original })
}

func TestSelectPicksHighlightedResult(t *testing.T) {
	stubProgram(t,
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	got, err := Select("emma", sampleResults())
	require.NoError(t, err)
	require.Equal(t, ActionSelected, got.Action)
	require.NotNil(t, got.Selection)
	require.Equal(t, "google:abc", got.Selection.Identifier)
}

func TestSelectSkipAndStop(t *testing.T) {
	stubProgram(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	got, err := Select("emma", sampleResults())
	require.NoError(t, err)
	require.Equal(t, ActionSkipped, got.Action)

	stubProgram(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	got, err = Select("emma", sampleResults())
	require.NoError(t, err)
	require.Equal(t, ActionStopped, got.Action)
	require.Nil(t, got.Selection)
}

func TestSelectWithoutIdentifiersSkips(t *testing.T) {
	called := false
	original := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		called = true
		return m, nil
	}
	t.Cleanup(func() { runProgram = original })

	got, err := Select("emma", []metadata.SearchResult{{Title: "Emma"}})
	require.NoError(t, err)
	require.Equal(t, ActionSkipped, got.Action)
	require.False(t, called)
}

func TestFormatMetadata(t *testing.T) {
	line := formatMetadata(metadata.SearchResult{Publisher: "Penguin", Language: []string{"en"}, Identifier: "9780141439587"}, 80)
	require.Equal(t, "Penguin | EN | 9780141439587", line)
	require.Equal(t, "No metadata available", formatMetadata(metadata.SearchResult{}, 80))
	require.Equal(t, "Peng...", truncate("Penguin Classics", 7))
}
