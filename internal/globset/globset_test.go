package globset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetMatchesAnyPattern(t *testing.T) {
	s, err := NewSet([]string{"*.html", "img/**/*.png"})
	require.NoError(t, err)

	require.True(t, s.Matches("index.html"))
	require.True(t, s.Matches("img/icons/a.png"))
	require.False(t, s.Matches("script.js"))
}

func TestSetFilter(t *testing.T) {
	s, err := NewSet([]string{"*.md"})
	require.NoError(t, err)

	got := s.Filter([]string{"a.md", "b.txt", "c.md"})
	require.Equal(t, []string{"a.md", "c.md"}, got)
}

func TestComplementExcludesOverrideIncludes(t *testing.T) {
	c, err := NewComplement([]string{"**"}, []string{"**/*.tmp", "node_modules/**"})
	require.NoError(t, err)

	require.True(t, c.Matches("src/main.go"))
	require.False(t, c.Matches("build/out.tmp"))
	require.False(t, c.Matches("node_modules/foo/index.js"))
}

func TestComplementEmptyExcludeNeverExcludes(t *testing.T) {
	c, err := NewComplement([]string{"*.go"}, nil)
	require.NoError(t, err)

	require.True(t, c.Matches("main.go"))
	require.False(t, c.Matches("main.py"))
}

func TestNewSetRejectsInvalidPattern(t *testing.T) {
	_, err := NewSet([]string{"["})
	require.Error(t, err)
}
