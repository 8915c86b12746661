package cachegc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func touchWithAtime(t *testing.T, path string, atime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	require.NoError(t, os.Chtimes(path, atime, atime))
}

func TestSweepDeletesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.bin")
	fresh := filepath.Join(dir, "fresh.bin")
	touchWithAtime(t, stale, time.Now().Add(-48*time.Hour))
	touchWithAtime(t, fresh, time.Now())

	s, err := New(dir, 24*time.Hour, nil, 0, nil, nil)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	require.NoError(t, err)
}

func TestSweepSkipsPreservedGlobs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "keep"), 0o755))
	preserved := filepath.Join(dir, "keep", "manifest.json")
	touchWithAtime(t, preserved, time.Now().Add(-48*time.Hour))

	s, err := New(dir, 24*time.Hour, []string{"keep/**"}, 0, nil, nil)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, err = os.Stat(preserved)
	require.NoError(t, err)
}

func TestSweepOnEmptyDirDeletesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, time.Hour, nil, 0, nil, nil)
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestNewRejectsInvalidPreserveGlob(t *testing.T) {
	_, err := New(t.TempDir(), time.Hour, []string{"["}, 0, nil, nil)
	require.Error(t, err)
}
