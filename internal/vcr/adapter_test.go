package vcr

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// initRepo creates a non-bare repo (the adapter only reads objects and
// refs, so go-git treats it identically to a bare one for these ops)
// with two commits: the first adds a.txt and old.txt, the second
// modifies a.txt and renames old.txt to new.txt.
func initRepo(t *testing.T) (repoPath string, first, second string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(1700000000, 0)}

	write("a.txt", "hello")
	write("old.txt", "same content")
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	_, err = wt.Add("old.txt")
	require.NoError(t, err)
	h1, err := wt.Commit("first", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	write("a.txt", "hello world")
	require.NoError(t, os.Remove(filepath.Join(dir, "old.txt")))
	write("new.txt", "same content")
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	_, err = wt.Add("old.txt")
	require.NoError(t, err)
	_, err = wt.Add("new.txt")
	require.NoError(t, err)
	h2, err := wt.Commit("second", &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)

	return dir, h1.String(), h2.String()
}

func TestHeadCommitAndIsValidCommit(t *testing.T) {
	dir, _, h2 := initRepo(t)
	a := NewAdapter()

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	branch := head.Name().Short()

	info, ok, err := a.HeadCommit(dir, branch)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, h2, info.ID)

	_, ok, err = a.HeadCommit(dir, "no-such-branch")
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, a.IsValidCommit(dir, h2))
	require.False(t, a.IsValidCommit(dir, strings.Repeat("0", 40)))
}

func TestListTrackedFilesAtCommit(t *testing.T) {
	dir, h1, _ := initRepo(t)
	a := NewAdapter()

	var buf bytes.Buffer
	require.NoError(t, a.ListTrackedFiles(dir, h1, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.ElementsMatch(t, []string{"a.txt", "old.txt"}, lines)
}

func TestListChangesDetectsModifyAndRename(t *testing.T) {
	dir, h1, h2 := initRepo(t)
	a := NewAdapter()

	var buf bytes.Buffer
	require.NoError(t, a.ListChanges(dir, h2, h1, &buf))
	out := buf.String()
	require.Contains(t, out, "M\ta.txt")
	require.Contains(t, out, "R100\told.txt\tnew.txt")
}

func TestListChangesOrdersOutputDeterministically(t *testing.T) {
	dir, h1, _ := initRepo(t)
	a := NewAdapter()

	var prev string
	for i := 0; i < 5; i++ {
		var buf bytes.Buffer
		require.NoError(t, a.ListChanges(dir, h1, "", &buf))
		out := buf.String()
		require.Equal(t, []string{"A\ta.txt", "A\told.txt"}, strings.Split(strings.TrimSpace(out), "\n"))
		if i > 0 {
			require.Equal(t, prev, out, "ListChanges output must be byte-identical across repeated runs")
		}
		prev = out
	}
}

func TestPipeFileAtCommit(t *testing.T) {
	dir, h1, _ := initRepo(t)
	a := NewAdapter()

	var buf bytes.Buffer
	require.NoError(t, a.PipeFileAtCommit(dir, h1, "a.txt", &buf))
	require.Equal(t, "hello", buf.String())
}

func TestZipFilesAtCommit(t *testing.T) {
	dir, h1, _ := initRepo(t)
	a := NewAdapter()

	var buf bytes.Buffer
	require.NoError(t, a.ZipFilesAtCommit(dir, h1, []string{"a.txt", "old.txt"}, &buf))
	require.Greater(t, buf.Len(), 0)
}
