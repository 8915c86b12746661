package handler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/manifest"
)

type fakeManifestSource struct {
	files map[string][]byte
}

func (f *fakeManifestSource) ReadFileAt(repoPath, branch, path string) ([]byte, string, error) {
	raw, ok := f.files[repoPath+"\x00"+branch+"\x00"+path]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return raw, "c0ffee", nil
}

func mkRepoDir(t *testing.T, root, account, repo string) string {
	t.Helper()
	dir := filepath.Join(root, account, repo+".git")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func newTestBranchDB(t *testing.T) (*branchdb.BranchDB, string) {
	t.Helper()
	root := t.TempDir()
	repoPath := mkRepoDir(t, root, "acme", "docs")
	manifestKey := repoPath + "\x00master\x00locomote.json"

	src := &fakeManifestSource{files: map[string][]byte{
		manifestKey: []byte(`{"public": ["public", "staging"]}`),
	}}
	mc, err := manifest.NewCache(src, 16)
	require.NoError(t, err)

	db := branchdb.New(root, mc, nil)
	require.NoError(t, db.Rescan())
	return db, repoPath
}

func TestAddressResolverFullySpecified(t *testing.T) {
	db, repoPath := newTestBranchDB(t)
	r := &addressResolver{db: db}

	res, err := r.resolve(splitPath("/acme/docs/staging/some/file.txt"))
	require.NoError(t, err)
	require.Equal(t, "acme", res.Account)
	require.Equal(t, "docs", res.Repo)
	require.Equal(t, "staging", res.Branch)
	require.Equal(t, repoPath, res.RepoPath)
	require.Equal(t, "/acme/docs/staging", res.BasePath)
	require.Equal(t, []string{"some", "file.txt"}, res.Rest)
}

func TestAddressResolverDefaultsBranch(t *testing.T) {
	db, _ := newTestBranchDB(t)
	r := &addressResolver{db: db}

	res, err := r.resolve(splitPath("/acme/docs/index.html"))
	require.NoError(t, err)
	require.Equal(t, "public", res.Branch)
	require.Equal(t, []string{"index.html"}, res.Rest)
}

func TestAddressResolverAtAccountUsesDefaultRepo(t *testing.T) {
	db, _ := newTestBranchDB(t)
	r := &addressResolver{db: db}

	res, err := r.resolve(splitPath("/@acme/readme.md"))
	require.NoError(t, err)
	require.Equal(t, "docs", res.Repo)
	require.Equal(t, "public", res.Branch)
	require.Equal(t, []string{"readme.md"}, res.Rest)
}

func TestAddressResolverUnknownAccount(t *testing.T) {
	db, _ := newTestBranchDB(t)
	r := &addressResolver{db: db}

	_, err := r.resolve(splitPath("/ghost/file.txt"))
	require.Error(t, err)
}

func TestSplitPath(t *testing.T) {
	require.Nil(t, splitPath("/"))
	require.Nil(t, splitPath(""))
	require.Equal(t, []string{"a", "b"}, splitPath("/a/b/"))
}
