package branchdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/manifest"
)

type fakeSource struct {
	files map[string][]byte
}

func (f *fakeSource) ReadFileAt(repoPath, branch, path string) ([]byte, string, error) {
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

func TestRescanDiscoversReposAndDefaultsManifest(t *testing.T) {
	root := t.TempDir()
	repoPath := mkRepoDir(t, root, "acme", "docs")

	src := &fakeSource{files: map[string][]byte{}}
	mc, err := manifest.NewCache(src, 16)
	require.NoError(t, err)

	db := New(root, mc, nil)
	require.NoError(t, db.Rescan())

	require.True(t, db.IsAccountName("acme"))
	require.True(t, db.IsRepoName("acme", "docs"))
	require.False(t, db.IsRepoName("acme", "missing"))

	branch, ok := db.GetDefaultPublicBranch("acme", "docs")
	require.True(t, ok)
	require.Equal(t, "public", branch)

	repo, ok := db.Get("acme", "docs")
	require.True(t, ok)
	require.Equal(t, repoPath, repo.RepoPath)
}

func TestRescanResolvesBuildableFromProfileReference(t *testing.T) {
	root := t.TempDir()
	repoPath := mkRepoDir(t, root, "acme", "site")

	src := &fakeSource{files: map[string][]byte{
		repoPath + "\x00master\x00locomote.json": []byte(`{
			"public": ["public", "staging"],
			"build": {"profile": "ci-default"}
		}`),
	}}
	mc, err := manifest.NewCache(src, 16)
	require.NoError(t, err)

	profiles := func(id string) (*core.BuildProfile, bool) {
		if id != "ci-default" {
			return nil, false
		}
		return &core.BuildProfile{ID: id, Buildable: []string{"public", "staging"}}, true
	}

	db := New(root, mc, profiles)
	require.NoError(t, db.Rescan())

	require.True(t, db.IsPublicBranch("acme", "site", "staging"))
	require.True(t, db.IsBuildableBranch("acme", "site", "staging"))
	require.False(t, db.IsBuildableBranch("acme", "site", "main"))

	public := db.ListPublic()
	require.Len(t, public, 2)
	buildable := db.ListBuildable()
	require.Len(t, buildable, 2)
}

func TestUpdateBranchInfoEvictsAndReloads(t *testing.T) {
	root := t.TempDir()
	repoPath := mkRepoDir(t, root, "acme", "docs")
	manifestKey := repoPath + "\x00master\x00locomote.json"

	src := &fakeSource{files: map[string][]byte{
		manifestKey: []byte(`{"public": ["public"]}`),
	}}
	mc, err := manifest.NewCache(src, 16)
	require.NoError(t, err)

	db := New(root, mc, nil)
	require.NoError(t, db.Rescan())
	require.False(t, db.IsPublicBranch("acme", "docs", "beta"))

	src.files[manifestKey] = []byte(`{"public": ["public", "beta"]}`)
	require.NoError(t, db.UpdateBranchInfo("acme", "docs"))

	require.True(t, db.IsPublicBranch("acme", "docs", "beta"))
}

func TestUpdateBranchInfoUnknownRepo(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{files: map[string][]byte{}}
	mc, err := manifest.NewCache(src, 16)
	require.NoError(t, err)

	db := New(root, mc, nil)
	require.NoError(t, db.Rescan())

	err = db.UpdateBranchInfo("acme", "ghost")
	require.Error(t, err)
}
