package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/events"
	"github.com/sevigo/locomote-server/internal/manifest"
)

type fakeManifestSource struct {
	doc map[string]any
}

func (s *fakeManifestSource) ReadFileAt(_, _, _ string) ([]byte, string, error) {
	b, _ := json.Marshal(s.doc)
	return b, "c1", nil
}

type fakeBranches struct {
	repo       *core.Repo
	buildable  bool
	reloadCall int
}

func (f *fakeBranches) UpdateBranchInfo(_, _ string) error { f.reloadCall++; return nil }
func (f *fakeBranches) Get(_, _ string) (*core.Repo, bool) { return f.repo, f.repo != nil }
func (f *fakeBranches) IsBuildableBranch(_, _, _ string) bool { return f.buildable }

type fakeVCR struct {
	commit string
}

func (v *fakeVCR) HeadCommit(_, _ string) (*core.CommitInfo, bool, error) {
	return &core.CommitInfo{ID: v.commit}, true, nil
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE builds (
		account TEXT NOT NULL, repo TEXT NOT NULL, branch TEXT NOT NULL,
		commit_sha TEXT NOT NULL, built_at INTEGER NOT NULL,
		PRIMARY KEY (account, repo, branch)
	)`)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newBuilder(t *testing.T, buildable bool, commit string) (*Builder, *fakeBranches, string) {
	t.Helper()
	dir := t.TempDir()
	src := &fakeManifestSource{doc: map[string]any{
		"build": map[string]any{"profile": map[string]any{
			"command":   []string{"echo", "built"},
			"buildable": []string{"main"},
		}},
	}}
	mc, err := manifest.NewCache(src, 8)
	require.NoError(t, err)

	branches := &fakeBranches{
		repo:      &core.Repo{Account: "acme", Repo: "site", RepoPath: dir, Buildable: []string{"main"}},
		buildable: buildable,
	}
	store := newTestDB(t)
	b := New(core.Layout{WorkspaceHome: dir}, &fakeVCR{commit: commit}, mc, branches, nil, store, events.NewBus(), nil)
	return b, branches, dir
}

func TestBuilderRunsCommandAndRecordsCompletion(t *testing.T) {
	b, branches, _ := newBuilder(t, true, "deadbeef")
	err := b.Dispatch(context.Background(), core.BuildRequest{Account: "acme", Repo: "site", Branch: "main"})
	require.NoError(t, err)
	require.Equal(t, 1, branches.reloadCall)

	last, ok, err := b.lastBuiltCommit("acme", "site", "main")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "deadbeef", last)
}

func TestBuilderSkipsWhenAlreadyAtHeadCommit(t *testing.T) {
	b, _, _ := newBuilder(t, true, "deadbeef")
	require.NoError(t, b.Dispatch(context.Background(), core.BuildRequest{Account: "acme", Repo: "site", Branch: "main"}))

	logPath := b.layout.BuildLogPath("acme")
	require.NoError(t, os.Remove(logPath))

	require.NoError(t, b.Dispatch(context.Background(), core.BuildRequest{Account: "acme", Repo: "site", Branch: "main"}))
	_, err := os.Stat(logPath)
	require.True(t, os.IsNotExist(err), "second dispatch at the same commit must not re-invoke the build tool")
}

func TestBuilderStopsWhenBranchNotBuildable(t *testing.T) {
	b, _, dir := newBuilder(t, false, "deadbeef")
	err := b.Dispatch(context.Background(), core.BuildRequest{Account: "acme", Repo: "site", Branch: "main"})
	require.NoError(t, err)

	_, ok, err := b.lastBuiltCommit("acme", "site", "main")
	require.NoError(t, err)
	require.False(t, ok)

	_, statErr := os.Stat(filepath.Join(dir, "acme", "build.log"))
	require.True(t, os.IsNotExist(statErr))
}

func TestBuilderRecoverDispatchesEveryBuildableBranch(t *testing.T) {
	b, _, _ := newBuilder(t, true, "deadbeef")
	errs := b.Recover(context.Background(), stubLister{refs: []branchdb.BranchRef{
		{Account: "acme", Repo: "site", Branch: "main"},
	}})
	require.Empty(t, errs)

	_, ok, err := b.lastBuiltCommit("acme", "site", "main")
	require.NoError(t, err)
	require.True(t, ok)
}

type stubLister struct{ refs []branchdb.BranchRef }

func (s stubLister) ListBuildable() []branchdb.BranchRef { return s.refs }
