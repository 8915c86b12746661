package filedb

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/fileset"
)

type fakeVCR struct {
	head    *core.CommitInfo
	tracked []string
	changes []string
	content map[string]string // path@commit -> content
	valid   map[string]bool
}

func (f *fakeVCR) HeadCommit(_, _ string) (*core.CommitInfo, bool, error) {
	return f.head, f.head != nil, nil
}

func (f *fakeVCR) LastCommitForFile(_, _, path string) (*core.CommitInfo, error) {
	return f.head, nil
}

func (f *fakeVCR) IsValidCommit(_, id string) bool { return f.valid[id] }

func (f *fakeVCR) ListTrackedFiles(_, _ string, out io.Writer) error {
	for _, p := range f.tracked {
		fmt.Fprintln(out, p)
	}
	return nil
}

func (f *fakeVCR) ListChanges(_, _, _ string, out io.Writer) error {
	for _, c := range f.changes {
		fmt.Fprintln(out, c)
	}
	return nil
}

func (f *fakeVCR) PipeFileAtCommit(_, commit, path string, out io.Writer) error {
	_, err := io.WriteString(out, f.content[path+"@"+commit])
	return err
}

func (f *fakeVCR) ZipFilesAtCommit(_, _ string, paths []string, out io.Writer) error {
	_, err := io.WriteString(out, strings.Join(paths, ","))
	return err
}

type fakeRegistrySource struct {
	reg *fileset.Registry
}

func (s *fakeRegistrySource) Registry(_ *core.RequestContext) (*fileset.Registry, error) {
	return s.reg, nil
}

func testRegistry(t *testing.T) *fileset.Registry {
	t.Helper()
	reg, err := fileset.NewRegistry([]core.FilesetDef{
		{Category: "docs", Include: []string{"**"}, Processor: core.ProcessorRaw},
	})
	require.NoError(t, err)
	return reg
}

func testCtx() *core.RequestContext {
	return &core.RequestContext{
		Account:  "acme",
		Repo:     "docs",
		Branch:   "main",
		RepoPath: "/repos/acme/docs.git",
		Auth: &core.AuthContext{
			Accessible: map[string]bool{"docs": true},
			Group:      "g1",
		},
	}
}

func newTestDB(t *testing.T, vcr *fakeVCR) *FileDB {
	t.Helper()
	layout := core.Layout{CacheDir: t.TempDir()}
	return New(layout, vcr, &fakeRegistrySource{reg: testRegistry(t)})
}

func TestListAllFilesListsTrackedPathsAndAppendsControlRecords(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "abcdef1234567890"},
		tracked: []string{"a.txt", "b.txt"},
	}
	db := newTestDB(t, vcr)

	art, err := db.ListAllFiles(context.Background(), testCtx(), "")
	require.NoError(t, err)
	require.Equal(t, "abcdef1234567890", art.Commit)

	recs, err := decodeRecordsFile(art.FilePath)
	require.NoError(t, err)

	var paths []string
	var sawLatest, sawAcm bool
	for _, r := range recs {
		switch r.Control {
		case "$latest":
			sawLatest = true
		case "$acm":
			sawAcm = true
			require.Equal(t, "g1", r.Commit)
		case "":
			paths = append(paths, r.Path)
		}
	}
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, paths)
	require.True(t, sawLatest)
	require.True(t, sawAcm)
}

func TestListAllFilesCachesSecondCall(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "0000000000000000"},
		tracked: []string{"a.txt"},
	}
	db := newTestDB(t, vcr)
	ctx := testCtx()

	art1, err := db.ListAllFiles(context.Background(), ctx, "")
	require.NoError(t, err)
	art2, err := db.ListAllFiles(context.Background(), ctx, "")
	require.NoError(t, err)
	require.Equal(t, art1.FilePath, art2.FilePath)
}

func TestListAllFilesNotFoundWhenNoHead(t *testing.T) {
	db := newTestDB(t, &fakeVCR{})
	_, err := db.ListAllFiles(context.Background(), testCtx(), "")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestListUpdatesSinceInvalidSinceFallsBackWithReset(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "1111111111111111"},
		tracked: []string{"a.txt"},
		valid:   map[string]bool{},
	}
	db := newTestDB(t, vcr)

	art, err := db.ListUpdatesSince(context.Background(), testCtx(), "deadbeef", "")
	require.NoError(t, err)

	recs, err := decodeRecordsFile(art.FilePath)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	require.Equal(t, "reset", recs[0].Control)
}

func TestListUpdatesSinceParsesChangesAndRenames(t *testing.T) {
	vcr := &fakeVCR{
		head: &core.CommitInfo{ID: "2222222222222222"},
		changes: []string{
			"A\tnew.txt",
			"D\tgone.txt",
			"R100\told.txt\trenamed.txt",
		},
		valid: map[string]bool{"base": true},
	}
	db := newTestDB(t, vcr)

	art, err := db.ListUpdatesSince(context.Background(), testCtx(), "base", "")
	require.NoError(t, err)

	recs, err := decodeRecordsFile(art.FilePath)
	require.NoError(t, err)

	byPath := map[string]*core.FileRecord{}
	for _, r := range recs {
		if r.Control == "" {
			byPath[r.Path] = r
		}
	}
	require.Equal(t, core.StatusPublished, byPath["new.txt"].Status)
	require.Equal(t, core.StatusDeleted, byPath["gone.txt"].Status)
	require.Equal(t, core.StatusDeleted, byPath["old.txt"].Status)
	require.Equal(t, core.StatusPublished, byPath["renamed.txt"].Status)
}

func TestGetFilesetContentsReturnsZipArtifact(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "3333333333333333"},
		tracked: []string{"a.txt", "b.txt"},
	}
	db := newTestDB(t, vcr)

	art, err := db.GetFilesetContents(context.Background(), testCtx(), "docs", "", "")
	require.NoError(t, err)
	require.Equal(t, "application/zip", art.MimeType)
}

func TestFileInfoLookupIsScopedByACMGroup(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "5555555555555555"},
		tracked: []string{"a.txt"},
	}
	db := newTestDB(t, vcr)

	visible := testCtx()
	hidden := testCtx()
	hidden.Auth = &core.AuthContext{Accessible: map[string]bool{"docs": false}, Group: "g2"}

	// Build the hidden group's map first. If the info DB ignored group
	// when keying its cache, this would poison every later lookup on
	// the same branch regardless of who's asking.
	_, ok, err := db.infoDB.lookup(context.Background(), hidden, "a.txt")
	require.NoError(t, err)
	require.False(t, ok)

	info, ok, err := db.infoDB.lookup(context.Background(), visible, "a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "5555555555555555", info.Commit)

	// And the hidden group still sees nothing on a repeat lookup.
	_, ok, err = db.infoDB.lookup(context.Background(), hidden, "a.txt")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileInfoEvictDropsEveryGroupForBranch(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "6666666666666666"},
		tracked: []string{"a.txt"},
	}
	db := newTestDB(t, vcr)
	ctx := testCtx()

	_, ok, err := db.infoDB.lookup(context.Background(), ctx, "a.txt")
	require.NoError(t, err)
	require.True(t, ok)

	db.OnRepoUpdate(core.RepoUpdateEvent{Key: ctx.Key()})

	vcr.head = &core.CommitInfo{ID: "7777777777777777"}
	info, ok, err := db.infoDB.lookup(context.Background(), ctx, "a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7777777777777777", info.Commit)
}

func TestGetFileRecordAndContents(t *testing.T) {
	vcr := &fakeVCR{
		head:    &core.CommitInfo{ID: "4444444444444444"},
		tracked: []string{"a.txt"},
		content: map[string]string{"a.txt@4444444444444444": "hello"},
	}
	db := newTestDB(t, vcr)
	ctx := testCtx()

	recArt, err := db.GetFileRecord(context.Background(), ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "application/json", recArt.MimeType)

	contentArt, err := db.GetFileContents(context.Background(), ctx, "a.txt")
	require.NoError(t, err)
	require.Equal(t, "4444444444444444", contentArt.Commit)
}
