// Package vcr wraps go-git in the purely functional operations spec'd
// for a version-control read adapter: head/file-history lookups,
// tracked-file listings, two-commit diffs, and content/archive piping.
// It is grounded on the teacher's internal/gitutil package, which opens
// repositories and diffs trees the same way with the same library.
package vcr

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/sevigo/locomote-server/internal/core"
)

// Adapter reads bare repositories through go-git. It holds no state of
// its own; every method takes the repo path it operates on so callers
// can freely interleave operations across many repos.
type Adapter struct{}

// NewAdapter returns a stateless VCR adapter.
func NewAdapter() *Adapter { return &Adapter{} }

// HeadCommit returns the tip commit of branch, or ok=false if the branch
// doesn't exist.
func (a *Adapter) HeadCommit(repoPath, branch string) (info *core.CommitInfo, ok bool, err error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, false, fmt.Errorf("vcr: open %s: %w", repoPath, err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("vcr: resolve branch %s: %w", branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, false, fmt.Errorf("vcr: commit object %s: %w", ref.Hash(), err)
	}
	return toCommitInfo(commit), true, nil
}

// LastCommitForFile returns the most recent commit on branch that
// touched path, or nil if path was never modified on that branch.
func (a *Adapter) LastCommitForFile(repoPath, branch, path string) (*core.CommitInfo, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("vcr: open %s: %w", repoPath, err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("vcr: resolve branch %s: %w", branch, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash(), FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("vcr: log %s: %w", path, err)
	}
	defer iter.Close()

	commit, err := iter.Next()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vcr: log %s: %w", path, err)
	}
	return toCommitInfo(commit), nil
}

// ListCommits returns up to limit commits on branch, most recent first,
// for the /commits.api endpoint. limit <= 0 means unbounded.
func (a *Adapter) ListCommits(repoPath, branch string, limit int) ([]*core.CommitInfo, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("vcr: open %s: %w", repoPath, err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("vcr: resolve branch %s: %w", branch, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("vcr: log %s: %w", branch, err)
	}
	defer iter.Close()

	var out []*core.CommitInfo
	for limit <= 0 || len(out) < limit {
		commit, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vcr: log %s: %w", branch, err)
		}
		out = append(out, toCommitInfo(commit))
	}
	return out, nil
}

// IsValidCommit reports whether id resolves to a real commit object.
func (a *Adapter) IsValidCommit(repoPath, id string) bool {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return false
	}
	_, err = repo.CommitObject(plumbing.NewHash(id))
	return err == nil
}

// ListTrackedFiles writes every path tracked at commit, one per line.
func (a *Adapter) ListTrackedFiles(repoPath, commit string, out io.Writer) error {
	tree, err := openTree(repoPath, commit)
	if err != nil {
		return err
	}
	w := newLineWriter(out)
	err = tree.Files().ForEach(func(f *object.File) error {
		return w.writeLine(decodeQuotedPath(f.Name))
	})
	if err != nil {
		return fmt.Errorf("vcr: list tracked files at %s: %w", commit, err)
	}
	return w.flush()
}

// ListChanges writes one "<status>\t<path>" line per changed path
// between since and commit (statuses D, A, M, written in that order), or
// "R100\t<oldPath>\t<newPath>" for a rename detected by identical blob. since == ""
// diffs against the empty tree (every tracked file reported as Added).
func (a *Adapter) ListChanges(repoPath, commit, since string, out io.Writer) error {
	newTree, err := openTree(repoPath, commit)
	if err != nil {
		return err
	}
	var oldTree *object.Tree
	if since != "" {
		oldTree, err = openTree(repoPath, since)
		if err != nil {
			return err
		}
	}

	changes, err := object.DiffTree(oldTree, newTree)
	if err != nil {
		return fmt.Errorf("vcr: diff %s..%s: %w", since, commit, err)
	}

	added := map[string]plumbing.Hash{}
	deleted := map[string]plumbing.Hash{}
	var modified []string

	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			return fmt.Errorf("vcr: diff %s..%s: %w", since, commit, err)
		}
		switch action {
		case merkletrie.Insert:
			added[decodeQuotedPath(c.To.Name)] = c.To.TreeEntry.Hash
		case merkletrie.Delete:
			deleted[decodeQuotedPath(c.From.Name)] = c.From.TreeEntry.Hash
		case merkletrie.Modify:
			modified = append(modified, decodeQuotedPath(c.To.Name))
		}
	}

	deletedPaths := make([]string, 0, len(deleted))
	for p := range deleted {
		deletedPaths = append(deletedPaths, p)
	}
	sort.Strings(deletedPaths)

	w := newLineWriter(out)
	for _, oldPath := range deletedPaths {
		oldHash := deleted[oldPath]
		renamedTo := ""
		for newPath, newHash := range added {
			if newHash == oldHash && (renamedTo == "" || newPath < renamedTo) {
				renamedTo = newPath
			}
		}
		if renamedTo != "" {
			delete(added, renamedTo)
			if err := w.writeLine(fmt.Sprintf("R100\t%s\t%s", oldPath, renamedTo)); err != nil {
				return err
			}
			continue
		}
		if err := w.writeLine("D\t" + oldPath); err != nil {
			return err
		}
	}

	addedPaths := make([]string, 0, len(added))
	for p := range added {
		addedPaths = append(addedPaths, p)
	}
	sort.Strings(addedPaths)
	for _, newPath := range addedPaths {
		if err := w.writeLine("A\t" + newPath); err != nil {
			return err
		}
	}

	sort.Strings(modified)
	for _, p := range modified {
		if err := w.writeLine("M\t" + p); err != nil {
			return err
		}
	}
	return w.flush()
}

// PipeFileAtCommit streams path's raw contents at commit to out.
func (a *Adapter) PipeFileAtCommit(repoPath, commit, path string, out io.Writer) error {
	tree, err := openTree(repoPath, commit)
	if err != nil {
		return err
	}
	f, err := tree.File(path)
	if err != nil {
		return fmt.Errorf("%w: %s@%s", core.ErrNotFound, path, commit)
	}
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("vcr: open blob %s: %w", path, err)
	}
	defer r.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("vcr: pipe %s: %w", path, err)
	}
	return nil
}

// ZipFilesAtCommit writes a ZIP archive of paths at commit to out.
func (a *Adapter) ZipFilesAtCommit(repoPath, commit string, paths []string, out io.Writer) error {
	tree, err := openTree(repoPath, commit)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)
	for _, p := range paths {
		f, err := tree.File(p)
		if err != nil {
			continue // skip paths that don't exist at this commit
		}
		r, err := f.Reader()
		if err != nil {
			return fmt.Errorf("vcr: open blob %s: %w", p, err)
		}
		w, err := zw.Create(p)
		if err != nil {
			r.Close()
			return fmt.Errorf("vcr: zip entry %s: %w", p, err)
		}
		_, copyErr := io.Copy(w, r)
		r.Close()
		if copyErr != nil {
			return fmt.Errorf("vcr: zip entry %s: %w", p, copyErr)
		}
	}
	return zw.Close()
}

// ReadFileAt resolves branch's head commit, reads path's contents at
// that commit, and returns both the bytes and the commit id it was read
// at. It's the narrow slice of the adapter the manifest cache needs
// (internal/manifest.Source) to load locomote.json without depending on
// the full VCR surface.
func (a *Adapter) ReadFileAt(repoPath, branch, path string) ([]byte, string, error) {
	info, ok, err := a.HeadCommit(repoPath, branch)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: branch %s", core.ErrNotFound, branch)
	}
	var buf bytes.Buffer
	if err := a.PipeFileAtCommit(repoPath, info.ID, path, &buf); err != nil {
		return nil, info.ID, err
	}
	return buf.Bytes(), info.ID, nil
}

func openTree(repoPath, commit string) (*object.Tree, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("vcr: open %s: %w", repoPath, err)
	}
	c, err := repo.CommitObject(plumbing.NewHash(commit))
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s", core.ErrNotFound, commit)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("vcr: tree at %s: %w", commit, err)
	}
	return tree, nil
}

func toCommitInfo(c *object.Commit) *core.CommitInfo {
	return &core.CommitInfo{
		ID:        c.Hash.String(),
		UnixSec:   c.Author.When.Unix(),
		Committer: c.Committer.Name,
		Subject:   c.Message,
	}
}
