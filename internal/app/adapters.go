// Package app wires every component into the composition root the
// teacher's internal/app.NewApp builds: one constructor that resolves
// configuration into concrete dependencies, and a small Start/Stop
// lifecycle. The adapters in this file bridge the narrow interfaces
// internal/acm, internal/filedb, internal/negotiator and internal/search
// declare against the concrete services this port builds them from.
package app

import (
	"bufio"
	"bytes"

	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/fileset"
	"github.com/sevigo/locomote-server/internal/manifest"
	"github.com/sevigo/locomote-server/internal/search"
	"github.com/sevigo/locomote-server/internal/vcr"
)

// manifestSettingsSource implements acm.SettingsSource: the manifest
// half comes from the per-branch manifest cache, the fileset half is
// the single global registry every repo shares (see
// internal/config.SettingsConfig's doc comment for why filesets are
// global rather than per-manifest).
type manifestSettingsSource struct {
	manifests *manifest.Cache
	filesets  []*core.FilesetDef
}

func (s *manifestSettingsSource) Manifest(ctx *core.RequestContext) (*core.Manifest, string, error) {
	entry, err := s.manifests.Get(ctx.RepoPath, ctx.Branch)
	if err != nil {
		return nil, "", err
	}
	return entry.Manifest, entry.Commit, nil
}

func (s *manifestSettingsSource) Filesets(_ *core.RequestContext) ([]*core.FilesetDef, error) {
	return s.filesets, nil
}

// globalRegistrySource implements filedb.RegistrySource (and, via the
// type alias, internal/search.RegistrySource): every repo/branch shares
// the same compiled fileset registry, so it ignores ctx entirely.
type globalRegistrySource struct {
	registry *fileset.Registry
}

func (s *globalRegistrySource) Registry(*core.RequestContext) (*fileset.Registry, error) {
	return s.registry, nil
}

// trackedPathLister implements negotiator.Lister directly against the
// VCR adapter rather than through fileDB's group-filtered listing
// pipelines: the negotiator's representation index must see every
// tracked path regardless of which ACM group is asking, the same
// reasoning internal/search's indexer follows for its own unfiltered
// enumeration.
type trackedPathLister struct {
	vcr *vcr.Adapter
}

func (l *trackedPathLister) ListTrackedPaths(ctx *core.RequestContext) ([]string, error) {
	head, ok, err := l.vcr.HeadCommit(ctx.RepoPath, ctx.Branch)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := l.vcr.ListTrackedFiles(ctx.RepoPath, head.ID, &buf); err != nil {
		return nil, err
	}
	var paths []string
	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	return paths, sc.Err()
}

// branchLister adapts internal/branchdb.BranchDB's BranchRef slices to
// internal/search.BranchRef, the distinct (if structurally identical)
// named type search.BranchLister requires.
type branchLister struct {
	db *branchdb.BranchDB
}

func (l *branchLister) ListPublic() []search.BranchRef {
	refs := l.db.ListPublic()
	out := make([]search.BranchRef, len(refs))
	for i, r := range refs {
		out[i] = search.BranchRef{Account: r.Account, Repo: r.Repo, Branch: r.Branch}
	}
	return out
}

func (l *branchLister) RepoPath(account, repo string) (string, bool) {
	return l.db.RepoPath(account, repo)
}

