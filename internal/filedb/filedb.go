// Package filedb composes the pipeline runtime (internal/pipeline) into
// the public read operations spec §4.8 names: full and delta file
// listings, fileset archives, single-file records and contents, and the
// file-info DB every one of them consults for a path's last-modified
// commit. It is grounded on the teacher's repo-scan + cache-lookup
// shape, generalized from "one review result per commit" to "many
// composed listing/content pipelines per request".
package filedb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/fileset"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

// thunk is a pipeline invocation deferred to a worker-pool slot.
type thunk func() (*core.Artifact, error)

// VCR is the narrow slice of internal/vcr.Adapter fileDB operations
// need.
type VCR interface {
	HeadCommit(repoPath, branch string) (*core.CommitInfo, bool, error)
	LastCommitForFile(repoPath, branch, path string) (*core.CommitInfo, error)
	IsValidCommit(repoPath, id string) bool
	ListTrackedFiles(repoPath, commit string, out io.Writer) error
	ListChanges(repoPath, commit, since string, out io.Writer) error
	PipeFileAtCommit(repoPath, commit, path string, out io.Writer) error
	ZipFilesAtCommit(repoPath, commit string, paths []string, out io.Writer) error
}

// RegistrySource resolves the compiled fileset registry for a request's
// repo/branch. internal/app backs it with a single registry compiled
// once from the server-wide fileset config, returned for every
// account/repo/branch.
type RegistrySource interface {
	Registry(ctx *core.RequestContext) (*fileset.Registry, error)
}

// FileDB wires the VCR adapter, the fileset registry and the pipeline
// cache directory into the five public operations spec §4.8 defines,
// each wrapped in a shared worker pool bounding concurrent execution
// to PoolSize (spec §4.1, §5: "a pool of at most 100 per fileDB
// operation kind").
type FileDB struct {
	layout   core.Layout
	vcr      VCR
	registry RegistrySource
	pool     *async.WorkerPool[thunk, *core.Artifact]

	listAllPl     *pipeline.Pipeline[listAllArgs]
	listUpdatesPl *pipeline.Pipeline[listUpdatesArgs]
	filesetPl     *pipeline.Pipeline[filesetArgs]
	recordPl      *pipeline.Pipeline[fileArgs]
	contentsPl    *pipeline.Pipeline[fileArgs]

	infoDB *infoDB
}

// PoolSize is the default worker-pool bound spec §4.1 names for fileDB
// operations.
const PoolSize = 100

// New creates a FileDB backed by layout's cache directory.
func New(layout core.Layout, vcr VCR, registry RegistrySource) *FileDB {
	pool := async.NewWorkerPool[thunk, *core.Artifact](PoolSize, func(_ context.Context, t thunk) (*core.Artifact, error) {
		return t()
	})
	db := &FileDB{layout: layout, vcr: vcr, registry: registry, pool: pool}
	db.infoDB = newInfoDB(db)
	db.listAllPl = db.buildListAllPipeline()
	db.listUpdatesPl = db.buildListUpdatesPipeline()
	db.filesetPl = db.buildFilesetPipeline()
	db.recordPl = db.buildRecordPipeline()
	db.contentsPl = db.buildContentsPipeline()
	return db
}

// OnRepoUpdate implements core.RepoUpdateListener: drop the file-info DB
// entry for the updated repo/branch. Pipeline artifacts themselves need
// no eviction — they're content-addressed by commit, so a stale commit
// simply stops being referenced.
func (db *FileDB) OnRepoUpdate(evt core.RepoUpdateEvent) {
	db.infoDB.evict(evt.Key)
}

func baseVars(ctx *core.RequestContext, commit string) core.Vars {
	v := core.Vars{
		core.VarCtx:    ctx,
		core.VarCommit: commit,
		"account":      ctx.Account,
		"repo":         ctx.Repo,
		"branch":       ctx.Branch,
		"group":        "",
	}
	if ctx.Auth != nil {
		v["group"] = ctx.Auth.Group
	}
	return v
}

func reqCtxFrom(vars core.Vars) *core.RequestContext {
	return vars[core.VarCtx].(*core.RequestContext)
}

// pathHash is the short path fingerprint cache templates use to keep
// file names bounded regardless of the source path's length/depth.
func pathHash(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])[:12]
}

// commitPath splits a commit hash into git's familiar "xx/rest" object
// directory shape, used to keep any one cache directory from holding
// too many files.
func commitPath(commit string) string {
	if len(commit) < 3 {
		return commit
	}
	return commit[:2] + "/" + commit[2:]
}

func wrapStage(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("filedb: %s: %w", name, err)
}
