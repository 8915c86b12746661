package filedb

import (
	"context"
	"io"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

type listAllArgs struct {
	Ctx    *core.RequestContext
	Commit string
}

// ListAllFiles returns the full file listing for ctx.branch at commit
// (resolving commit to the branch head when empty), per spec §4.8.
func (db *FileDB) ListAllFiles(ctx context.Context, reqCtx *core.RequestContext, commit string) (*core.Artifact, error) {
	return db.pool.Run(ctx, func() (*core.Artifact, error) {
		return db.listAllPl.Run(ctx, listAllArgs{Ctx: reqCtx, Commit: commit})
	})
}

func (db *FileDB) buildListAllPipeline() *pipeline.Pipeline[listAllArgs] {
	p := pipeline.New[listAllArgs](db.layout.CacheDir, db.listAllInit, nil)
	p.Open = func(_ context.Context, vars core.Vars, out io.Writer) error {
		reqCtx := reqCtxFrom(vars)
		return db.vcr.ListTrackedFiles(reqCtx.RepoPath, vars.String(core.VarCommit), out)
	}
	p.Steps = []pipeline.Step{
		{
			Name:     "records",
			Template: "internal/{account}/{repo}/records-{commit}.jsonl",
			Run:      db.linesToRecordsStep(),
		},
		{
			Name:     "processUpdates",
			Template: "internal/{account}/{repo}/results-{commit}-{group}.jsonl",
			Run:      db.processUpdatesStep(false),
		},
	}
	p.Done = func(vars core.Vars, art *core.Artifact) (*core.Artifact, error) {
		art.Commit = vars.String(core.VarCommit)
		art.Group = vars.String("group")
		return art, nil
	}
	return p
}

func (db *FileDB) listAllInit(_ context.Context, args listAllArgs) (core.Vars, bool, error) {
	commit := args.Commit
	if commit == "" {
		info, ok, err := db.vcr.HeadCommit(args.Ctx.RepoPath, args.Ctx.Branch)
		if err != nil {
			return nil, false, wrapStage("listAllFiles", err)
		}
		if !ok {
			return nil, false, nil
		}
		commit = info.ID
	}
	return baseVars(args.Ctx, commit), true, nil
}
