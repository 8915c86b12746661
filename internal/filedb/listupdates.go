package filedb

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

type listUpdatesArgs struct {
	Ctx    *core.RequestContext
	Since  string
	Commit string
}

// ListUpdatesSince returns the delta listing between since and commit
// (resolving commit to the branch head when empty), per spec §4.8. An
// invalid since falls back to a full listing prefixed by a reset
// control record.
func (db *FileDB) ListUpdatesSince(ctx context.Context, reqCtx *core.RequestContext, since, commit string) (*core.Artifact, error) {
	return db.pool.Run(ctx, func() (*core.Artifact, error) {
		return db.listUpdatesPl.Run(ctx, listUpdatesArgs{Ctx: reqCtx, Since: since, Commit: commit})
	})
}

func (db *FileDB) buildListUpdatesPipeline() *pipeline.Pipeline[listUpdatesArgs] {
	p := pipeline.New[listUpdatesArgs](db.layout.CacheDir, db.listUpdatesInit, nil)
	p.Open = func(_ context.Context, vars core.Vars, out io.Writer) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		since := vars.String(core.VarSince)
		if vars.String(core.VarValid) == "I" {
			return db.vcr.ListTrackedFiles(reqCtx.RepoPath, commit, out)
		}
		return db.vcr.ListChanges(reqCtx.RepoPath, commit, since, out)
	}
	p.Steps = []pipeline.Step{
		{
			Name:     "parse",
			Template: "internal/{account}/{repo}/delta-{since}-{commit}.jsonl",
			Run:      db.parseChangesStep(),
		},
		{
			Name:     "processUpdates",
			Template: "internal/{account}/{repo}/delta-results-{since}-{commit}-{group}.jsonl",
			Run:      db.processUpdatesStepForDelta(),
		},
	}
	p.Done = func(vars core.Vars, art *core.Artifact) (*core.Artifact, error) {
		art.Commit = vars.String(core.VarCommit)
		art.Group = vars.String("group")
		return art, nil
	}
	return p
}

func (db *FileDB) listUpdatesInit(_ context.Context, args listUpdatesArgs) (core.Vars, bool, error) {
	commit := args.Commit
	if commit == "" {
		info, ok, err := db.vcr.HeadCommit(args.Ctx.RepoPath, args.Ctx.Branch)
		if err != nil {
			return nil, false, wrapStage("listUpdatesSince", err)
		}
		if !ok {
			return nil, false, nil
		}
		commit = info.ID
	}

	vars := baseVars(args.Ctx, commit)
	vars[core.VarSince] = args.Since
	if db.vcr.IsValidCommit(args.Ctx.RepoPath, args.Since) {
		vars[core.VarValid] = "V"
	} else {
		vars[core.VarValid] = "I"
	}
	return vars, true, nil
}

// parseChangesStep turns listChanges' "<status>\t<path>" lines (or the
// listTrackedFiles fallback when since was invalid) into file records,
// per spec §4.8 step 3: renames emit a deleted record for the old path
// and a published one for the new path; a deleted path that no fileset
// owns is still emitted as a deleted record (with no category) so
// clients prune it, while an added or changed path that no fileset owns
// is skipped.
func (db *FileDB) parseChangesStep() pipeline.StepFunc {
	return func(_ context.Context, vars core.Vars, out io.Writer, in io.Reader) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		fallback := vars.String(core.VarValid) == "I"

		reg, err := db.registry.Registry(reqCtx)
		if err != nil {
			return err
		}

		bw := bufio.NewWriter(out)
		emit := func(path string, status core.RecordStatus) error {
			def := reg.Lookup(path)
			if def == nil {
				if status == core.StatusDeleted {
					return pipeline.WriteRecords(bw, []*core.FileRecord{{Path: path, Status: core.StatusDeleted, Commit: commit}})
				}
				return nil
			}
			rec, err := db.makeRecordForPath(reg, reqCtx.RepoPath, commit, path, status)
			if err != nil {
				return err
			}
			if rec == nil {
				return nil
			}
			return pipeline.WriteRecords(bw, []*core.FileRecord{rec})
		}

		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				continue
			}
			if fallback {
				if err := emit(line, core.StatusPublished); err != nil {
					return err
				}
				continue
			}
			fields := strings.SplitN(line, "\t", 3)
			switch fields[0][0] {
			case byte(core.ChangeRenamed):
				if len(fields) < 3 {
					continue
				}
				if err := emit(fields[1], core.StatusDeleted); err != nil {
					return err
				}
				if err := emit(fields[2], core.StatusPublished); err != nil {
					return err
				}
			case byte(core.ChangeDeleted):
				if err := emit(fields[1], core.StatusDeleted); err != nil {
					return err
				}
			default:
				if err := emit(fields[1], core.StatusPublished); err != nil {
					return err
				}
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		return bw.Flush()
	}
}

func (db *FileDB) processUpdatesStepForDelta() pipeline.StepFunc {
	inner := db.processUpdatesStep(false)
	return func(ctx context.Context, vars core.Vars, out io.Writer, in io.Reader) error {
		if vars.String(core.VarValid) != "I" {
			return inner(ctx, vars, out, in)
		}
		return db.processUpdatesStep(true)(ctx, vars, out, in)
	}
}
