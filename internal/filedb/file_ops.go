package filedb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"path/filepath"

	"github.com/sevigo/locomote-server/internal/acm"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

type fileArgs struct {
	Ctx  *core.RequestContext
	Path string
}

// GetFileRecord returns path's file record at its last-modified commit,
// ACM-filtered, per spec §4.8.
func (db *FileDB) GetFileRecord(ctx context.Context, reqCtx *core.RequestContext, path string) (*core.Artifact, error) {
	return db.pool.Run(ctx, func() (*core.Artifact, error) {
		return db.recordPl.Run(ctx, fileArgs{Ctx: reqCtx, Path: path})
	})
}

// GetFileContents returns path's (possibly rewritten) raw contents at
// its last-modified commit, ACM-filtered, per spec §4.8.
func (db *FileDB) GetFileContents(ctx context.Context, reqCtx *core.RequestContext, path string) (*core.Artifact, error) {
	return db.pool.Run(ctx, func() (*core.Artifact, error) {
		return db.contentsPl.Run(ctx, fileArgs{Ctx: reqCtx, Path: path})
	})
}

func (db *FileDB) buildRecordPipeline() *pipeline.Pipeline[fileArgs] {
	p := pipeline.New[fileArgs](db.layout.CacheDir, db.fileInit, nil)
	p.Open = func(_ context.Context, vars core.Vars, out io.Writer) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		path := vars.String(core.VarPath)

		reg, err := db.registry.Registry(reqCtx)
		if err != nil {
			return err
		}
		rec, err := db.makeRecordForPath(reg, reqCtx.RepoPath, commit, path, core.StatusPublished)
		if err != nil {
			return err
		}
		if rec == nil {
			return core.ErrNotFound
		}
		return json.NewEncoder(out).Encode(rec)
	}
	p.Steps = []pipeline.Step{
		{
			Name:     "acm",
			Template: "internal/{account}/{repo}/records/{commitPath}-{pathHash}-{group}.json",
			Run: func(_ context.Context, vars core.Vars, out io.Writer, in io.Reader) error {
				reqCtx := reqCtxFrom(vars)
				var rec core.FileRecord
				if err := json.NewDecoder(in).Decode(&rec); err != nil {
					return err
				}
				filtered := &rec
				if reqCtx.Auth != nil {
					filtered = acm.FilterAndRewrite(reqCtx.Auth, reqCtx, &rec)
				}
				if filtered == nil {
					return core.ErrNotFound
				}
				return json.NewEncoder(out).Encode(filtered)
			},
		},
	}
	p.Done = func(vars core.Vars, art *core.Artifact) (*core.Artifact, error) {
		art.Commit = vars.String(core.VarCommit)
		art.Group = vars.String("group")
		art.MimeType = "application/json"
		return art, nil
	}
	return p
}

func (db *FileDB) buildContentsPipeline() *pipeline.Pipeline[fileArgs] {
	p := pipeline.New[fileArgs](db.layout.CacheDir, db.fileInit, nil)
	p.OpenTemplate = "external/{hostname}{basePath}/{commitPath}/{pathHash}-{group}"
	p.Open = func(ctx context.Context, vars core.Vars, out io.Writer) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		path := vars.String(core.VarPath)

		reg, err := db.registry.Registry(reqCtx)
		if err != nil {
			return err
		}

		var raw bytes.Buffer
		if err := db.vcr.PipeFileAtCommit(reqCtx.RepoPath, commit, path, &raw); err != nil {
			return err
		}

		return reg.PipeContents(reqCtx, path, &raw, out)
	}
	p.Done = func(vars core.Vars, art *core.Artifact) (*core.Artifact, error) {
		art.Commit = vars.String(core.VarCommit)
		art.Group = vars.String("group")
		art.MimeType = mimeTypeFor(vars.String(core.VarPath))

		reqCtx := reqCtxFrom(vars)
		reg, err := db.registry.Registry(reqCtx)
		if err != nil {
			return nil, err
		}
		if def := reg.Lookup(vars.String(core.VarPath)); def != nil {
			art.CacheControl = def.CacheControl
		}
		return art, nil
	}
	return p
}

func (db *FileDB) fileInit(ctx context.Context, args fileArgs) (core.Vars, bool, error) {
	info, ok, err := db.infoDB.lookup(ctx, args.Ctx, args.Path)
	var commit string
	if err != nil {
		return nil, false, err
	}
	if ok {
		commit = info.Commit
	} else {
		head, exists, err := db.vcr.HeadCommit(args.Ctx.RepoPath, args.Ctx.Branch)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			return nil, false, nil
		}
		commit = head.ID
	}

	vars := baseVars(args.Ctx, commit)
	vars[core.VarPath] = args.Path
	vars[core.VarPathHash] = pathHash(args.Path)
	vars[core.VarCommitPath] = commitPath(commit)
	vars["hostname"] = args.Ctx.Hostname
	vars["basePath"] = args.Ctx.BasePath
	return vars, true, nil
}

func mimeTypeFor(path string) string {
	t := mime.TypeByExtension(filepath.Ext(path))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}
