package filedb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

type filesetArgs struct {
	Ctx      *core.RequestContext
	Category string
	Since    string
	Commit   string
}

// GetFilesetContents (since == "") or GetFilesetUpdatedContents
// (since != "") returns a ZIP archive of category's current paths, per
// spec §4.8.
func (db *FileDB) GetFilesetContents(ctx context.Context, reqCtx *core.RequestContext, category, since, commit string) (*core.Artifact, error) {
	return db.pool.Run(ctx, func() (*core.Artifact, error) {
		return db.filesetPl.Run(ctx, filesetArgs{Ctx: reqCtx, Category: category, Since: since, Commit: commit})
	})
}

func (db *FileDB) buildFilesetPipeline() *pipeline.Pipeline[filesetArgs] {
	p := pipeline.New[filesetArgs](db.layout.CacheDir, db.filesetInit, nil)
	p.OpenTemplate = "filesets/{category}/{commit}-{since}-group-{group}.zip"
	p.Open = func(_ context.Context, vars core.Vars, out io.Writer) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		paths, _ := vars["paths"].([]string)
		return db.vcr.ZipFilesAtCommit(reqCtx.RepoPath, commit, paths, out)
	}
	p.Done = func(vars core.Vars, art *core.Artifact) (*core.Artifact, error) {
		art.Commit = vars.String(core.VarCommit)
		art.Group = vars.String("group")
		art.MimeType = "application/zip"
		return art, nil
	}
	return p
}

// GetFilesetList returns category's current paths as decoded file
// records, without building a ZIP archive — the data source behind
// /filesets.api's `list` mode, which filesetInit's own category
// filtering logic is generalized from.
func (db *FileDB) GetFilesetList(ctx context.Context, reqCtx *core.RequestContext, category, since string) ([]*core.FileRecord, *core.Artifact, error) {
	var art *core.Artifact
	var err error
	if since == "" {
		art, err = db.ListAllFiles(ctx, reqCtx, "")
	} else {
		art, err = db.ListUpdatesSince(ctx, reqCtx, since, "")
	}
	if err != nil {
		return nil, nil, err
	}

	recs, err := decodeRecordsFile(art.FilePath)
	if err != nil {
		return nil, nil, err
	}

	var out []*core.FileRecord
	for _, r := range recs {
		if r.IsControl() || r.Category != category || r.Status == core.StatusDeleted {
			continue
		}
		out = append(out, r)
	}
	return out, art, nil
}

func (db *FileDB) filesetInit(ctx context.Context, args filesetArgs) (core.Vars, bool, error) {
	if args.Category == "" {
		return nil, false, fmt.Errorf("filedb: getFilesetContents: %w: category is required", core.ErrUpstreamInvalid)
	}

	var art *core.Artifact
	var err error
	if args.Since == "" {
		art, err = db.ListAllFiles(ctx, args.Ctx, args.Commit)
	} else {
		art, err = db.ListUpdatesSince(ctx, args.Ctx, args.Since, args.Commit)
	}
	if errors.Is(err, core.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	recs, err := decodeRecordsFile(art.FilePath)
	if err != nil {
		return nil, false, err
	}

	var paths []string
	for _, r := range recs {
		if r.IsControl() || r.Category != args.Category || r.Status == core.StatusDeleted {
			continue
		}
		paths = append(paths, r.Path)
	}

	vars := baseVars(args.Ctx, art.Commit)
	vars["category"] = args.Category
	vars[core.VarSince] = args.Since
	vars["paths"] = paths
	return vars, true, nil
}
