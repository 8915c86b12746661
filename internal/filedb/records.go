package filedb

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sort"

	"github.com/sevigo/locomote-server/internal/acm"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/fileset"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

// decodeRecordsFile reads every newline-delimited core.FileRecord from
// the file at path.
func decodeRecordsFile(path string) ([]*core.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pipeline.DecodeRecords(f)
}

// makeRecordForPath builds the file record for path at commit through
// the owning fileset's processor, reading the path's content first if
// the processor needs it (anything but raw). Returns (nil, nil) if no
// fileset owns path.
func (db *FileDB) makeRecordForPath(reg *fileset.Registry, repoPath, commit, path string, status core.RecordStatus) (*core.FileRecord, error) {
	def := reg.Lookup(path)
	if def == nil {
		return nil, nil
	}
	if status == core.StatusDeleted || def.Processor == core.ProcessorRaw {
		return reg.MakeFileRecord(path, commit, status, nil)
	}
	var buf bytes.Buffer
	if err := db.vcr.PipeFileAtCommit(repoPath, commit, path, &buf); err != nil {
		return nil, err
	}
	return reg.MakeFileRecord(path, commit, status, &buf)
}

// linesToRecordsStep builds the "records-{commit}.jsonl" stage: one
// file record per tracked path, skipping paths with no owning fileset
// (spec §4.8 listAllFiles step 3).
func (db *FileDB) linesToRecordsStep() pipeline.StepFunc {
	return func(_ context.Context, vars core.Vars, out io.Writer, in io.Reader) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		reg, err := db.registry.Registry(reqCtx)
		if err != nil {
			return err
		}

		bw := bufio.NewWriter(out)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			path := sc.Text()
			if path == "" {
				continue
			}
			rec, err := db.makeRecordForPath(reg, reqCtx.RepoPath, commit, path, core.StatusPublished)
			if err != nil {
				return err
			}
			if rec == nil {
				continue
			}
			if err := pipeline.WriteRecords(bw, []*core.FileRecord{rec}); err != nil {
				return err
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		return bw.Flush()
	}
}

// controlAccumulator folds a record stream into the synthetic control
// records spec §4.8 step 4 describes: per-category latest commit,
// unique commits seen, the request's auth group, and the branch's
// current head. The exact payload shape for each control kind isn't
// spelled out by the spec beyond "commit info" / "group" — this port
// keeps it to the FileRecord fields that already exist (Path, Commit)
// rather than inventing a parallel schema, and is recorded as a
// judgment call in DESIGN.md.
type controlAccumulator struct {
	categoryLatest map[string]string
	commits        map[string]bool
}

func newControlAccumulator() *controlAccumulator {
	return &controlAccumulator{categoryLatest: map[string]string{}, commits: map[string]bool{}}
}

func (c *controlAccumulator) observe(rec *core.FileRecord) {
	if rec.Category != "" {
		c.categoryLatest[rec.Category] = rec.Commit
	}
	if rec.Commit != "" {
		c.commits[rec.Commit] = true
	}
}

func (c *controlAccumulator) records(group, latestCommit string) []*core.FileRecord {
	var out []*core.FileRecord

	categories := make([]string, 0, len(c.categoryLatest))
	for cat := range c.categoryLatest {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		out = append(out, &core.FileRecord{Control: "$category", Category: cat, Commit: c.categoryLatest[cat]})
	}

	ids := make([]string, 0, len(c.commits))
	for id := range c.commits {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, &core.FileRecord{Control: "$commit", Path: id, Commit: id})
	}

	out = append(out, &core.FileRecord{Control: "$acm", Commit: group})
	out = append(out, &core.FileRecord{Control: "$latest", Commit: latestCommit})
	return out
}

// processUpdatesStep is the shared final stage both listAllFiles and
// listUpdatesSince cache as "results-*"/"delta-results-*": apply the
// request's ACM filter+rewrite to every record, replace each surviving
// record's commit with the path's last-modified short hash, and append
// the control records described above. prependReset, when true, emits a
// leading "$control reset" record ahead of everything else (the
// invalid-`since` fallback case).
func (db *FileDB) processUpdatesStep(prependReset bool) pipeline.StepFunc {
	return func(_ context.Context, vars core.Vars, out io.Writer, in io.Reader) error {
		reqCtx := reqCtxFrom(vars)
		commit := vars.String(core.VarCommit)
		group := vars.String("group")

		recs, err := pipeline.DecodeRecords(in)
		if err != nil {
			return err
		}

		bw := bufio.NewWriter(out)
		if prependReset {
			if err := pipeline.WriteRecords(bw, []*core.FileRecord{{Control: "reset"}}); err != nil {
				return err
			}
		}

		acc := newControlAccumulator()
		for _, rec := range recs {
			if rec.IsControl() {
				continue
			}
			filtered := rec
			if reqCtx.Auth != nil {
				filtered = acm.FilterAndRewrite(reqCtx.Auth, reqCtx, rec)
			}
			if filtered == nil {
				continue
			}
			if filtered.Status != core.StatusDeleted {
				if info, err := db.vcr.LastCommitForFile(reqCtx.RepoPath, reqCtx.Branch, filtered.Path); err == nil && info != nil {
					filtered.Commit = info.Short()
				}
			}
			acc.observe(filtered)
			if err := pipeline.WriteRecords(bw, []*core.FileRecord{filtered}); err != nil {
				return err
			}
		}

		if err := pipeline.WriteRecords(bw, acc.records(group, commit)); err != nil {
			return err
		}
		return bw.Flush()
	}
}
