package filedb

import (
	"context"
	"strings"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
)

// FileInfo is the file-info DB's per-path entry: the full id of the
// commit a path was last modified at (records themselves carry the
// short hash), and the cache-control header its owning fileset
// declares (spec §4.7).
type FileInfo struct {
	Commit       string
	CacheControl string
}

// infoDB caches ctx.Key()+group -> {path -> FileInfo}, built by running
// listAllFiles and folding its record stream, single-flighted per key
// with eviction on content-repo-update.
//
// listAllFiles' own "results-{commit}-{group}.jsonl" cache already
// varies by ACM group; the map built here must key on the same group,
// otherwise the first caller to build a branch's map fixes which
// group's view of path existence and etags every later caller sees
// until eviction, regardless of their own authorization (spec §4.7's
// path->{commit} map is meant to be group-scoped, same as the records
// it's folded from).
type infoDB struct {
	db    *FileDB
	cache *async.CachingSingleton[map[string]FileInfo]
}

func newInfoDB(db *FileDB) *infoDB {
	c, err := async.NewCachingSingleton[map[string]FileInfo](1024)
	if err != nil {
		// capacity is a compile-time constant; a construction error here
		// would mean the LRU library itself is broken.
		panic(err)
	}
	return &infoDB{db: db, cache: c}
}

// evict drops every group's cached map for the updated repo/branch key.
func (i *infoDB) evict(key string) {
	prefix := key + "|"
	for _, k := range i.cache.Keys() {
		if k == key || strings.HasPrefix(k, prefix) {
			i.cache.Evict(k)
		}
	}
}

// infoDBKey scopes the cache to ctx's branch and ACM group, matching
// the group-scoped listAllFiles results it's built from.
func infoDBKey(reqCtx *core.RequestContext) string {
	group := ""
	if reqCtx.Auth != nil {
		group = reqCtx.Auth.Group
	}
	return reqCtx.Key() + "|" + group
}

// lookup returns the FileInfo for path within ctx's repo/branch and
// ACM group, building (and caching) the full map on first use.
func (i *infoDB) lookup(ctx context.Context, reqCtx *core.RequestContext, path string) (FileInfo, bool, error) {
	m, err := i.cache.Do(infoDBKey(reqCtx), func() (map[string]FileInfo, error) {
		return i.build(ctx, reqCtx)
	})
	if err != nil {
		return FileInfo{}, false, err
	}
	info, ok := m[path]
	return info, ok, nil
}

func (i *infoDB) build(ctx context.Context, reqCtx *core.RequestContext) (map[string]FileInfo, error) {
	art, err := i.db.ListAllFiles(ctx, reqCtx, "")
	if err != nil {
		return nil, err
	}
	recs, err := decodeRecordsFile(art.FilePath)
	if err != nil {
		return nil, err
	}

	reg, err := i.db.registry.Registry(reqCtx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]FileInfo, len(recs))
	for _, r := range recs {
		if r.IsControl() || r.Status == core.StatusDeleted {
			continue
		}
		cacheControl := ""
		if def := reg.ByCategory(r.Category); def != nil {
			cacheControl = def.CacheControl
		}
		commit := r.Commit
		if info, err := i.db.vcr.LastCommitForFile(reqCtx.RepoPath, reqCtx.Branch, r.Path); err == nil && info != nil {
			commit = info.ID
		}
		out[r.Path] = FileInfo{Commit: commit, CacheControl: cacheControl}
	}
	return out, nil
}
