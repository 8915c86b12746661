package search

import (
	"bufio"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/pipeline"
)

// Mode is a search query's term-composition strategy (spec §4.9).
type Mode string

const (
	ModeAny   Mode = "any"
	ModeAll   Mode = "all"
	ModeExact Mode = "exact"
)

const maxResultRows = 1000

// Row is one search result: a matched file plus a highlighted excerpt
// of its indexed content.
type Row struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
}

type queryArgs struct {
	Account, Repo, Branch string
	Term                  string
	Mode                  Mode
	Path                  string
}

// Query runs Mode/Term/Path against account/repo/branch's index, caching
// the JSON-lines result set on disk keyed by (commit, fingerprint) per
// spec §4.9's query pipeline, and returns the artifact for the HTTP
// layer to stream and filter.
func (idx *Index) Query(ctx context.Context, account, repo, branch, term string, mode Mode, path string) (*core.Artifact, error) {
	return idx.queryPl.Run(ctx, queryArgs{Account: account, Repo: repo, Branch: branch, Term: term, Mode: mode, Path: path})
}

func (idx *Index) buildQueryPipeline(cacheDir string, quotaBytes int64) *pipeline.Pipeline[queryArgs] {
	p := pipeline.New[queryArgs](cacheDir, idx.queryInit, nil)
	p.OpenTemplate = "{account}/{repo}/{branch}/{commit}-{fingerprint}.json"
	p.Open = func(_ context.Context, vars core.Vars, out io.Writer) error {
		err := idx.runQuery(vars, out)
		if err == nil {
			idx.enforceQuota(filepath.Join(cacheDir, vars.String("account"), vars.String("repo"), vars.String("branch")), quotaBytes)
		}
		return err
	}
	return p
}

func (idx *Index) queryInit(_ context.Context, args queryArgs) (core.Vars, bool, error) {
	term := strings.ToLower(strings.TrimSpace(args.Term))
	if term == "" {
		return nil, false, nil
	}

	commit := "00000000"
	var scopeID int64
	var since sql.NullString
	scopeFound := false
	row := idx.store.QueryRowx(`SELECT id, since FROM scope WHERE account = ? AND repo = ? AND branch = ?`, args.Account, args.Repo, args.Branch)
	if err := row.Scan(&scopeID, &since); err == nil {
		scopeFound = true
		if since.Valid && since.String != "" {
			commit = since.String
		}
	}

	fp := fingerprint(term, string(args.Mode), args.Path)

	return core.Vars{
		"account":     args.Account,
		"repo":        args.Repo,
		"branch":      args.Branch,
		"commit":      commit,
		"fingerprint": fp,
		"term":        term,
		"mode":        string(args.Mode),
		"path":        args.Path,
		"scopeID":     scopeID,
		"scopeFound":  scopeFound,
	}, true, nil
}

// fingerprint hashes the query's identifying factors into the
// cache-path component spec §4.9 calls "fingerprint".
func fingerprint(term, mode, path string) string {
	sum := sha256.Sum256([]byte(term + "\x00" + mode + "\x00" + path))
	return hex.EncodeToString(sum[:])[:16]
}

// EtagFor computes the HTTP layer's Etag for a query result as served
// to a specific auth group: fingerprint of (term, mode, path,
// auth.group) (spec §4.9 "HTTP serve").
func EtagFor(term, mode, path, group string) string {
	sum := sha256.Sum256([]byte(term + "\x00" + mode + "\x00" + path + "\x00" + group))
	return hex.EncodeToString(sum[:])[:16]
}

func (idx *Index) runQuery(vars core.Vars, out io.Writer) error {
	if !vars["scopeFound"].(bool) {
		return nil
	}
	scopeID := vars["scopeID"].(int64)
	term := vars.String("term")
	mode := Mode(vars.String("mode"))
	pathPrefix := vars.String("path")

	matchExpr, terms := matchExprFor(term, mode)

	query := `SELECT f.path, f.category, f.title, t.content
		FROM files f JOIN text t ON t.rowid = f.textid
		WHERE f.scopeid = ? AND t.content MATCH ?`
	args := []any{scopeID, matchExpr}
	if pathPrefix != "" {
		query += ` AND f.path LIKE ?`
		args = append(args, pathPrefix+"%")
	}
	query += ` LIMIT ?`
	args = append(args, maxResultRows)

	rows, err := idx.store.Queryx(query, args...)
	if err != nil {
		return fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	bw := bufio.NewWriter(out)
	enc := json.NewEncoder(bw)
	for rows.Next() {
		var path, category, title, content string
		if err := rows.Scan(&path, &category, &title, &content); err != nil {
			return err
		}
		row := Row{Path: path, Category: category, Title: title, Excerpt: excerpt(content, terms)}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return bw.Flush()
}

// matchExprFor builds the FTS5 MATCH expression for mode and returns the
// individual terms excerpt() should highlight.
func matchExprFor(term string, mode Mode) (expr string, terms []string) {
	words := strings.Fields(term)
	if len(words) == 0 {
		words = []string{term}
	}
	switch mode {
	case ModeAny:
		return strings.Join(quoteAll(words), " OR "), words
	case ModeExact:
		return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`, []string{term}
	default: // ModeAll
		return strings.Join(quoteAll(words), " AND "), words
	}
}

func quoteAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return out
}

// enforceQuota evicts the least-recently-accessed files under dir until
// its total size is back under quotaBytes, never touching a file
// modified within the last 60 seconds (spec §4.9).
func (idx *Index) enforceQuota(dir string, quotaBytes int64) {
	if quotaBytes <= 0 {
		return
	}
	type cacheFile struct {
		path  string
		size  int64
		atime time.Time
		mtime time.Time
	}
	var files []cacheFile
	var total int64

	_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, cacheFile{path: p, size: info.Size(), atime: accessTime(info), mtime: info.ModTime()})
		total += info.Size()
		return nil
	})
	if total <= quotaBytes {
		return
	}

	sort.Slice(files, func(i, j int) bool { return files[i].atime.Before(files[j].atime) })
	grace := time.Now().Add(-60 * time.Second)
	for _, f := range files {
		if total <= quotaBytes {
			return
		}
		if f.mtime.After(grace) {
			continue
		}
		if err := os.Remove(f.path); err == nil {
			total -= f.size
		}
	}
}
