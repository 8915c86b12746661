// Package fileset compiles fileset definitions into matchers and
// dispatches path-owning lookups to the matching category's processor,
// per spec §4.4. It is grounded on internal/globset for matching and on
// golang.org/x/net/html (already in the example pack via
// inful-docbuilder's templates/linkverify packages) for the
// html-rewrite processor.
package fileset

import (
	"fmt"
	"sort"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/globset"
)

// Registry holds a repo's fileset definitions compiled into matchers and
// ordered by priority, ready for path lookups.
type Registry struct {
	defs []*core.FilesetDef
}

// NewRegistry compiles defs' include/exclude globs into matchers and
// sorts them by Priority, ascending. The first fileset (lowest Priority)
// whose matcher accepts a path owns it.
func NewRegistry(defs []core.FilesetDef) (*Registry, error) {
	compiled := make([]*core.FilesetDef, len(defs))
	for i := range defs {
		d := defs[i]
		m, err := globset.NewComplement(d.Include, d.Exclude)
		if err != nil {
			return nil, fmt.Errorf("fileset: category %q: %w", d.Category, err)
		}
		d.Matcher = m
		compiled[i] = &d
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority < compiled[j].Priority })
	return &Registry{defs: compiled}, nil
}

// Lookup returns the first fileset (by priority) whose matcher accepts
// path, or nil if none owns it.
func (r *Registry) Lookup(path string) *core.FilesetDef {
	for _, d := range r.defs {
		if d.Matcher.Matches(path) {
			return d
		}
	}
	return nil
}

// ByCategory returns the fileset definition for category, or nil.
func (r *Registry) ByCategory(category string) *core.FilesetDef {
	for _, d := range r.defs {
		if d.Category == category {
			return d
		}
	}
	return nil
}

// All returns the registry's filesets in priority order.
func (r *Registry) All() []*core.FilesetDef {
	out := make([]*core.FilesetDef, len(r.defs))
	copy(out, r.defs)
	return out
}

// MakeFileRecord delegates to the owning fileset's processor. content is
// only read for published records whose processor needs file contents
// (html-rewrite, json-parse); pass nil for deleted records or raw
// filesets. Returns (nil, nil) if no fileset owns path, matching the
// spec's "no owning fileset" case.
func (r *Registry) MakeFileRecord(path, commit string, status core.RecordStatus, content Reader) (*core.FileRecord, error) {
	def := r.Lookup(path)
	if def == nil {
		return nil, nil
	}
	if status == core.StatusDeleted {
		return &core.FileRecord{Path: path, Category: def.Category, Status: status, Commit: commit}, nil
	}
	proc, ok := processorFor(def.Processor)
	if !ok {
		return nil, fmt.Errorf("fileset: category %q: unknown processor %q", def.Category, def.Processor)
	}
	return proc.MakeRecord(path, def.Category, commit, status, content)
}

// PipeContents streams path's contents from src to dst through the
// owning fileset's processor (which may rewrite the stream, e.g.
// html-rewrite relocating absolute URLs). Returns core.ErrNotFound if no
// fileset owns path.
func (r *Registry) PipeContents(ctx *core.RequestContext, path string, src Reader, dst Writer) error {
	def := r.Lookup(path)
	if def == nil {
		return core.ErrNotFound
	}
	proc, ok := processorFor(def.Processor)
	if !ok {
		return fmt.Errorf("fileset: category %q: unknown processor %q", def.Category, def.Processor)
	}
	return proc.PipeContents(ctx, path, src, dst)
}

// MakeSearchRecord delegates to the owning fileset's processor, or
// returns ok=false if the fileset isn't searchable or owns nothing.
func (r *Registry) MakeSearchRecord(rec *core.FileRecord, content Reader) (*SearchRecord, bool, error) {
	def := r.ByCategory(rec.Category)
	if def == nil || !def.Searchable {
		return nil, false, nil
	}
	proc, ok := processorFor(def.Processor)
	if !ok {
		return nil, false, fmt.Errorf("fileset: category %q: unknown processor %q", def.Category, def.Processor)
	}
	return proc.MakeSearchRecord(rec, content)
}
