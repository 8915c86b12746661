package fileset

import (
	"io"

	"github.com/sevigo/locomote-server/internal/core"
)

// Reader is the narrow read side a processor needs from a file's
// contents at a given commit.
type Reader = io.Reader

// Writer is the narrow write side a processor streams rewritten
// contents to.
type Writer = io.Writer

// SearchRecord is what a processor's MakeSearchRecord contributes to the
// full-text index: one row per indexable file.
type SearchRecord struct {
	ID       string
	Path     string
	Title    string
	Content  string
	Category string
}

// Processor implements one of the three category strategies named in
// spec §4.4: raw, html-rewrite, json-parse.
type Processor interface {
	Kind() core.ProcessorKind

	// MakeRecord builds the file record for path at commit. content is
	// nil for the raw processor, which never reads file contents.
	MakeRecord(path, category, commit string, status core.RecordStatus, content Reader) (*core.FileRecord, error)

	// PipeContents streams src to dst, rewriting along the way if the
	// processor requires it (html-rewrite only).
	PipeContents(ctx *core.RequestContext, path string, src Reader, dst Writer) error

	// MakeSearchRecord derives a search-index row from rec and its
	// contents, or ok=false if this record can't be indexed as text.
	MakeSearchRecord(rec *core.FileRecord, content Reader) (*SearchRecord, bool, error)
}

var registry = map[core.ProcessorKind]Processor{
	core.ProcessorRaw:         rawProcessor{},
	core.ProcessorHTMLRewrite: htmlRewriteProcessor{},
	core.ProcessorJSONParse:   jsonParseProcessor{},
}

func processorFor(kind core.ProcessorKind) (Processor, bool) {
	p, ok := registry[kind]
	return p, ok
}
