package core

// ProcessorKind names one of the three record-producing strategies a
// fileset can use.
type ProcessorKind string

const (
	ProcessorRaw         ProcessorKind = "raw"
	ProcessorHTMLRewrite  ProcessorKind = "html-rewrite"
	ProcessorJSONParse   ProcessorKind = "json-parse"
)

// CacheKind controls whether a fileset's content is itself cacheable, and
// under which policy.
type CacheKind string

const (
	CacheApp     CacheKind = "app"
	CacheContent CacheKind = "content"
	CacheNone    CacheKind = "none"
)

// Rewriter mutates or drops a file record during ACM filtering. A nil
// return drops the record from the response stream.
type Rewriter func(rec *FileRecord, ctx *RequestContext) *FileRecord

// Matcher decides whether a fileset owns a given repo-relative path.
type Matcher interface {
	Matches(path string) bool
}

// FilesetDef is a named subset of a repo's paths, selected by an
// include/exclude glob pair, with a processor and caching policy.
// Priority is assignment order: the first fileset (by Priority) whose
// matcher accepts a path owns it.
type FilesetDef struct {
	Category     string
	Include      []string
	Exclude      []string
	Cache        CacheKind
	CacheControl string
	Searchable   bool
	Restricted   bool
	ACM          Rewriter
	Processor    ProcessorKind
	Priority     int

	Matcher Matcher
}
