package negotiator

import (
	"path"
	"strings"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
)

// Lister lists every tracked path at a branch's head commit. It is the
// narrow dependency this package needs from the fileDB/VCR layer.
type Lister interface {
	ListTrackedPaths(ctx *core.RequestContext) ([]string, error)
}

// Negotiator caches one representation Index per ctx.Key(), built from
// Lister, and resolves requests against it.
type Negotiator struct {
	lister Lister
	cache  *async.CachingSingleton[Index]
}

// New creates a negotiator backed by lister, memoizing up to capacity
// branches' representation indexes.
func New(lister Lister, capacity int) (*Negotiator, error) {
	c, err := async.NewCachingSingleton[Index](capacity)
	if err != nil {
		return nil, err
	}
	return &Negotiator{lister: lister, cache: c}, nil
}

// OnRepoUpdate implements core.RepoUpdateListener: drop the cached
// representation index for the updated branch.
func (n *Negotiator) OnRepoUpdate(evt core.RepoUpdateEvent) {
	n.cache.Evict(evt.Key)
}

func (n *Negotiator) index(ctx *core.RequestContext) (Index, error) {
	return n.cache.Do(ctx.Key(), func() (Index, error) {
		paths, err := n.lister.ListTrackedPaths(ctx)
		if err != nil {
			return nil, err
		}
		return BuildIndex(paths), nil
	})
}

// Headers is the subset of request headers the resolver chain consumes.
type Headers struct {
	Accept         []string // Accept media ranges, in q-weighted order
	AcceptLanguage []string
	AcceptEncoding []string
}

// GetRepresentationPath normalizes requestPath to its bundle's resource
// key (see normalizeResourcePath), resolves a representation through
// Choose, and returns the winning representation's path — or
// requestPath unchanged if no bundle exists for that resource.
func (n *Negotiator) GetRepresentationPath(ctx *core.RequestContext, headers Headers, requestPath string) (string, error) {
	idx, err := n.index(ctx)
	if err != nil {
		return "", err
	}

	resource := normalizeResourcePath(requestPath)
	b, ok := idx[resource]
	if !ok {
		return requestPath, nil
	}

	pref := Preferred{
		Types:     headers.Accept,
		Languages: headers.AcceptLanguage,
		Encodings: headers.AcceptEncoding,
		Groups:    groupPreference(ctx),
	}
	rep, ok := b.Choose(pref)
	if !ok {
		return requestPath, nil
	}
	return rep.Path, nil
}

// IsPreferredPath reports whether candidatePath is the representation
// GetRepresentationPath would choose for its own resource under
// headers — the predicate the search result stream uses to suppress
// rows naming a representation other than the one this request would
// actually be served (spec §4.9 "HTTP serve").
func (n *Negotiator) IsPreferredPath(ctx *core.RequestContext, headers Headers, candidatePath string) (bool, error) {
	chosen, err := n.GetRepresentationPath(ctx, headers, candidatePath)
	if err != nil {
		return false, err
	}
	return chosen == candidatePath, nil
}

// groupPreference returns the first listed negotiator-group that must
// be both declared on the representation and present in the user's
// groups; Choose's wildcard fallback covers representations with no
// group dimension at all.
func groupPreference(ctx *core.RequestContext) []string {
	if ctx.Auth == nil {
		return nil
	}
	return append([]string(nil), ctx.Auth.UserInfo.Groups...)
}

// normalizeResourcePath maps requestPath to the Index key its bundle
// would live under. A request naming an index file directly (basename
// "index" or "index.*", however it reached us) resolves to that
// file's parent directory, so "docs/index.html" and the bare
// directory request "docs" both key the "docs" bundle, and the root
// index file keys "". Anything else — a concrete non-index file, a
// directory with no index bundle — is returned as-is and simply won't
// be found in the Index, which GetRepresentationPath already treats
// as "pass the request straight through".
func normalizeResourcePath(requestPath string) string {
	p := strings.Trim(requestPath, "/")
	if p == "" {
		return ""
	}
	base := path.Base(p)
	if base != indexBasename && !strings.HasPrefix(base, indexBasename+".") {
		return p
	}
	dir := path.Dir(p)
	if dir == "." {
		dir = ""
	}
	return dir
}

// GetContextKey returns a key uniquely identifying this negotiation
// decision: the accept-* headers concatenated, with the ACM group
// fingerprint appended when group negotiation participates.
func GetContextKey(ctx *core.RequestContext, h Headers) string {
	var b strings.Builder
	b.WriteString(strings.Join(h.Accept, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(h.AcceptLanguage, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(h.AcceptEncoding, ","))
	if ctx.Auth != nil && len(ctx.Auth.UserInfo.Groups) > 0 {
		b.WriteString(":")
		b.WriteString(ctx.Auth.Group)
	}
	return b.String()
}
