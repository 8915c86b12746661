package negotiator

import (
	"path"
	"strings"

	"github.com/sevigo/locomote-server/internal/core"
)

const indexBasename = "index"

// Bundle is one resource path's representation tree, keyed
// [type][language][encoding][group]; missing dimensions collapse to
// core.Wildcard.
type Bundle struct {
	byType map[string]map[string]map[string]map[string]*core.Representation
}

func newBundle() *Bundle {
	return &Bundle{byType: map[string]map[string]map[string]map[string]*core.Representation{}}
}

func (b *Bundle) add(rep core.Representation) {
	t, l, e, g := orWildcard(rep.Type), orWildcard(rep.Language), orWildcard(rep.Encoding), orWildcard(rep.Group)
	byLang, ok := b.byType[t]
	if !ok {
		byLang = map[string]map[string]map[string]*core.Representation{}
		b.byType[t] = byLang
	}
	byEnc, ok := byLang[l]
	if !ok {
		byEnc = map[string]map[string]*core.Representation{}
		byLang[l] = byEnc
	}
	byGroup, ok := byEnc[e]
	if !ok {
		byGroup = map[string]*core.Representation{}
		byEnc[e] = byGroup
	}
	r := rep
	byGroup[g] = &r
}

func orWildcard(s string) string {
	if s == "" {
		return core.Wildcard
	}
	return s
}

// Preferred is the resolver chain's input: ordered preference lists
// for each negotiated dimension, most preferred first.
type Preferred struct {
	Types     []string
	Languages []string
	Encodings []string
	Groups    []string // tried in order against the representation's declared group and ctx.auth.userInfo.groups
}

// Choose traverses [mediaType, language, encoding, group], defaulting
// each level to "*" when it cannot resolve a concrete value, and
// returns the chosen representation.
func (b *Bundle) Choose(pref Preferred) (*core.Representation, bool) {
	byLang, t, ok := pickLevel(b.byType, pref.Types)
	if !ok {
		return nil, false
	}
	byEnc, _, ok := pickLevel(byLang, pref.Languages)
	if !ok {
		return nil, false
	}
	byGroup, _, ok := pickLevel(byEnc, pref.Encodings)
	if !ok {
		return nil, false
	}
	_ = t
	rep, _, ok := pickLevel(byGroup, pref.Groups)
	return rep, ok
}

// pickLevel returns the first candidate present in m, falling back to
// the wildcard entry, reporting the key it picked.
func pickLevel[V any](m map[string]V, candidates []string) (V, string, bool) {
	for _, c := range candidates {
		if v, ok := m[c]; ok {
			return v, c, true
		}
	}
	if v, ok := m[core.Wildcard]; ok {
		return v, core.Wildcard, true
	}
	var zero V
	return zero, "", false
}

// Index maps a resource (parent directory) path to its representation
// bundle, built once per branch listing.
type Index map[string]*Bundle

// BuildIndex scans paths for `index.*` files and groups their parsed
// representations by parent directory.
func BuildIndex(paths []string) Index {
	idx := Index{}
	for _, p := range paths {
		rep, parent, ok := parseIndexFile(p)
		if !ok {
			continue
		}
		b, exists := idx[parent]
		if !exists {
			b = newBundle()
			idx[parent] = b
		}
		b.add(rep)
	}
	return idx
}

func parseIndexFile(p string) (rep core.Representation, parent string, ok bool) {
	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if !strings.HasPrefix(base, indexBasename+".") && base != indexBasename {
		return core.Representation{}, "", false
	}
	rep.Path = p

	rest := strings.TrimPrefix(base, indexBasename)
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return rep, dir, true
	}
	for _, ext := range strings.Split(rest, ".") {
		kind, value := classify(ext)
		switch kind {
		case attrType:
			rep.Type = value
		case attrLanguage:
			rep.Language = value
		case attrEncoding:
			rep.Encoding = value
		case attrGroup:
			rep.Group = value
		}
	}
	return rep, dir, true
}

// GetParentResourcePath strips the `index.*` filename, returning the
// directory it lives in.
func GetParentResourcePath(p string) string {
	dir, base := path.Split(p)
	if base == indexBasename || strings.HasPrefix(base, indexBasename+".") {
		return strings.TrimSuffix(dir, "/")
	}
	return p
}
