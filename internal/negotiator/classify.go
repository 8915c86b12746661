// Package negotiator indexes a branch's `index.*` files into
// representation bundles and picks the best representation for a
// request, per spec §4.5.
package negotiator

import (
	"mime"
	"regexp"
	"strings"
)

type attrKind int

const (
	attrType attrKind = iota
	attrLanguage
	attrEncoding
	attrGroup
)

var (
	mimeKindRe = regexp.MustCompile(`^(application|audio|font|image|text|video)/\S+$`)
	langRe     = regexp.MustCompile(`^\w\w$`)
	encodingRe = regexp.MustCompile(`^(ascii|latin1|iso8859-1|ucs-?2|ucs-?16le|utf-?8|base64|hex|gzip)$`)
)

// classify determines what role one `index.*` extension component
// plays: a MIME type (looked up via the standard library's extension
// table), a language code, an encoding, or — the fallback — a
// capability group consumed by the ACM negotiator.
func classify(ext string) (kind attrKind, value string) {
	lower := strings.ToLower(ext)

	if mt := mime.TypeByExtension("." + lower); mt != "" {
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = mt[:i]
		}
		if mimeKindRe.MatchString(mt) {
			return attrType, mt
		}
	}
	if langRe.MatchString(lower) {
		return attrLanguage, lower
	}
	if encodingRe.MatchString(lower) {
		return attrEncoding, lower
	}
	return attrGroup, ext
}
