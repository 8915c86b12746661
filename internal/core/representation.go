package core

// Representation is one concrete file that can satisfy a resource path;
// a resource may have several, differing in media type, language,
// encoding, or capability group. Representations are derived from the
// extension components of an `index.*` filename.
type Representation struct {
	Path     string
	Type     string // MIME type, e.g. "text/html"
	Language string // two-letter language code
	Encoding string // ascii, utf-8, gzip, ...
	Group    string // capability group, negotiated against auth.userInfo.groups
}

// Wildcard is the catch-all value used at any representation-tree level
// the negotiator cannot resolve a concrete attribute for.
const Wildcard = "*"
