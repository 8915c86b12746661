package core

// UserInfo is what an authentication method produces for a request.
type UserInfo struct {
	User          string
	Authenticated bool
	Groups        []string
}

// RecordFilter accepts or rejects a record based on request-derived
// criteria (a client filter glob, a client-visible-set comparison, ...).
type RecordFilter func(rec *FileRecord) bool

// AuthContext is the per-request authorization state ACM builds after
// authentication: which fileset categories are visible, which record
// filter and rewriters apply, and the deterministic group fingerprints
// used for caching and etags.
type AuthContext struct {
	Settings *AuthSettings

	UserInfo UserInfo

	// Accessible is the set of fileset categories this request may read:
	// every unrestricted category, plus every category implied by the
	// user's and request-derived groups.
	Accessible map[string]bool

	// Group is a deterministic fingerprint of the sorted union of the
	// user's groups and all unrestricted fileset category fingerprints.
	Group string

	// DollarGroup is Group with any client-visible-set group removed.
	DollarGroup string

	Filter   RecordFilter
	Rewrites map[string]Rewriter
}

// AuthSettings is the per-repo authorization configuration: how to
// authenticate, the fileset list driving Accessible/Rewrites, and a
// fingerprint of the manifest that produced it (used for cache
// invalidation and as part of ETags).
type AuthSettings struct {
	Method      string
	Users       map[string]string // basic-auth user -> password, compared as stored
	Filesets    []*FilesetDef
	Fingerprints map[string]string // category -> deterministic fingerprint
	Rewrites    map[string]Rewriter
	Fingerprint string // manifest commit/hash this settings object was built from
}
