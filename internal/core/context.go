// Package core defines the domain types shared across Locomote Server's
// subsystems: request context, filesets, file records, representations
// and auth context. These are intentionally free of any subsystem's
// implementation details so that the pipeline, fileDB, negotiator and
// ACM packages can all depend on them without import cycles.
package core

import "fmt"

// RequestContext carries everything an operation needs to know about the
// account/repo/branch a request is scoped to, plus presentation details
// filled in as the request is processed. It is built once per request by
// the HTTP layer and threaded through every subsystem unchanged, except
// for Auth, which ACM populates after authentication.
type RequestContext struct {
	Account  string
	Repo     string
	Branch   string
	RepoPath string // absolute path to the bare VCR, {root}/{account}/{repo}.git
	BasePath string // repo-relative URL base this request was mounted under
	Hostname string
	Trailing []string // path segments after the account/repo/branch prefix
	Secure   bool

	Auth *AuthContext
}

// Key returns the canonical "account/repo/branch" string used as a cache
// and invalidation key throughout the system.
func (c *RequestContext) Key() string {
	return fmt.Sprintf("%s/%s/%s", c.Account, c.Repo, c.Branch)
}
