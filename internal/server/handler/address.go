package handler

import (
	"fmt"
	"strings"

	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/core"
)

// addressResolver implements spec §6.1's address grammar:
// /<account-or-@account>/<repo>?/<branch>?/<endpoint-or-path>. It
// greedily consumes each segment only once branchdb confirms it names
// a real account/repo/branch, falling back to the account's default
// repo and the repo's default public branch otherwise — the same
// "check membership before consuming" approach the teacher's address
// parsing has no equivalent of, so this is grounded on spec §6.1 and
// §4.10 (GetDefaultPublicBranch) directly rather than ported code.
type addressResolver struct {
	db *branchdb.BranchDB
}

// resolved is the outcome of parsing one request path: the populated
// RequestContext fields plus whatever path segments remain after the
// account/repo/branch prefix.
type resolved struct {
	Account  string
	Repo     string
	Branch   string
	RepoPath string
	BasePath string
	Rest     []string
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// resolve parses segs (the request's path, already split) into a
// resolved address, or returns core.ErrNotFound when the account,
// repo or branch cannot be determined.
func (r *addressResolver) resolve(segs []string) (*resolved, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty request path", core.ErrNotFound)
	}

	var account string
	var consumed []string
	accountOnly := false

	first := segs[0]
	segs = segs[1:]
	if strings.HasPrefix(first, "@") {
		account = first[1:]
		accountOnly = true
		consumed = append(consumed, first)
	} else {
		account = first
		consumed = append(consumed, first)
	}
	if !r.db.IsAccountName(account) {
		return nil, fmt.Errorf("%w: unknown account %q", core.ErrNotFound, account)
	}

	var repo string
	var ok bool
	if accountOnly {
		repo, ok = r.db.GetDefaultRepo(account)
		if !ok {
			return nil, fmt.Errorf("%w: account %q has no default repo", core.ErrNotFound, account)
		}
	} else if len(segs) > 0 && r.db.IsRepoName(account, segs[0]) {
		repo = segs[0]
		consumed = append(consumed, repo)
		segs = segs[1:]
	} else {
		repo, ok = r.db.GetDefaultRepo(account)
		if !ok {
			return nil, fmt.Errorf("%w: account %q has no default repo", core.ErrNotFound, account)
		}
	}

	var branch string
	if len(segs) > 0 && (r.db.IsPublicBranch(account, repo, segs[0]) || r.db.IsBuildableBranch(account, repo, segs[0])) {
		branch = segs[0]
		consumed = append(consumed, branch)
		segs = segs[1:]
	} else {
		branch, ok = r.db.GetDefaultPublicBranch(account, repo)
		if !ok {
			return nil, fmt.Errorf("%w: %s/%s has no default public branch", core.ErrNotFound, account, repo)
		}
	}

	repoPath, ok := r.db.RepoPath(account, repo)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrNotFound, account, repo)
	}

	return &resolved{
		Account:  account,
		Repo:     repo,
		Branch:   branch,
		RepoPath: repoPath,
		BasePath: "/" + strings.Join(consumed, "/"),
		Rest:     segs,
	}, nil
}

// context builds the core.RequestContext this resolution produces,
// ready for ACM/VCR calls. Auth is filled in separately once
// authentication runs.
func (res *resolved) context(hostname string, secure bool) *core.RequestContext {
	return &core.RequestContext{
		Account:  res.Account,
		Repo:     res.Repo,
		Branch:   res.Branch,
		RepoPath: res.RepoPath,
		BasePath: res.BasePath,
		Hostname: hostname,
		Trailing: res.Rest,
		Secure:   secure,
	}
}
