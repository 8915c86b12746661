// Package branchdb discovers accounts and repositories under the
// configured content root and tracks each repo's public and buildable
// branches, derived from its manifest (spec §4.10). It is grounded on
// the teacher's repomanager.scan.go depth-bounded directory walk
// (fullLocalScan/incrementalLocalScan), generalized from "one tracked
// repo per webhook event" to "every *.git directory two levels under a
// configured root".
package branchdb

import (
	"os"
	"path/filepath"
	"strings"
)

// repoRef is one discovered bare repository, before its manifest has
// been loaded.
type repoRef struct {
	Account  string
	Repo     string
	RepoPath string
}

// scanRoot walks root to depth 2, matching "{account}/{repo}.git"
// directories. Non-directory entries and anything not ending in ".git"
// are ignored; a root that doesn't exist yields no repos rather than an
// error (a fresh deployment may not have its content root populated
// yet).
func scanRoot(root string) ([]repoRef, error) {
	accounts, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []repoRef
	for _, acc := range accounts {
		if !acc.IsDir() {
			continue
		}
		accountDir := filepath.Join(root, acc.Name())
		entries, err := os.ReadDir(accountDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || !strings.HasSuffix(e.Name(), ".git") {
				continue
			}
			refs = append(refs, repoRef{
				Account:  acc.Name(),
				Repo:     strings.TrimSuffix(e.Name(), ".git"),
				RepoPath: filepath.Join(accountDir, e.Name()),
			})
		}
	}
	return refs, nil
}
