package core

import "path/filepath"

// On-disk layout, relative to the configured roots. Kept as named
// helpers rather than scattered string concatenation so every subsystem
// agrees on where things live (see spec §6.3).
type Layout struct {
	ContentRepoHome string // bare VCRs: {root}/{account}/{repo}.git
	CacheDir        string // pipeline artifacts
	WorkspaceHome   string // {workspaceHome}/{account}/build.log
	SearchDBPath    string // search.sqlite
	SearchCacheDir  string // publish_cache/search/...
}

func (l Layout) RepoPath(account, repo string) string {
	return filepath.Join(l.ContentRepoHome, account, repo+".git")
}

func (l Layout) BuildLogPath(account string) string {
	return filepath.Join(l.WorkspaceHome, account, "build.log")
}

func (l Layout) WorkspaceDir(account, repo string) string {
	return filepath.Join(l.WorkspaceHome, account, repo)
}

func (l Layout) SearchResultCachePath(account, repo, branch, commit, fingerprint string) string {
	return filepath.Join(l.SearchCacheDir, account, repo, branch, commit+"-"+fingerprint+".json")
}

func (l Layout) IDBDir() string {
	return filepath.Join(l.CacheDir, "idb")
}
