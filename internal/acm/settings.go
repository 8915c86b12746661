package acm

import (
	"sort"
	"strings"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
)

// GlobalDefaults is the server-wide authentication fallback, applied
// wherever a repo's manifest carries no `auth` key.
type GlobalDefaults struct {
	Method string
	Users  map[string]string
}

// SettingsSource supplies everything BuildSettings needs for one repo
// branch: the resolved manifest entry and its compiled fileset
// registry.
type SettingsSource interface {
	Manifest(ctx *core.RequestContext) (manifest *core.Manifest, manifestCommit string, err error)
	Filesets(ctx *core.RequestContext) ([]*core.FilesetDef, error)
}

// SettingsCache builds and memoizes AuthSettings per ctx.Key(), backed
// by SettingsSource, with single-flighted population and eviction on
// repo update — mirroring the manifest cache's shape (spec §4.6).
type SettingsCache struct {
	defaults GlobalDefaults
	source   SettingsSource
	cache    *async.CachingSingleton[*core.AuthSettings]
}

// NewSettingsCache creates a settings cache with the given global
// defaults and capacity.
func NewSettingsCache(defaults GlobalDefaults, source SettingsSource, capacity int) (*SettingsCache, error) {
	c, err := async.NewCachingSingleton[*core.AuthSettings](capacity)
	if err != nil {
		return nil, err
	}
	return &SettingsCache{defaults: defaults, source: source, cache: c}, nil
}

// Get returns the AuthSettings for ctx, building them on first use.
func (s *SettingsCache) Get(ctx *core.RequestContext) (*core.AuthSettings, error) {
	return s.cache.Do(ctx.Key(), func() (*core.AuthSettings, error) {
		man, commit, err := s.source.Manifest(ctx)
		if err != nil {
			return nil, err
		}
		filesets, err := s.source.Filesets(ctx)
		if err != nil {
			return nil, err
		}
		return buildSettings(s.defaults, man, commit, filesets), nil
	})
}

// OnRepoUpdate implements core.RepoUpdateListener.
func (s *SettingsCache) OnRepoUpdate(evt core.RepoUpdateEvent) {
	s.cache.Evict(evt.Key)
}

func buildSettings(defaults GlobalDefaults, man *core.Manifest, manifestCommit string, filesets []*core.FilesetDef) *core.AuthSettings {
	method := defaults.Method
	users := defaults.Users
	if man.Auth != nil {
		if m, ok := man.Auth["method"].(string); ok && m != "" {
			method = m
		}
		if raw, ok := man.Auth["users"].(map[string]any); ok {
			merged := make(map[string]string, len(raw))
			for k, v := range raw {
				if s, ok := v.(string); ok {
					merged[k] = s
				}
			}
			users = merged
		}
	}

	fingerprints := make(map[string]string, len(filesets))
	rewrites := make(map[string]core.Rewriter, len(filesets))
	for _, d := range filesets {
		fingerprints[d.Category] = fingerprint(d.Category, strings.Join(d.Include, ","), strings.Join(d.Exclude, ","), string(d.Processor))
		if d.ACM != nil {
			rewrites[d.Category] = d.ACM
		}
	}

	return &core.AuthSettings{
		Method:       method,
		Users:        users,
		Filesets:     filesets,
		Fingerprints: fingerprints,
		Rewrites:     rewrites,
		Fingerprint:  manifestCommit,
	}
}

// unrestrictedCategories returns the sorted category names of every
// fileset not marked Restricted.
func unrestrictedCategories(filesets []*core.FilesetDef) []string {
	var out []string
	for _, d := range filesets {
		if !d.Restricted {
			out = append(out, d.Category)
		}
	}
	sort.Strings(out)
	return out
}
