// Package manifest loads, resolves and caches per-branch locomote.json
// manifests. It is grounded on the async single-flight/LRU primitives in
// internal/async, the same memoize-with-invalidation shape the teacher
// repo uses for its review-cache lookups.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
)

// Source is the narrow slice of the VCR adapter the manifest cache
// needs: reading a file's bytes and its owning commit on a branch.
type Source interface {
	ReadFileAt(repoPath, branch, path string) (content []byte, commit string, err error)
}

// Entry pairs a resolved manifest with the commit it was loaded from,
// since the auth-settings cache fingerprints by that commit.
type Entry struct {
	Manifest *core.Manifest
	Commit   string
}

const manifestPath = "locomote.json"

// Cache loads and memoizes manifests keyed by (repoPath, branch), with
// single-flighted population and explicit eviction on repo update.
type Cache struct {
	source Source
	cache  *async.CachingSingleton[Entry]
}

// NewCache creates a manifest cache backed by source with capacity LRU
// entries.
func NewCache(source Source, capacity int) (*Cache, error) {
	c, err := async.NewCachingSingleton[Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{source: source, cache: c}, nil
}

func key(repoPath, branch string) string {
	return repoPath + "\x00" + branch
}

// Get returns the resolved manifest for (repoPath, branch), loading and
// caching it on first use. A missing locomote.json yields the default
// manifest rather than an error.
func (c *Cache) Get(repoPath, branch string) (Entry, error) {
	return c.cache.Do(key(repoPath, branch), func() (Entry, error) {
		raw, commit, err := c.source.ReadFileAt(repoPath, branch, manifestPath)
		if err != nil {
			return Entry{Manifest: core.DefaultManifest(), Commit: commit}, nil
		}

		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return Entry{}, fmt.Errorf("manifest: %s@%s: %w", repoPath, branch, err)
		}
		resolved, err := resolveRefs(doc, branch)
		if err != nil {
			return Entry{}, fmt.Errorf("manifest: %s@%s: %w", repoPath, branch, err)
		}
		m, err := decode(resolved)
		if err != nil {
			return Entry{}, fmt.Errorf("manifest: %s@%s: %w", repoPath, branch, err)
		}
		return Entry{Manifest: m, Commit: commit}, nil
	})
}

// Evict drops the cached manifest for the exact (repoPath, branch), so
// the next Get reloads it. Cache does not implement
// core.RepoUpdateListener itself; other branches of the same repo stay
// cached.
func (c *Cache) Evict(repoPath, branch string) {
	c.cache.Evict(key(repoPath, branch))
}

func decode(doc map[string]any) (*core.Manifest, error) {
	m := core.DefaultManifest()

	if v, ok := doc["public"]; ok {
		pub, err := stringOrSlice(v)
		if err != nil {
			return nil, fmt.Errorf("public: %w", err)
		}
		m.Public = pub
	}

	if v, ok := doc["auth"]; ok {
		auth, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("auth: expected object")
		}
		m.Auth = auth
	}

	if v, ok := doc["indexed"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("indexed: expected bool")
		}
		m.Indexed = b
	}

	if v, ok := doc["build"]; ok {
		build, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("build: expected object")
		}
		ref, err := decodeBuildRef(build)
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		m.Build = ref
	}

	return m, nil
}

func decodeBuildRef(build map[string]any) (*core.BuildProfileRef, error) {
	profile, ok := build["profile"]
	if !ok {
		return nil, nil
	}
	switch p := profile.(type) {
	case string:
		return &core.BuildProfileRef{ProfileID: p}, nil
	case map[string]any:
		inline := &core.BuildProfile{}
		if id, ok := p["id"].(string); ok {
			inline.ID = id
		}
		if cmd, ok := p["command"]; ok {
			c, err := stringOrSlice(cmd)
			if err != nil {
				return nil, fmt.Errorf("profile.command: %w", err)
			}
			inline.Command = c
		}
		if buildable, ok := p["buildable"]; ok {
			b, err := stringOrSlice(buildable)
			if err != nil {
				return nil, fmt.Errorf("profile.buildable: %w", err)
			}
			inline.Buildable = b
		}
		return &core.BuildProfileRef{Inline: inline}, nil
	default:
		return nil, fmt.Errorf("profile: expected string or object")
	}
}

// stringOrSlice decodes a manifest field that may be a bare string or a
// JSON array of strings, per spec's `public: string|[string]` grammar.
func stringOrSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected array of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string or array of strings")
	}
}
