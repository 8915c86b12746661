// Package acm builds per-request authorization state: auth settings
// per repo, request-derived group memberships and record filters,
// credential authentication, and the accessible-category/group
// fingerprints every response's etag and cache key depend on.
package acm

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// fingerprint deterministically hashes a sorted, joined list of
// strings, matching the teacher's sha256-over-canonicalized-content
// idiom (internal/llm/rag.go, arch_context.go) used wherever this repo
// needs a stable short identifier instead of a full digest.
func fingerprint(parts ...string) string {
	sorted := append([]string(nil), parts...)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(h[:])[:16]
}

// fingerprintOrdered hashes parts in the given order, for inputs whose
// order is already the canonical one (e.g. the accessible-categories
// list, which is sorted once by the caller before fingerprinting).
func fingerprintOrdered(parts []string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])[:16]
}
