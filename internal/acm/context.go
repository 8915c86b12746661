package acm

import (
	"sort"
	"strings"

	"github.com/sevigo/locomote-server/internal/core"
)

// BuildAuthContext assembles the per-request AuthContext: accessible
// categories, group/$group fingerprints, and the combined record
// filter, per spec §4.6.
//
// accessible = (unrestricted fileset categories) ∪ (user groups) ∪
// (derived groups). Canonicalize into a sorted list in which fileset
// category names are replaced by their fingerprint, then fingerprint
// the joined list to produce group; the same with CVS-prefixed groups
// removed yields $group.
func BuildAuthContext(settings *core.AuthSettings, user core.UserInfo, derived []Derived) *core.AuthContext {
	var allGroups []string
	allGroups = append(allGroups, user.Groups...)
	var filters []core.RecordFilter
	for _, d := range derived {
		allGroups = append(allGroups, d.Groups...)
		filters = append(filters, d.Filter)
	}

	unrestricted := unrestrictedCategories(settings.Filesets)
	accessible := map[string]bool{}
	for _, c := range unrestricted {
		accessible[c] = true
	}
	groupSet := map[string]bool{}
	for _, g := range allGroups {
		groupSet[g] = true
	}
	for _, d := range settings.Filesets {
		if d.Restricted && filesetGrantedBy(d, groupSet) {
			accessible[d.Category] = true
		}
	}

	canon := canonicalize(settings, unrestricted, allGroups)
	group := fingerprintOrdered(canon)

	withoutCVS := canonicalize(settings, unrestricted, withoutCVSGroups(allGroups))
	dollarGroup := fingerprintOrdered(withoutCVS)

	return &core.AuthContext{
		Settings:    settings,
		UserInfo:    user,
		Accessible:  accessible,
		Group:       group,
		DollarGroup: dollarGroup,
		Filter:      CombineFilters(filters...),
		Rewrites:    settings.Rewrites,
	}
}

// filesetGrantedBy reports whether any of a restricted fileset's
// capability-group names (its category itself, by convention) is
// present in groupSet. Locomote ties a restricted category's grant to
// a same-named group; manifests wanting finer control name additional
// groups via the fileset's `acm` rewriter instead.
func filesetGrantedBy(d *core.FilesetDef, groupSet map[string]bool) bool {
	return groupSet[d.Category]
}

func canonicalize(settings *core.AuthSettings, unrestricted, groups []string) []string {
	out := make([]string, 0, len(unrestricted)+len(groups))
	for _, c := range unrestricted {
		if fp, ok := settings.Fingerprints[c]; ok {
			out = append(out, fp)
		} else {
			out = append(out, c)
		}
	}
	for _, g := range groups {
		if fp, ok := settings.Fingerprints[g]; ok {
			out = append(out, fp)
		} else {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

func withoutCVSGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if !strings.HasPrefix(g, "CVS:") {
			out = append(out, g)
		}
	}
	return out
}

// FilterAndRewrite returns nil if rec's category isn't accessible or
// the request filter rejects it; otherwise it applies the category's
// rewriter (identity if none registered), which may itself return nil.
func FilterAndRewrite(authCtx *core.AuthContext, reqCtx *core.RequestContext, rec *core.FileRecord) *core.FileRecord {
	if !authCtx.Accessible[rec.Category] {
		return nil
	}
	if authCtx.Filter != nil && !authCtx.Filter(rec) {
		return nil
	}
	rewrite, ok := authCtx.Rewrites[rec.Category]
	if !ok {
		return rec
	}
	return rewrite(rec, reqCtx)
}
