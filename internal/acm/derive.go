package acm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/globset"
)

var localeRe = regexp.MustCompile(`^([a-z]{2})_([A-Z]{2})$`)

// Derived is what per-request derivation (spec §4.6) contributes on top
// of the authenticated user's own groups.
type Derived struct {
	Groups []string
	Filter core.RecordFilter // nil means "accept everything"
}

// DeriveAcceptLanguage turns an `Accept-Language: ll_CC` style header
// value into a synthetic group; it never constrains the record filter.
func DeriveAcceptLanguage(locale string) (group string, ok bool) {
	if !localeRe.MatchString(locale) {
		return "", false
	}
	return "Accept-Language:" + locale, true
}

// DeriveQueryFilter builds a complement glob set from `filter=<patterns>`
// or `filter[includes]=...&filter[excludes]=...` query parameters. The
// derived group is the fingerprint of the canonicalized filter.
func DeriveQueryFilter(includes, excludes []string) (Derived, error) {
	if len(includes) == 0 && len(excludes) == 0 {
		return Derived{}, nil
	}
	c, err := globset.NewComplement(includes, excludes)
	if err != nil {
		return Derived{}, fmt.Errorf("acm: filter: %w", err)
	}
	canon, err := json.Marshal(struct {
		Includes []string `json:"includes"`
		Excludes []string `json:"excludes"`
	}{sortedCopy(includes), sortedCopy(excludes)})
	if err != nil {
		return Derived{}, err
	}
	group := fingerprint(string(canon))
	return Derived{
		Groups: []string{group},
		Filter: func(rec *core.FileRecord) bool { return c.Matches(rec.Path) },
	}, nil
}

// ClientVisibleSet maps a file's stable id to the version the client
// last saw, submitted as the request body's `cvs`.
type ClientVisibleSet map[string]string

// KnownVersion returns (version, true) if id is in the set.
func (cvs ClientVisibleSet) KnownVersion(id string) (string, bool) {
	v, ok := cvs[id]
	return v, ok
}

// DeriveCVSFilter builds the client-visible-set group and filter: a
// record passes iff it is new, differs in version from, or is deleted
// since the client's view. recordID/recordVersion extract a record's
// stable id and version (typically path and commit).
func DeriveCVSFilter(cvs ClientVisibleSet, recordID, recordVersion func(*core.FileRecord) string) (Derived, error) {
	if len(cvs) == 0 {
		return Derived{}, nil
	}
	keys := make([]string, 0, len(cvs))
	for k, v := range cvs {
		keys = append(keys, k+"="+v)
	}
	sort.Strings(keys)
	group := "CVS:" + fingerprintOrdered(keys)

	filter := func(rec *core.FileRecord) bool {
		id := recordID(rec)
		if rec.Status == core.StatusDeleted {
			_, known := cvs.KnownVersion(id)
			return known
		}
		known, ok := cvs.KnownVersion(id)
		if !ok {
			return true
		}
		return known != recordVersion(rec)
	}
	return Derived{Groups: []string{group}, Filter: filter}, nil
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// CombineFilters ANDs a set of filters together; nil filters are
// treated as always-accept.
func CombineFilters(filters ...core.RecordFilter) core.RecordFilter {
	nonNil := make([]core.RecordFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			nonNil = append(nonNil, f)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return func(rec *core.FileRecord) bool {
		for _, f := range nonNil {
			if !f(rec) {
				return false
			}
		}
		return true
	}
}
