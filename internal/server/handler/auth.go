package handler

import (
	"net/http"
	"strings"

	"github.com/sevigo/locomote-server/internal/acm"
	"github.com/sevigo/locomote-server/internal/core"
)

// credentials extracts HTTP Basic auth from r, if any.
func credentials(r *http.Request) acm.Credentials {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return acm.Credentials{}
	}
	return acm.Credentials{User: user, Password: pass, Present: true}
}

// authenticate runs ACM end to end for reqCtx: resolves this
// repo/branch's AuthSettings, authenticates the request's credentials,
// derives any per-request groups/filters (Accept-Language, a query
// `filter`), and attaches the resulting AuthContext to reqCtx. Callers
// that need a CVS-derived filter too (POST /updates.api) append their
// own Derived before calling acm.BuildAuthContext directly instead of
// this helper.
func (h *Handler) authenticate(r *http.Request, reqCtx *core.RequestContext) error {
	return h.authenticateWithExtra(r, reqCtx, nil)
}

// authenticateWithExtra is authenticate plus caller-supplied Derived
// entries (POST /updates.api's CVS filter, notably), appended after
// the request-derived ones.
func (h *Handler) authenticateWithExtra(r *http.Request, reqCtx *core.RequestContext, extra []acm.Derived) error {
	settings, err := h.Settings.Get(reqCtx)
	if err != nil {
		return err
	}

	userInfo, err := acm.Authenticate(settings, credentials(r), h.AuthRealm)
	if err != nil {
		return err
	}

	derived, err := h.deriveFromRequest(r)
	if err != nil {
		return err
	}
	derived = append(derived, extra...)

	reqCtx.Auth = acm.BuildAuthContext(settings, userInfo, derived)
	return nil
}

// deriveFromRequest builds the Derived list a plain GET/HEAD request
// can contribute: an Accept-Language-derived group, and a
// `filter`/`filter[includes]`/`filter[excludes]` query-derived glob
// filter. POST bodies (CVS) are handled by each endpoint that accepts
// one.
func (h *Handler) deriveFromRequest(r *http.Request) ([]acm.Derived, error) {
	var out []acm.Derived

	if locale := r.Header.Get("Accept-Language"); locale != "" {
		if group, ok := acm.DeriveAcceptLanguage(locale); ok {
			out = append(out, acm.Derived{Groups: []string{group}})
		}
	}

	q := r.URL.Query()
	includes := splitCSV(q.Get("filter"))
	includes = append(includes, q["filter[includes]"]...)
	excludes := q["filter[excludes]"]
	if len(includes) > 0 || len(excludes) > 0 {
		d, err := acm.DeriveQueryFilter(includes, excludes)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}

	return out, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
