package handler

import (
	"net/http"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/search"
)

// handleSearch implements GET /search.api (spec §6.1): params `s`
// (term), `m` (mode: any/all/exact), `p` (path prefix filter); streams
// the matched rows as a JSON array via search.Index.Serve, which
// itself applies ACM accessibility/filtering and the negotiator's
// preferred-representation predicate per row.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusBadRequest, "search.api requires GET", nil)
		return
	}
	if !h.mustAuthenticate(w, r, reqCtx) {
		return
	}

	q := r.URL.Query()
	term := q.Get("s")
	mode := search.Mode(q.Get("m"))
	if mode == "" {
		mode = search.ModeAny
	}
	path := q.Get("p")

	art, err := h.Search.Query(r.Context(), reqCtx.Account, reqCtx.Repo, reqCtx.Branch, term, mode, path)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	etag := search.EtagFor(term, string(mode), path, reqCtx.Auth.Group)
	w.Header().Set("Etag", `"`+etag+`"`)
	w.Header().Set("Content-Location", reqCtx.BasePath+"/search.api")
	if h.DefaultCacheControl != "" {
		w.Header().Set("Cache-Control", h.DefaultCacheControl)
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == `"`+etag+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	headers := negotiatorHeaders(r)
	if err := h.Search.Serve(w, art, reqCtx.Auth, reqCtx, h.Negotiator, headers); err != nil {
		h.Logger.Error("search.api: serve failed", "error", err, "repo", reqCtx.Key())
	}
}
