package handler

import (
	"net/http"
	"strings"

	"github.com/sevigo/locomote-server/internal/core"
)

// handleFile implements GET /<rest…> (spec §6.1): fetches a file's
// contents, or its JSON record when `format=record` is given.
//
// The spec's `@d` flag ("enables template evaluation of text
// responses") names no template engine or syntax, and no example in
// the pack implements one; this port accepts the flag (so a client
// setting it doesn't get an unknown-parameter error) but serves
// contents unevaluated, same as a request without it. Recorded as an
// open question in DESIGN.md rather than invented.
func (h *Handler) handleFile(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, r, http.StatusBadRequest, "file fetch requires GET or HEAD", nil)
		return
	}
	if !h.mustAuthenticate(w, r, reqCtx) {
		return
	}

	path := strings.Join(reqCtx.Trailing, "/")
	if path == "" {
		path = "index.html"
	}

	resolvedPath, err := h.Negotiator.GetRepresentationPath(reqCtx, negotiatorHeaders(r), path)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "record" {
		art, err := h.FileDB.GetFileRecord(r.Context(), reqCtx, resolvedPath)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		art.MimeType = "application/json"
		h.respondArtifact(w, r, art, reqCtx.BasePath+"/"+path)
		return
	}

	art, err := h.FileDB.GetFileContents(r.Context(), reqCtx, resolvedPath)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondArtifact(w, r, art, reqCtx.BasePath+"/"+path)
}
