package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sevigo/locomote-server/internal/core"
)

// handleFilesets implements GET/POST /filesets.api/:category/:mode
// (spec §6.1): `contents` streams a ZIP archive via
// filedb.GetFilesetContents; `list` writes the same category's
// current (ACM-filtered) records, from filedb.GetFilesetList, as a JSON
// array.
func (h *Handler) handleFilesets(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext, rest []string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, r, http.StatusBadRequest, "filesets.api requires GET or POST", nil)
		return
	}
	if len(rest) < 2 || rest[0] == "" || (rest[1] != "list" && rest[1] != "contents") {
		writeError(w, r, http.StatusBadRequest, "filesets.api requires a category and a mode of list or contents", nil)
		return
	}
	category, mode := rest[0], rest[1]

	since := r.URL.Query().Get("since")
	if r.Method == http.MethodPost {
		var body updatesBody
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if body.Since != "" {
			since = body.Since
		}
	}

	if !h.mustAuthenticate(w, r, reqCtx) {
		return
	}
	if !reqCtx.Auth.Accessible[category] {
		writeError(w, r, http.StatusNotFound, "category not accessible", nil)
		return
	}

	if mode == "contents" {
		art, err := h.FileDB.GetFilesetContents(r.Context(), reqCtx, category, since, "")
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		h.respondArtifact(w, r, art, reqCtx.BasePath+"/filesets.api/"+category+"/contents")
		return
	}

	records, art, err := h.FileDB.GetFilesetList(r.Context(), reqCtx, category, since)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if reqCtx.Auth.Filter != nil {
		filtered := records[:0]
		for _, rec := range records {
			if reqCtx.Auth.Filter(rec) {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	etag := art.Etag()
	w.Header().Set("Etag", `"`+etag+`"`)
	w.Header().Set("Content-Location", reqCtx.BasePath+"/filesets.api/"+category+"/list")
	cacheControl := h.DefaultCacheControl
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}
	if match := r.Header.Get("If-None-Match"); match != "" && match == `"`+etag+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}
