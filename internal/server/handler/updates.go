package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sevigo/locomote-server/internal/acm"
	"github.com/sevigo/locomote-server/internal/core"
)

// updatesBody is POST /updates.api's optional JSON body: a `since`
// commit and a client-visible-set map of stable-id to last-seen
// version (spec §6.1).
type updatesBody struct {
	Since string            `json:"since"`
	CVS   map[string]string `json:"cvs"`
}

func recordID(rec *core.FileRecord) string      { return rec.Path }
func recordVersion(rec *core.FileRecord) string { return rec.Commit }

// handleUpdates implements GET/POST/HEAD /updates.api (spec §6.1): full
// or delta file listings, a CVS-aware POST variant, and a HEAD that
// reports only the current Etag.
func (h *Handler) handleUpdates(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext) {
	var since string

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if !h.mustAuthenticate(w, r, reqCtx) {
			return
		}
		since = r.URL.Query().Get("since")
	case http.MethodPost:
		var body updatesBody
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body) // empty/absent body is valid: no since, no cvs
		}
		since = body.Since

		var extra []acm.Derived
		if len(body.CVS) > 0 {
			d, err := acm.DeriveCVSFilter(acm.ClientVisibleSet(body.CVS), recordID, recordVersion)
			if err != nil {
				writeError(w, r, http.StatusBadRequest, err.Error(), nil)
				return
			}
			extra = append(extra, d)
		}
		if err := h.authenticateWithExtra(r, reqCtx, extra); err != nil {
			writeDomainError(w, r, err)
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, "updates.api requires GET, POST or HEAD", nil)
		return
	}

	if group := r.URL.Query().Get("group"); group != "" && group != reqCtx.Auth.Group {
		writeError(w, r, http.StatusResetContent, "client's ACM group is stale, reset required", nil)
		return
	}

	if r.Method == http.MethodHead {
		head, ok, err := h.VCR.HeadCommit(reqCtx.RepoPath, reqCtx.Branch)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, http.StatusNotFound, "branch has no commits", nil)
			return
		}
		w.Header().Set("Etag", `"`+head.ID+"-"+reqCtx.Auth.Group+`"`)
		w.WriteHeader(http.StatusOK)
		return
	}

	var art *core.Artifact
	var err error
	if since == "" {
		art, err = h.FileDB.ListAllFiles(r.Context(), reqCtx, "")
	} else {
		art, err = h.FileDB.ListUpdatesSince(r.Context(), reqCtx, since, "")
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	art.MimeType = "application/json"
	h.respondArtifact(w, r, art, reqCtx.BasePath+"/updates.api")
}
