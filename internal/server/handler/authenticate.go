package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sevigo/locomote-server/internal/core"
)

// handleAuthenticate implements POST /authenticate.api: forces secure
// mode, runs ACM end to end, and returns the resulting userInfo as
// JSON (spec §6.1).
func (h *Handler) handleAuthenticate(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusBadRequest, "authenticate.api requires POST", nil)
		return
	}

	reqCtx.Secure = true
	if !h.mustAuthenticate(w, r, reqCtx) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reqCtx.Auth.UserInfo)
}
