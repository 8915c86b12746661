package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sevigo/locomote-server/internal/core"
)

// commitSummary is the `{commit, message}` shape spec §6.1 names for
// GET /commits.api, trimmed from the VCR adapter's fuller CommitInfo.
type commitSummary struct {
	Commit  string `json:"commit"`
	Message string `json:"message"`
}

const defaultCommitsLimit = 50

// handleCommits implements GET /commits.api: the branch's commit list
// as {commit, message} pairs.
func (h *Handler) handleCommits(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusBadRequest, "commits.api requires GET", nil)
		return
	}
	if !h.mustAuthenticate(w, r, reqCtx) {
		return
	}

	commits, err := h.VCR.ListCommits(reqCtx.RepoPath, reqCtx.Branch, defaultCommitsLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]commitSummary, len(commits))
	for i, c := range commits {
		out[i] = commitSummary{Commit: c.ID, Message: c.Subject}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
