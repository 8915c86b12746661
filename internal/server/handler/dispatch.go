package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sevigo/locomote-server/internal/core"
)

// statusWriter wraps a ResponseWriter to capture the status code
// actually written, for the metrics recorded once Dispatch returns.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Dispatch is the catch-all entry point mounted at the router's
// wildcard route. It resolves the request's address (spec §6.1), then
// routes on the remaining path: the five *.api endpoints by exact
// match on their first remaining segment, everything else to the file
// fetch handler.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	route := h.dispatch(sw, r)
	h.Metrics.ObserveHTTPRequest(route, strconv.Itoa(sw.status), time.Since(start).Seconds())
}

// dispatch does the actual routing, returning the matched route's
// metrics label.
func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) string {
	res, err := h.resolver.resolve(splitPath(r.URL.Path))
	if err != nil {
		writeDomainError(w, r, err)
		return "address-error"
	}

	reqCtx := res.context(r.Host, r.TLS != nil)

	if len(res.Rest) > 0 {
		switch res.Rest[0] {
		case "authenticate.api":
			h.handleAuthenticate(w, r, reqCtx)
			return "authenticate.api"
		case "commits.api":
			h.handleCommits(w, r, reqCtx)
			return "commits.api"
		case "updates.api":
			h.handleUpdates(w, r, reqCtx)
			return "updates.api"
		case "search.api":
			h.handleSearch(w, r, reqCtx)
			return "search.api"
		}
		if res.Rest[0] == "filesets.api" {
			h.handleFilesets(w, r, reqCtx, res.Rest[1:])
			return "filesets.api"
		}
	}

	h.handleFile(w, r, reqCtx)
	return "file"
}

// Robots serves the static robots.txt response spec §6.1 names; it is
// mounted at the literal top-level path, outside the address grammar.
func (h *Handler) Robots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("User-agent: *\nDisallow:\n"))
}

// mustAuthenticate is the common prologue every endpoint below runs:
// resolve ACM settings and authenticate the request, writing the
// mapped error response and returning false on failure.
func (h *Handler) mustAuthenticate(w http.ResponseWriter, r *http.Request, reqCtx *core.RequestContext) bool {
	if err := h.authenticate(r, reqCtx); err != nil {
		writeDomainError(w, r, err)
		return false
	}
	return true
}
