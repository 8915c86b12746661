package handler

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"

	"github.com/sevigo/locomote-server/internal/core"
)

//go:embed errors/*.html
var errorPagesFS embed.FS

var errorTemplates = template.Must(template.ParseFS(errorPagesFS, "errors/*.html"))

// errorPageData is the template data every errors/<code>.html page
// receives.
type errorPageData struct {
	Status  int
	Message string
}

// writeError renders status to w: the matching errors/<code>.html page
// (falling back to errors/xxx.html) when r accepts text/html, an empty
// body otherwise, per spec §6.1's error response policy. extraHeaders
// (e.g. WWW-Authenticate) are set before the body is written.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, extraHeaders map[string]string) {
	for k, v := range extraHeaders {
		w.Header().Set(k, v)
	}
	w.WriteHeader(status)
	if !acceptsHTML(r) {
		return
	}

	name := statusPage(status)
	data := errorPageData{Status: status, Message: message}
	if errorTemplates.Lookup(name) != nil {
		_ = errorTemplates.ExecuteTemplate(w, name, data)
		return
	}
	_ = errorTemplates.ExecuteTemplate(w, "xxx.html", data)
}

func statusPage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "401.html"
	case http.StatusNotFound:
		return "404.html"
	case http.StatusResetContent:
		return "205.html"
	case http.StatusBadRequest:
		return "400.html"
	default:
		return "500.html"
	}
}

// writeDomainError maps a core/acm error into the right HTTP status and
// writes it, per spec §7's error taxonomy.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *core.AuthError
	if errors.As(err, &authErr) {
		writeError(w, r, authErr.Status, authErr.Message, authErr.Headers)
		return
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, core.ErrUpstreamInvalid):
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error(), nil)
	}
}

// respondArtifact applies spec §6.1's common response policy
// (Cache-Control, Etag, If-None-Match, Content-Location) and streams
// art's contents, unless the client's cached copy is already current.
func (h *Handler) respondArtifact(w http.ResponseWriter, r *http.Request, art *core.Artifact, contentLocation string) {
	etag := art.Etag()
	w.Header().Set("Etag", `"`+etag+`"`)
	w.Header().Set("Content-Location", contentLocation)

	cacheControl := art.CacheControl
	if cacheControl == "" {
		cacheControl = h.DefaultCacheControl
	}
	if cacheControl != "" {
		w.Header().Set("Cache-Control", cacheControl)
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == `"`+etag+`"` {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if art.MimeType != "" {
		w.Header().Set("Content-Type", art.MimeType)
	}
	if r.Method == http.MethodHead {
		return
	}

	f, err := art.Open()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer f.Close()
	_, _ = io.Copy(w, f)
}
