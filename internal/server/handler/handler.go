// Package handler implements Locomote Server's HTTP surface (spec
// §6.1): address-grammar resolution, the *.api endpoints, and the
// catch-all file-fetch route, each backed by the already-composed
// fileDB, search, ACM and negotiator services. It is grounded on the
// teacher's internal/server/handler package — one handler struct per
// concern, constructed with its dependencies and mounted by the
// router.
package handler

import (
	"log/slog"

	"github.com/sevigo/locomote-server/internal/acm"
	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/filedb"
	"github.com/sevigo/locomote-server/internal/metrics"
	"github.com/sevigo/locomote-server/internal/negotiator"
	"github.com/sevigo/locomote-server/internal/search"
	"github.com/sevigo/locomote-server/internal/vcr"
)

// Deps is every dependency the HTTP handlers need, handed in from the
// composition root. It is a plain struct rather than the App itself so
// this package never needs to import internal/app.
type Deps struct {
	BranchDB   *branchdb.BranchDB
	FileDB     *filedb.FileDB
	Search     *search.Index
	Settings   *acm.SettingsCache
	Negotiator *negotiator.Negotiator
	VCR        *vcr.Adapter
	Metrics    *metrics.Recorder
	Logger     *slog.Logger

	// DefaultCacheControl is the HTTP API's fallback Cache-Control value
	// (spec §6.1), overridden per-response by a fileset's own CacheControl.
	DefaultCacheControl string

	// AuthRealm names the WWW-Authenticate realm challenged on a 401.
	AuthRealm string
}

// Handler groups every *.api and file-fetch endpoint behind the shared
// Deps, mirroring the teacher's one-struct-per-handler-family shape
// (WebhookHandler) scaled up to this system's wider HTTP surface.
type Handler struct {
	Deps
	resolver *addressResolver
}

// New builds a Handler from deps.
func New(deps Deps) *Handler {
	return &Handler{Deps: deps, resolver: &addressResolver{db: deps.BranchDB}}
}
