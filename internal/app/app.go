package app

import (
	"context"
	"fmt"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/sevigo/locomote-server/internal/acm"
	"github.com/sevigo/locomote-server/internal/branchdb"
	"github.com/sevigo/locomote-server/internal/builder"
	"github.com/sevigo/locomote-server/internal/cachegc"
	"github.com/sevigo/locomote-server/internal/config"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/db"
	"github.com/sevigo/locomote-server/internal/events"
	"github.com/sevigo/locomote-server/internal/filedb"
	"github.com/sevigo/locomote-server/internal/fileset"
	"github.com/sevigo/locomote-server/internal/hook"
	"github.com/sevigo/locomote-server/internal/manifest"
	"github.com/sevigo/locomote-server/internal/metrics"
	"github.com/sevigo/locomote-server/internal/negotiator"
	"github.com/sevigo/locomote-server/internal/search"
	"github.com/sevigo/locomote-server/internal/server"
	"github.com/sevigo/locomote-server/internal/server/handler"
	"github.com/sevigo/locomote-server/internal/vcr"
)

// App holds every long-lived service the composition root builds,
// mirroring the shape of the teacher's own App struct: public fields
// for the pieces cmd/cli drives directly, private fields for what only
// Start/Stop need.
type App struct {
	Cfg *config.Config

	VCR        *vcr.Adapter
	BranchDB   *branchdb.BranchDB
	FileDB     *filedb.FileDB
	Search     *search.Index
	Builder    *builder.Builder
	Settings   *acm.SettingsCache
	Negotiator *negotiator.Negotiator
	Bus        *events.Bus
	Metrics    *metrics.Recorder

	logger *slog.Logger
	store  *db.DB
	sweep  *cachegc.Sweeper
	hookLn *hook.Listener
	srv    *server.Server
}

// New builds the whole dependency graph from cfg, in the order each
// piece's dependencies demand, and starts nothing yet.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}

	layout := cfg.Layout.Layout()
	metricsReg := prom.NewRegistry()
	rec := metrics.NewRecorder(metricsReg)

	store, err := db.Open(layout.SearchDBPath)
	if err != nil {
		return nil, fmt.Errorf("app: open search db: %w", err)
	}

	vcrAdapter := vcr.NewAdapter()

	manifestSrc := vcrAdapter // satisfies manifest.Source via ReadFileAt
	manifests, err := manifest.NewCache(manifestSrc, cfg.Cache.ManifestCapacity)
	if err != nil {
		return nil, fmt.Errorf("app: manifest cache: %w", err)
	}

	profiles := cfg.Settings.ProfileLookup()
	bdb := branchdb.New(layout.ContentRepoHome, manifests, profiles)
	if err := bdb.Rescan(); err != nil {
		logger.Warn("initial branch scan failed, starting with an empty directory", "error", err)
	}

	registry, err := fileset.NewRegistry(cfg.Settings.CoreDefs())
	if err != nil {
		return nil, fmt.Errorf("app: compile filesets: %w", err)
	}
	registrySrc := &globalRegistrySource{registry: registry}

	fdb := filedb.New(layout, vcrAdapter, registrySrc)

	settingsSrc := &manifestSettingsSource{manifests: manifests, filesets: registry.All()}
	defaults := acm.GlobalDefaults{Method: cfg.Settings.AuthMethod, Users: cfg.Settings.AuthUsers}
	settings, err := acm.NewSettingsCache(defaults, settingsSrc, cfg.Cache.SettingsCapacity)
	if err != nil {
		return nil, fmt.Errorf("app: settings cache: %w", err)
	}

	neg, err := negotiator.New(&trackedPathLister{vcr: vcrAdapter}, cfg.Cache.NegotiatorCapacity)
	if err != nil {
		return nil, fmt.Errorf("app: negotiator: %w", err)
	}

	bus := events.NewBus()

	idx := search.New(store, fdb, vcrAdapter, registrySrc, &branchLister{db: bdb}, layout.SearchCacheDir, cfg.Search.QuotaBytes)

	bld := builder.New(layout, vcrAdapter, manifests, bdb, profiles, store.DB, bus, rec)

	sweeper, err := cachegc.New(layout.CacheDir, cfg.Cache.GCMaxAge, cfg.Cache.GCPreserveGlobs, cfg.Cache.GCInterval, rec, logger)
	if err != nil {
		return nil, fmt.Errorf("app: cache gc: %w", err)
	}

	bus.Subscribe(fdb)
	bus.Subscribe(manifestEvictor{manifests: manifests, bdb: bdb})
	bus.Subscribe(settings)
	bus.Subscribe(neg)
	bus.Subscribe(idx)

	hookLn := hook.New(cfg.Hook.Addr, bld, logger)

	deps := handler.Deps{
		BranchDB:            bdb,
		FileDB:              fdb,
		Search:              idx,
		Settings:            settings,
		Negotiator:          neg,
		VCR:                 vcrAdapter,
		Metrics:             rec,
		Logger:              logger,
		DefaultCacheControl: cfg.Server.DefaultCacheControl,
		AuthRealm:           cfg.Server.AuthRealm,
	}
	var scrapeReg *prom.Registry
	if cfg.Metrics.Enabled {
		scrapeReg = metricsReg
	}
	srv := server.New(cfg.Server.Addr, cfg.Server.ShutdownTimeout, deps, scrapeReg, logger)

	app := &App{
		Cfg:        cfg,
		VCR:        vcrAdapter,
		BranchDB:   bdb,
		FileDB:     fdb,
		Search:     idx,
		Builder:    bld,
		Settings:   settings,
		Negotiator: neg,
		Bus:        bus,
		Metrics:    rec,
		logger:     logger,
		store:      store,
		sweep:      sweeper,
		hookLn:     hookLn,
		srv:        srv,
	}

	return app, nil
}

// Start brings every background service up: the post-receive hook
// listener, the cache GC schedule, the search indexer's startup scan,
// the build-recovery sweep, and finally the HTTP server (blocking).
func (a *App) Start() error {
	if err := a.hookLn.Start(); err != nil {
		return fmt.Errorf("app: start hook listener: %w", err)
	}
	if err := a.sweep.Start(); err != nil {
		return fmt.Errorf("app: start cache gc: %w", err)
	}
	a.Search.ScheduleStartup(context.Background())
	for _, err := range a.Builder.Recover(context.Background(), a.BranchDB) {
		a.logger.Warn("build recovery error", "error", err)
	}
	return a.srv.Start()
}

// Stop shuts every service down in reverse order, joining errors rather
// than stopping early, matching the teacher's own Stop shape.
func (a *App) Stop() error {
	var err error
	if e := a.srv.Stop(); e != nil {
		err = fmt.Errorf("stop server: %w", e)
	}
	if e := a.sweep.Stop(); e != nil && err == nil {
		err = fmt.Errorf("stop cache gc: %w", e)
	}
	if e := a.hookLn.Stop(); e != nil && err == nil {
		err = fmt.Errorf("stop hook listener: %w", e)
	}
	if e := a.store.Close(); e != nil && err == nil {
		err = fmt.Errorf("close search db: %w", e)
	}
	return err
}

// manifestEvictor adapts core.RepoUpdateListener for the manifest cache,
// which indexes by (repoPath, branch) rather than by event key and so
// needs the branch directory to resolve repoPath first.
type manifestEvictor struct {
	manifests *manifest.Cache
	bdb       *branchdb.BranchDB
}

func (m manifestEvictor) OnRepoUpdate(evt core.RepoUpdateEvent) {
	repo, ok := m.bdb.Get(evt.Account, evt.Repo)
	if !ok {
		return
	}
	m.manifests.Evict(repo.RepoPath, evt.Branch)
}
