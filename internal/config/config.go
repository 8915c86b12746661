// Package config loads the server's configuration the way the teacher
// loads its own: a layered viper.Viper stack (defaults, then an
// optional YAML file, then environment variables), unmarshalled into a
// typed Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/logger"
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Layout   LayoutConfig   `mapstructure:"layout"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Search   SearchConfig   `mapstructure:"search"`
	Hook     HookConfig     `mapstructure:"hook"`
	Settings SettingsConfig `mapstructure:"settings"`
	Logging  logger.Config  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP listener. PoolSize is validated but
// not passed to any service; the fileDB worker pool is sized by
// filedb.PoolSize.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	PoolSize        int           `mapstructure:"pool_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// DefaultCacheControl is the "HTTP API setting" spec §6.1's common
	// response policy falls back to when a fileset names no CacheControl
	// of its own.
	DefaultCacheControl string `mapstructure:"default_cache_control"`

	// AuthRealm is echoed in the WWW-Authenticate challenge on a 401.
	AuthRealm string `mapstructure:"auth_realm"`
}

// LayoutConfig mirrors core.Layout, expressed as plain strings so it
// can be unmarshalled directly from viper.
type LayoutConfig struct {
	ContentRepoHome string `mapstructure:"content_repo_home"`
	CacheDir        string `mapstructure:"cache_dir"`
	WorkspaceHome   string `mapstructure:"workspace_home"`
	SearchDBPath    string `mapstructure:"search_db_path"`
	SearchCacheDir  string `mapstructure:"search_cache_dir"`
}

// Layout converts the config section into the core.Layout every
// subsystem actually takes a dependency on.
func (l LayoutConfig) Layout() core.Layout {
	return core.Layout{
		ContentRepoHome: l.ContentRepoHome,
		CacheDir:        l.CacheDir,
		WorkspaceHome:   l.WorkspaceHome,
		SearchDBPath:    l.SearchDBPath,
		SearchCacheDir:  l.SearchCacheDir,
	}
}

// CacheConfig sizes the LRU caches fronting the manifest, auth-settings
// and content-negotiator singletons, and configures the periodic GC
// sweep over cacheDir.
type CacheConfig struct {
	ManifestCapacity    int           `mapstructure:"manifest_capacity"`
	SettingsCapacity    int           `mapstructure:"settings_capacity"`
	NegotiatorCapacity  int           `mapstructure:"negotiator_capacity"`
	InfoDBCapacity      int           `mapstructure:"infodb_capacity"`
	GCInterval          time.Duration `mapstructure:"gc_interval"`
	GCMaxAge            time.Duration `mapstructure:"gc_max_age"`
	GCPreserveGlobs     []string      `mapstructure:"gc_preserve_globs"`
}

// SearchConfig bounds the per-branch search result cache.
type SearchConfig struct {
	QuotaBytes int64 `mapstructure:"quota_bytes"`
}

// HookConfig configures the post-receive TCP listener (spec §6.4).
type HookConfig struct {
	Addr string `mapstructure:"addr"`
}

// MetricsConfig toggles Prometheus registration and the /metrics route.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SettingsConfig is the server-wide settings document: the ACM
// fallback defaults applied when a repo's manifest carries no `auth`
// key, the named build profiles a manifest's `build.profile` id can
// reference, and the fileset definitions every repo shares (spec §4.4
// leaves the source of a repo's fileset list unspecified beyond "the
// per-branch fileset list" — this port treats it as one global,
// server-wide declaration rather than per-manifest configuration,
// since no manifest key is named for it).
type SettingsConfig struct {
	AuthMethod    string            `mapstructure:"auth_method"`
	AuthUsers     map[string]string `mapstructure:"auth_users"`
	BuildProfiles []BuildProfile    `mapstructure:"build_profiles"`
	Filesets      []FilesetDef      `mapstructure:"filesets"`
}

// FilesetDef mirrors core.FilesetDef for unmarshalling; the ACM field
// (a Go func) has no config representation, so restricted filesets grant
// access purely by the category-named-group convention
// internal/acm.filesetGrantedBy implements.
type FilesetDef struct {
	Category     string   `mapstructure:"category"`
	Include      []string `mapstructure:"include"`
	Exclude      []string `mapstructure:"exclude"`
	Cache        string   `mapstructure:"cache"`
	CacheControl string   `mapstructure:"cache_control"`
	Searchable   bool     `mapstructure:"searchable"`
	Restricted   bool     `mapstructure:"restricted"`
	Processor    string   `mapstructure:"processor"`
	Priority     int      `mapstructure:"priority"`
}

// CoreDefs converts the configured fileset list into core.FilesetDef
// values ready for fileset.NewRegistry.
func (s SettingsConfig) CoreDefs() []core.FilesetDef {
	out := make([]core.FilesetDef, 0, len(s.Filesets))
	for _, d := range s.Filesets {
		out = append(out, core.FilesetDef{
			Category:     d.Category,
			Include:      d.Include,
			Exclude:      d.Exclude,
			Cache:        core.CacheKind(d.Cache),
			CacheControl: d.CacheControl,
			Searchable:   d.Searchable,
			Restricted:   d.Restricted,
			Processor:    core.ProcessorKind(d.Processor),
			Priority:     d.Priority,
		})
	}
	return out
}

// BuildProfile mirrors core.BuildProfile for unmarshalling.
type BuildProfile struct {
	ID        string   `mapstructure:"id"`
	Command   []string `mapstructure:"command"`
	Buildable []string `mapstructure:"buildable"`
}

// ProfileLookup returns a core.ProfileLookup-compatible function closed
// over this config's build profiles.
func (s SettingsConfig) ProfileLookup() func(id string) (*core.BuildProfile, bool) {
	byID := make(map[string]*core.BuildProfile, len(s.BuildProfiles))
	for _, p := range s.BuildProfiles {
		byID[p.ID] = &core.BuildProfile{ID: p.ID, Command: p.Command, Buildable: p.Buildable}
	}
	return func(id string) (*core.BuildProfile, bool) {
		p, ok := byID[id]
		return p, ok
	}
}

// Load loads configuration with the hierarchy defaults < config file <
// environment variables, mirroring the teacher's LoadConfig.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("locomote")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.locomote-server")
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded configuration", "file", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.pool_size", 100)
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.default_cache_control", "no-cache")
	v.SetDefault("server.auth_realm", "locomote")

	v.SetDefault("layout.content_repo_home", "./data/repos")
	v.SetDefault("layout.cache_dir", "./data/cache")
	v.SetDefault("layout.workspace_home", "./data/workspace")
	v.SetDefault("layout.search_db_path", "./data/search.sqlite")
	v.SetDefault("layout.search_cache_dir", "./data/cache/publish_cache/search")

	v.SetDefault("cache.manifest_capacity", 512)
	v.SetDefault("cache.settings_capacity", 512)
	v.SetDefault("cache.negotiator_capacity", 256)
	v.SetDefault("cache.infodb_capacity", 256)
	v.SetDefault("cache.gc_interval", "1h")
	v.SetDefault("cache.gc_max_age", "168h")
	v.SetDefault("cache.gc_preserve_globs", []string{})

	v.SetDefault("search.quota_bytes", 50*1024*1024)

	v.SetDefault("hook.addr", "localhost:8870")

	v.SetDefault("settings.auth_method", "test")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("metrics.enabled", true)
}

// Validate checks the invariants Load cannot express through defaults
// alone.
func (c *Config) Validate() error {
	if c.Layout.ContentRepoHome == "" {
		return errors.New("layout.content_repo_home is required")
	}
	if c.Server.PoolSize <= 0 {
		return errors.New("server.pool_size must be positive")
	}
	switch c.Settings.AuthMethod {
	case "basic", "test":
	default:
		return fmt.Errorf("settings.auth_method %q is not a recognized auth method", c.Settings.AuthMethod)
	}
	seen := make(map[string]bool, len(c.Settings.BuildProfiles))
	for _, p := range c.Settings.BuildProfiles {
		if p.ID == "" {
			return errors.New("settings.build_profiles entries require an id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate build profile id: %s", p.ID)
		}
		seen[p.ID] = true
	}
	seenCategories := make(map[string]bool, len(c.Settings.Filesets))
	for _, d := range c.Settings.Filesets {
		if d.Category == "" {
			return errors.New("settings.filesets entries require a category")
		}
		if seenCategories[d.Category] {
			return fmt.Errorf("duplicate fileset category: %s", d.Category)
		}
		seenCategories[d.Category] = true
	}
	return nil
}
