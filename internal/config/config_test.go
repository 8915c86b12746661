package config

import "testing"

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Layout:   LayoutConfig{ContentRepoHome: "./repos"},
			Server:   ServerConfig{PoolSize: 100},
			Settings: SettingsConfig{AuthMethod: "test"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(c *Config) {}, wantErr: false},
		{
			name:    "missing content repo home",
			mutate:  func(c *Config) { c.Layout.ContentRepoHome = "" },
			wantErr: true,
		},
		{
			name:    "non-positive pool size",
			mutate:  func(c *Config) { c.Server.PoolSize = 0 },
			wantErr: true,
		},
		{
			name:    "unknown auth method",
			mutate:  func(c *Config) { c.Settings.AuthMethod = "ldap" },
			wantErr: true,
		},
		{
			name: "duplicate build profile id",
			mutate: func(c *Config) {
				c.Settings.BuildProfiles = []BuildProfile{
					{ID: "hugo", Command: []string{"hugo"}},
					{ID: "hugo", Command: []string{"hugo", "--minify"}},
				}
			},
			wantErr: true,
		},
		{
			name: "missing build profile id",
			mutate: func(c *Config) {
				c.Settings.BuildProfiles = []BuildProfile{{Command: []string{"hugo"}}}
			},
			wantErr: true,
		},
		{
			name: "duplicate fileset category",
			mutate: func(c *Config) {
				c.Settings.Filesets = []FilesetDef{
					{Category: "docs", Include: []string{"**/*.html"}},
					{Category: "docs", Include: []string{"**/*.md"}},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettingsConfigProfileLookupResolvesByID(t *testing.T) {
	s := SettingsConfig{BuildProfiles: []BuildProfile{
		{ID: "hugo", Command: []string{"hugo", "--minify"}, Buildable: []string{"main"}},
	}}
	lookup := s.ProfileLookup()

	profile, ok := lookup("hugo")
	if !ok {
		t.Fatal("expected profile hugo to resolve")
	}
	if len(profile.Command) != 2 || profile.Command[0] != "hugo" {
		t.Errorf("unexpected command: %v", profile.Command)
	}

	if _, ok := lookup("missing"); ok {
		t.Error("expected missing profile id to not resolve")
	}
}

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Server.PoolSize != 100 {
		t.Errorf("Server.PoolSize = %d, want 100", cfg.Server.PoolSize)
	}
	if cfg.Hook.Addr != "localhost:8870" {
		t.Errorf("Hook.Addr = %q, want localhost:8870", cfg.Hook.Addr)
	}
	if cfg.Layout.Layout().CacheDir == "" {
		t.Error("expected a non-empty default cache dir")
	}
}
