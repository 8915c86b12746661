package acm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
)

type fakeSettingsSource struct {
	manifest       *core.Manifest
	manifestCommit string
	filesets       []*core.FilesetDef
	calls          int
}

func (f *fakeSettingsSource) Manifest(*core.RequestContext) (*core.Manifest, string, error) {
	f.calls++
	return f.manifest, f.manifestCommit, nil
}

func (f *fakeSettingsSource) Filesets(*core.RequestContext) ([]*core.FilesetDef, error) {
	return f.filesets, nil
}

func TestBuildSettingsMergesManifestAuthOverDefaults(t *testing.T) {
	man := &core.Manifest{Auth: map[string]any{
		"method": "basic",
		"users":  map[string]any{"alice": "hash"},
	}}
	filesets := []*core.FilesetDef{{Category: "public"}}

	s := buildSettings(GlobalDefaults{Method: "test"}, man, "deadbeef", filesets)
	require.Equal(t, "basic", s.Method)
	require.Equal(t, "hash", s.Users["alice"])
	require.Equal(t, "deadbeef", s.Fingerprint)
	require.Contains(t, s.Fingerprints, "public")
}

func TestBuildSettingsFallsBackToDefaults(t *testing.T) {
	s := buildSettings(GlobalDefaults{Method: "test"}, core.DefaultManifest(), "abc", nil)
	require.Equal(t, "test", s.Method)
}

func TestSettingsCacheMemoizesAndEvicts(t *testing.T) {
	src := &fakeSettingsSource{manifest: core.DefaultManifest(), manifestCommit: "c1"}
	c, err := NewSettingsCache(GlobalDefaults{Method: "test"}, src, 8)
	require.NoError(t, err)

	ctx := &core.RequestContext{Account: "acme", Repo: "site", Branch: "main"}
	_, err = c.Get(ctx)
	require.NoError(t, err)
	_, err = c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	c.OnRepoUpdate(core.RepoUpdateEvent{Key: ctx.Key()})
	_, err = c.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}
