package manifest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	files map[string][]byte // key: repoPath+"\x00"+branch+"\x00"+path
	calls int
}

func (f *fakeSource) ReadFileAt(repoPath, branch, path string) ([]byte, string, error) {
	f.calls++
	raw, ok := f.files[repoPath+"\x00"+branch+"\x00"+path]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return raw, "deadbeef", nil
}

func TestGetMissingManifestYieldsDefault(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{}}
	c, err := NewCache(src, 16)
	require.NoError(t, err)

	e, err := c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	require.Equal(t, []string{"public"}, e.Manifest.Public)
}

func TestGetDecodesPublicAuthIndexed(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"/repos/acme.git\x00main\x00locomote.json": []byte(`{
			"public": ["public", "docs"],
			"auth": {"method": "basic"},
			"indexed": true
		}`),
	}}
	c, err := NewCache(src, 16)
	require.NoError(t, err)

	e, err := c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	require.Equal(t, []string{"public", "docs"}, e.Manifest.Public)
	require.Equal(t, "basic", e.Manifest.Auth["method"])
	require.True(t, e.Manifest.Indexed)
	require.Equal(t, "deadbeef", e.Commit)
}

func TestGetResolvesRefWithSourceSubstitution(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"/repos/acme.git\x00main\x00locomote.json": []byte(`{
			"profiles": {"main": {"profile": "ci"}},
			"build": {"$ref": "#/profiles/{SOURCE}"}
		}`),
	}}
	c, err := NewCache(src, 16)
	require.NoError(t, err)

	e, err := c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	require.NotNil(t, e.Manifest.Build)
	require.Equal(t, "ci", e.Manifest.Build.ProfileID)
}

func TestGetCachesAndEvicts(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"/repos/acme.git\x00main\x00locomote.json": []byte(`{"public": "public"}`),
	}}
	c, err := NewCache(src, 16)
	require.NoError(t, err)

	_, err = c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	_, err = c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	require.Equal(t, 1, src.calls)

	c.Evict("/repos/acme.git", "main")
	_, err = c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestBuildProfileInline(t *testing.T) {
	src := &fakeSource{files: map[string][]byte{
		"/repos/acme.git\x00main\x00locomote.json": []byte(`{
			"build": {"profile": {"id": "custom", "command": ["make", "build"], "buildable": ["main", "dev"]}}
		}`),
	}}
	c, err := NewCache(src, 16)
	require.NoError(t, err)

	e, err := c.Get("/repos/acme.git", "main")
	require.NoError(t, err)
	require.NotNil(t, e.Manifest.Build.Inline)
	require.Equal(t, "custom", e.Manifest.Build.Inline.ID)
	require.Equal(t, []string{"make", "build"}, e.Manifest.Build.Inline.Command)
	require.Equal(t, []string{"main", "dev"}, e.Manifest.Build.Inline.Buildable)
}
