package fileset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]core.FilesetDef{
		{Category: "pages", Include: []string{"**/*.html"}, Processor: core.ProcessorHTMLRewrite, Searchable: true, Priority: 0},
		{Category: "data", Include: []string{"**/*.json"}, Processor: core.ProcessorJSONParse, Searchable: true, Priority: 1},
		{Category: "public", Include: []string{"**"}, Exclude: []string{"**/*.tmp"}, Processor: core.ProcessorRaw, Searchable: true, Priority: 2},
	})
	require.NoError(t, err)
	return r
}

func TestRegistryLookupRespectsPriority(t *testing.T) {
	r := testRegistry(t)

	d := r.Lookup("docs/index.html")
	require.NotNil(t, d)
	require.Equal(t, "pages", d.Category)

	d = r.Lookup("config.json")
	require.NotNil(t, d)
	require.Equal(t, "data", d.Category)

	d = r.Lookup("readme.txt")
	require.NotNil(t, d)
	require.Equal(t, "public", d.Category)

	require.Nil(t, r.Lookup("build/cache.tmp"))
}

func TestMakeFileRecordDeletedSkipsProcessor(t *testing.T) {
	r := testRegistry(t)
	rec, err := r.MakeFileRecord("docs/index.html", "abc123", core.StatusDeleted, nil)
	require.NoError(t, err)
	require.Equal(t, core.StatusDeleted, rec.Status)
	require.Nil(t, rec.Page)
}

func TestMakeFileRecordHTMLExtractsPage(t *testing.T) {
	r := testRegistry(t)
	html := `<html><head><title>Hi</title><meta name="type" content="guide"></head><body></body></html>`
	rec, err := r.MakeFileRecord("docs/index.html", "abc123", core.StatusPublished, strings.NewReader(html))
	require.NoError(t, err)
	require.Equal(t, "pages", rec.Category)
	require.NotNil(t, rec.Page)
	require.Equal(t, "Hi", rec.Page.Title)
	require.Equal(t, "guide", rec.Page.Type)
}

func TestPipeContentsRewritesAbsoluteURLs(t *testing.T) {
	r := testRegistry(t)
	ctx := &core.RequestContext{BasePath: "/acme/site/main"}
	src := `<html><body><a href="/about">About</a><img src="rel.png"></body></html>`

	var out bytes.Buffer
	err := r.PipeContents(ctx, "docs/index.html", strings.NewReader(src), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `href="/acme/site/main/about"`)
	require.Contains(t, out.String(), `src="rel.png"`)
}

func TestPipeContentsNotFoundWhenUnowned(t *testing.T) {
	r := testRegistry(t)
	ctx := &core.RequestContext{}
	var out bytes.Buffer
	err := r.PipeContents(ctx, "build/cache.tmp", strings.NewReader(""), &out)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestMakeSearchRecordSkipsNonSearchable(t *testing.T) {
	defs := []core.FilesetDef{
		{Category: "private", Include: []string{"**"}, Processor: core.ProcessorRaw, Searchable: false, Priority: 0},
	}
	r, err := NewRegistry(defs)
	require.NoError(t, err)

	rec := &core.FileRecord{Path: "secret.txt", Category: "private", Status: core.StatusPublished}
	_, ok, err := r.MakeSearchRecord(rec, strings.NewReader("top secret"))
	require.NoError(t, err)
	require.False(t, ok)
}
