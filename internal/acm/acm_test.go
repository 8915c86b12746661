package acm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/locomote-server/internal/core"
)

func TestDeriveAcceptLanguage(t *testing.T) {
	g, ok := DeriveAcceptLanguage("en_US")
	require.True(t, ok)
	require.Equal(t, "Accept-Language:en_US", g)

	_, ok = DeriveAcceptLanguage("bogus")
	require.False(t, ok)
}

func TestDeriveQueryFilterMatchesPaths(t *testing.T) {
	d, err := DeriveQueryFilter([]string{"docs/**"}, []string{"docs/internal/**"})
	require.NoError(t, err)
	require.Len(t, d.Groups, 1)
	require.True(t, d.Filter(&core.FileRecord{Path: "docs/guide.html"}))
	require.False(t, d.Filter(&core.FileRecord{Path: "docs/internal/secret.html"}))
}

func TestDeriveQueryFilterEmptyIsNoop(t *testing.T) {
	d, err := DeriveQueryFilter(nil, nil)
	require.NoError(t, err)
	require.Nil(t, d.Filter)
	require.Nil(t, d.Groups)
}

func TestDeriveCVSFilterAcceptsNewAndChanged(t *testing.T) {
	cvs := ClientVisibleSet{"a.html": "v1", "b.html": "v1"}
	id := func(r *core.FileRecord) string { return r.Path }
	ver := func(r *core.FileRecord) string { return r.Commit }

	d, err := DeriveCVSFilter(cvs, id, ver)
	require.NoError(t, err)

	require.True(t, d.Filter(&core.FileRecord{Path: "c.html", Commit: "v1"}))                                  // new
	require.True(t, d.Filter(&core.FileRecord{Path: "a.html", Commit: "v2"}))                                  // changed
	require.False(t, d.Filter(&core.FileRecord{Path: "a.html", Commit: "v1"}))                                 // unchanged
	require.True(t, d.Filter(&core.FileRecord{Path: "b.html", Status: core.StatusDeleted}))                    // known + deleted
	require.False(t, d.Filter(&core.FileRecord{Path: "z.html", Status: core.StatusDeleted}))                   // unknown + deleted
}

func TestAuthenticateBasicAndFailure(t *testing.T) {
	settings := &core.AuthSettings{Method: "basic", Users: map[string]string{"alice": "secret"}}

	u, err := Authenticate(settings, Credentials{User: "alice", Password: "secret", Present: true}, "locomote")
	require.NoError(t, err)
	require.True(t, u.Authenticated)

	_, err = Authenticate(settings, Credentials{}, "locomote")
	require.Error(t, err)
	var authErr *core.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, 401, authErr.Status)
	require.ErrorIs(t, err, core.ErrAuthRequired)

	_, err = Authenticate(settings, Credentials{User: "alice", Password: "wrong", Present: true}, "locomote")
	require.ErrorIs(t, err, core.ErrAuthFailed)
}

func TestBuildAuthContextAccessibleAndGroup(t *testing.T) {
	settings := &core.AuthSettings{
		Filesets: []*core.FilesetDef{
			{Category: "public", Restricted: false},
			{Category: "premium", Restricted: true},
		},
		Fingerprints: map[string]string{"public": "fp-public", "premium": "fp-premium"},
	}
	user := core.UserInfo{User: "bob", Authenticated: true, Groups: []string{"premium"}}

	authCtx := BuildAuthContext(settings, user, nil)
	require.True(t, authCtx.Accessible["public"])
	require.True(t, authCtx.Accessible["premium"])
	require.NotEmpty(t, authCtx.Group)
}

func TestBuildAuthContextDollarGroupDropsCVS(t *testing.T) {
	settings := &core.AuthSettings{Filesets: []*core.FilesetDef{{Category: "public"}}, Fingerprints: map[string]string{"public": "fp"}}
	user := core.UserInfo{Groups: []string{"CVS:abcd"}}

	authCtx := BuildAuthContext(settings, user, nil)
	require.NotEqual(t, authCtx.Group, authCtx.DollarGroup)
}

func TestFilterAndRewriteDropsInaccessibleCategory(t *testing.T) {
	authCtx := &core.AuthContext{Accessible: map[string]bool{"public": true}}
	rec := &core.FileRecord{Path: "x", Category: "private"}
	require.Nil(t, FilterAndRewrite(authCtx, &core.RequestContext{}, rec))
}

func TestFilterAndRewriteAppliesRewriter(t *testing.T) {
	authCtx := &core.AuthContext{
		Accessible: map[string]bool{"public": true},
		Rewrites: map[string]core.Rewriter{
			"public": func(rec *core.FileRecord, _ *core.RequestContext) *core.FileRecord {
				rec.Path = "rewritten"
				return rec
			},
		},
	}
	rec := &core.FileRecord{Path: "x", Category: "public"}
	out := FilterAndRewrite(authCtx, &core.RequestContext{}, rec)
	require.NotNil(t, out)
	require.Equal(t, "rewritten", out.Path)
}
