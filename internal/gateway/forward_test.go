// ABOUTME: Tests for the forward-auth decision endpoint and rule reload
// ABOUTME: Covers allow headers, deny vs redirect, and the reload gate

package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/internal/store"
)

func forwardRequest(host, uri string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/authz", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", host)
	req.Header.Set("X-Forwarded-Uri", uri)
	return req
}

func TestForwardAuth_AnonymousAllowedOnPublicHost(t *testing.T) {
	f := setupGateway(t)
	f.seedRule(t, &store.Rule{Name: "public", Position: 0, HostPattern: `^public\.`, Action: store.ActionAllow})

	rec := f.do(forwardRequest("public.example.org", "/index.html"))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "nobody", rec.Header().Get("X-Forwarded-User-Name"))
	assert.Equal(t, "No authenticated user", rec.Header().Get("X-Forwarded-User-Display-Name"))
	assert.Equal(t, "", rec.Header().Get("X-Forwarded-User-Roles"))
}

func TestForwardAuth_AnonymousDeniedRedirects(t *testing.T) {
	f := setupGateway(t)

	rec := f.do(forwardRequest("app.example.org", "/dashboard?tab=1"))

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Equal(t, f.cfg.AuthEntryURL+"?u="+url.QueryEscape("https://app.example.org/dashboard?tab=1"), loc)
}

func TestForwardAuth_AuthenticatedDeniedGets403(t *testing.T) {
	f := setupGateway(t)
	user := f.seedUser(t, "alice", "user")

	req := forwardRequest("app.example.org", "/admin/users")
	req.AddCookie(f.sessionCookie(t, user))
	rec := f.do(req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestForwardAuth_AuthenticatedAllowedCarriesIdentity(t *testing.T) {
	f := setupGateway(t)
	user := f.seedUser(t, "alice", "admin", "user")
	f.seedRule(t, &store.Rule{Name: "admin-area", Position: 0, PathPattern: `^/admin/`, Roles: []string{"admin"}, Action: store.ActionAllow})

	req := forwardRequest("app.example.org", "/admin/users")
	req.AddCookie(f.sessionCookie(t, user))
	rec := f.do(req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "alice", rec.Header().Get("X-Forwarded-User-Name"))
	assert.Equal(t, "User alice", rec.Header().Get("X-Forwarded-User-Display-Name"))
	assert.Equal(t, "admin,user", rec.Header().Get("X-Forwarded-User-Roles"))
}

func TestForwardAuth_FirstMatchWins(t *testing.T) {
	f := setupGateway(t)
	user := f.seedUser(t, "bob", "user")

	ctx := context.Background()
	require.NoError(t, f.store.CreateRule(ctx, &store.Rule{Name: "admin-allow", Position: 0, PathPattern: `^/admin/`, Roles: []string{"admin"}, Action: store.ActionAllow}))
	require.NoError(t, f.store.CreateRule(ctx, &store.Rule{Name: "admin-deny", Position: 10, PathPattern: `^/admin/`, Action: store.ActionDeny}))
	require.NoError(t, f.store.CreateRule(ctx, &store.Rule{Name: "catch-all", Position: 40, Action: store.ActionAllow}))
	require.NoError(t, f.engine.Reload(ctx))

	req := forwardRequest("app.example.org", "/admin/users")
	req.AddCookie(f.sessionCookie(t, user))
	rec := f.do(req)

	// The deny at position 10 is terminal; the catch-all never runs.
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestForwardAuth_MissingForwardHeadersDefault(t *testing.T) {
	f := setupGateway(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/authz", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape("http://unknown/"))
}

func TestForwardAuth_DisabledIdentityHeader(t *testing.T) {
	f := setupGateway(t)
	f.cfg.UserRolesHeader = ""
	f.seedRule(t, &store.Rule{Name: "open", Position: 0, Action: store.ActionAllow})

	rec := f.do(forwardRequest("app.example.org", "/"))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "nobody", rec.Header().Get("X-Forwarded-User-Name"))
	_, present := rec.Header()["X-Forwarded-User-Roles"]
	assert.False(t, present)
}

func TestReload_DeniedCaller(t *testing.T) {
	f := setupGateway(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/authz/reload", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReload_AuthorizedCallerSwapsRules(t *testing.T) {
	f := setupGateway(t)
	admin := f.seedUser(t, "root", "admin")
	f.seedRule(t, &store.Rule{Name: "reload", Position: 0, PathPattern: `^/authz/reload$`, Roles: []string{"admin"}, Action: store.ActionAllow})

	// A rule written after the last reload is invisible until reloaded.
	ctx := context.Background()
	require.NoError(t, f.store.CreateRule(ctx, &store.Rule{Name: "open", Position: 5, HostPattern: `^new\.`, Action: store.ActionAllow}))
	rec := f.do(forwardRequest("new.example.org", "/"))
	require.Equal(t, http.StatusFound, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/authz/reload", nil)
	req.AddCookie(f.sessionCookie(t, admin))
	rec = f.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(forwardRequest("new.example.org", "/"))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
