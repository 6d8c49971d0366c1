package authz

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/logging"
	"github.com/dmitrijs2005/casedge/internal/server/origin"
	"github.com/dmitrijs2005/casedge/internal/server/testutil"
)

const token = "Bearer good-token"

type fixture struct {
	resolver *Resolver
	origin   *testutil.FakeOrigin
	store    *testutil.MemStore
	clock    *clock.Mock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fo := testutil.NewFakeOrigin(t)
	oc, err := origin.NewClient(fo.URL, nil)
	require.NoError(t, err)

	clk := clock.NewMock()
	store := testutil.NewMemStore(clk)

	return &fixture{
		resolver: NewResolver(oc, store, DefaultPolicy(), logging.Nop{}),
		origin:   fo,
		store:    store,
		clock:    clk,
	}
}

func requireStatus(t *testing.T, err error, status int) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *authz.Error, got %T", err)
	assert.Equal(t, status, e.Status)
	return e
}

func TestEnsureAccessible_CaseInsensitiveMatch(t *testing.T) {
	f := newFixture(t)
	f.origin.Allow(token, "p/", "acme/myapp")

	got, err := f.resolver.EnsureAccessible(context.Background(), "Acme", "MyApp", token)
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestEnsureAccessible_MissingCredentialMakesNoCalls(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.EnsureAccessible(context.Background(), "acme", "app", "")
	e := requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "Missing Authorization header", e.Message)
	assert.Zero(t, f.origin.TotalCalls())
	assert.Zero(t, f.store.Gets())
}

func TestEnsureAccessible_NotAMember(t *testing.T) {
	f := newFixture(t)
	f.origin.Allow(token, "p/", "acme/other")

	_, err := f.resolver.EnsureAccessible(context.Background(), "acme", "app", token)
	e := requireStatus(t, err, http.StatusNotFound)
	assert.Equal(t, MessageNotAccessible, e.Message)
}

func TestEnsureAccessible_SuccessMemoizedFor600s(t *testing.T) {
	f := newFixture(t)
	f.origin.Allow(token, "p/", "acme/app")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.resolver.EnsureAccessible(ctx, "acme", "app", token)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.origin.Calls("/api/projects"))
	assert.Equal(t, 600*time.Second, f.store.TTL(ProjectsCacheKey(token)))

	f.clock.Add(599 * time.Second)
	_, err := f.resolver.EnsureAccessible(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, 1, f.origin.Calls("/api/projects"))

	f.clock.Add(time.Second)
	_, err = f.resolver.EnsureAccessible(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, 2, f.origin.Calls("/api/projects"))
}

func TestEnsureAccessible_ForbiddenNegativelyCachedFor300s(t *testing.T) {
	f := newFixture(t)
	f.origin.SetProjects(token, testutil.OriginReply{Status: http.StatusForbidden, Body: map[string]string{"message": "no access to acme"}})
	ctx := context.Background()

	_, err := f.resolver.EnsureAccessible(ctx, "acme", "app", token)
	e := requireStatus(t, err, http.StatusNotFound)
	assert.Equal(t, MessageNotAccessible, e.Message)
	assert.Equal(t, 300*time.Second, f.store.TTL(ProjectsCacheKey(token)))

	f.origin.Allow(token, "p/", "acme/app")

	f.clock.Add(299 * time.Second)
	_, err = f.resolver.EnsureAccessible(ctx, "acme", "app", token)
	requireStatus(t, err, http.StatusNotFound)
	assert.Equal(t, 1, f.origin.Calls("/api/projects"))

	f.clock.Add(time.Second)
	_, err = f.resolver.EnsureAccessible(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, 2, f.origin.Calls("/api/projects"))
}

func TestEnsureAccessible_UnauthorizedKeepsOriginMessage(t *testing.T) {
	f := newFixture(t)
	f.origin.SetProjects(token, testutil.OriginReply{Status: http.StatusUnauthorized, Body: map[string]string{"message": "Token expired"}})

	_, err := f.resolver.EnsureAccessible(context.Background(), "acme", "app", token)
	e := requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, "Token expired", e.Message)

	_, err = f.resolver.EnsureAccessible(context.Background(), "acme", "app", token)
	requireStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, 1, f.origin.Calls("/api/projects"))
}

func TestEnsureAccessible_ServerErrorsAreNotCached(t *testing.T) {
	f := newFixture(t)
	f.origin.SetProjects(token, testutil.OriginReply{Status: http.StatusBadGateway, Body: "upstream down"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.resolver.EnsureAccessible(ctx, "acme", "app", token)
		requireStatus(t, err, http.StatusInternalServerError)
	}
	assert.Equal(t, 2, f.origin.Calls("/api/projects"))
	assert.False(t, f.store.Has(ProjectsCacheKey(token)))
}

func TestEnsureAccessible_NetworkErrorIsNotCached(t *testing.T) {
	f := newFixture(t)
	f.origin.Close()

	_, err := f.resolver.EnsureAccessible(context.Background(), "acme", "app", token)
	e := requireStatus(t, err, http.StatusInternalServerError)
	assert.Equal(t, MessageOriginUnavailable, e.Message)
	assert.Empty(t, f.store.Puts())
}

func TestEnsureAccessible_ForwardsRequestID(t *testing.T) {
	f := newFixture(t)
	f.origin.Allow(token, "p/", "acme/app")

	ctx := common.WithRequestID(context.Background(), "req-7")
	_, err := f.resolver.EnsureAccessible(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-7"}, f.origin.RequestIDs())
}

func TestResolvePrefix_MemoizedFor3600sPerCredential(t *testing.T) {
	f := newFixture(t)
	f.origin.Allow(token, "acme-prefix/", "acme/app")
	f.origin.Allow("Bearer other", "acme-prefix/", "acme/app")
	ctx := context.Background()

	prefix, err := f.resolver.ResolvePrefix(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, "acme-prefix/", prefix)
	assert.Equal(t, 3600*time.Second, f.store.TTL(PrefixCacheKey("acme", "app", token)))

	_, err = f.resolver.ResolvePrefix(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, 1, f.origin.Calls("/api/cache/prefix"))

	_, err = f.resolver.ResolvePrefix(ctx, "acme", "app", "Bearer other")
	require.NoError(t, err)
	assert.Equal(t, 2, f.origin.Calls("/api/cache/prefix"))

	f.clock.Add(3600 * time.Second)
	_, err = f.resolver.ResolvePrefix(ctx, "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, 3, f.origin.Calls("/api/cache/prefix"))
}

func TestResolvePrefix_NotFoundIsSilentAndUncached(t *testing.T) {
	f := newFixture(t)
	f.origin.SetPrefix(token, testutil.OriginReply{Status: http.StatusNotFound, Body: map[string]string{"message": "no prefix"}})

	for i := 0; i < 2; i++ {
		_, err := f.resolver.ResolvePrefix(context.Background(), "acme", "app", token)
		e := requireStatus(t, err, http.StatusNotFound)
		assert.True(t, e.Silent)
		assert.True(t, IsSilent(err))
	}
	assert.Equal(t, 2, f.origin.Calls("/api/cache/prefix"))
}

func TestResolvePrefix_ForbiddenCachedFor300s(t *testing.T) {
	f := newFixture(t)
	f.origin.SetPrefix(token, testutil.OriginReply{Status: http.StatusForbidden})

	_, err := f.resolver.ResolvePrefix(context.Background(), "acme", "app", token)
	e := requireStatus(t, err, http.StatusNotFound)
	assert.False(t, e.Silent)
	assert.Equal(t, 300*time.Second, f.store.TTL(PrefixCacheKey("acme", "app", token)))
}

func TestResolvePrefix_CacheWriteFailureStillAnswers(t *testing.T) {
	f := newFixture(t)
	f.origin.Allow(token, "p/", "acme/app")
	f.store.FailPuts = true

	prefix, err := f.resolver.ResolvePrefix(context.Background(), "acme", "app", token)
	require.NoError(t, err)
	assert.Equal(t, "p/", prefix)
}

func TestCacheKeys_DistinctNamespaces(t *testing.T) {
	assert.Contains(t, ProjectsCacheKey("x"), "accessible-projects:")
	assert.Contains(t, PrefixCacheKey("a", "b", "x"), "cas:")
	assert.NotEqual(t, ProjectsCacheKey("a:b:x"), PrefixCacheKey("a", "b", "x"))
}
