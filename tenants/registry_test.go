package tenants_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/tenants"
	tenantrepofakes "github.com/jrsteele09/go-authenticator/tenants/repofakes"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, list ...*tenants.Tenant) (*tenants.Registry, *tenantrepofakes.FakeTenantRepo) {
	t.Helper()
	repo := tenantrepofakes.NewFakeTenantRepo(list...)
	r, err := tenants.NewRegistry(repo)
	require.NoError(t, err)
	return r, repo
}

func TestRegistryInitServesFromCache(t *testing.T) {
	r, repo := newRegistry(t,
		&tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"},
		&tenants.Tenant{ID: "t2", BaseURL: "https://t2.example.org:8443"},
	)
	require.NoError(t, r.Init(context.Background()))

	got, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "https://t1.example.org", got.BaseURL)
	require.Equal(t, 0, repo.GetCalls())

	byHost, err := r.LookupByHost(context.Background(), "T2.example.org:443")
	require.NoError(t, err)
	require.Equal(t, "t2", byHost.ID)

	list, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "t1", list[0].ID)
	require.Equal(t, 0, repo.GetCalls())
}

func TestRegistryReturnsCopies(t *testing.T) {
	r, _ := newRegistry(t, &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org", Admins: []string{"root"}})
	require.NoError(t, r.Init(context.Background()))

	got, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	got.Admins[0] = "mallory"
	got.BaseURL = "https://evil.example.org"

	again, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "https://t1.example.org", again.BaseURL)
	require.True(t, again.IsAdmin("root"))
}

func TestRegistryMissLoadsOnce(t *testing.T) {
	r, repo := newRegistry(t, &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get(context.Background(), "t1")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, repo.GetCalls(), 16)
	calls := repo.GetCalls()
	_, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, calls, repo.GetCalls())
}

func TestRegistryUnknownTenant(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Get(context.Background(), "nope")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = r.LookupByHost(context.Background(), "nope.example.org")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = r.Get(context.Background(), "")
	require.True(t, errors.Is(err, errors.ErrValidation))
}

func TestRegistryUpdateReplacesEntry(t *testing.T) {
	r, _ := newRegistry(t, &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"})
	require.NoError(t, r.Init(context.Background()))

	updated := &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org", CustomIdpConfiguration: `{"ext_type":"github"}`}
	require.NoError(t, r.Update(context.Background(), updated))

	got, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	ext, err := got.ExtensionType()
	require.NoError(t, err)
	require.Equal(t, "github", ext)

	byHost, err := r.LookupByHost(context.Background(), "t1.example.org")
	require.NoError(t, err)
	require.Equal(t, updated.CustomIdpConfiguration, byHost.CustomIdpConfiguration)

	err = r.Update(context.Background(), &tenants.Tenant{ID: "t1", BaseURL: "not a url"})
	require.True(t, errors.Is(err, errors.ErrValidation))
}

func TestTenantGrantTypes(t *testing.T) {
	open := &tenants.Tenant{ID: "t1"}
	require.True(t, open.AllowsGrantType("password"))

	restricted := &tenants.Tenant{ID: "t1", AllowableGrantTypes: []string{"authorization_code"}}
	require.True(t, restricted.AllowsGrantType("authorization_code"))
	require.False(t, restricted.AllowsGrantType("password"))
}

func TestRegistryInvalidateReloadsOnHostLookup(t *testing.T) {
	ctx := context.Background()
	r, repo := newRegistry(t,
		&tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"},
		&tenants.Tenant{ID: "t2", BaseURL: "https://t2.example.org"},
	)
	require.NoError(t, r.Init(ctx))

	// A change made behind the registry's back shows after invalidation.
	require.NoError(t, repo.Upsert(ctx, &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org", UseTokenWebapp: true}))
	r.Invalidate("t1")

	got, err := r.LookupByHost(ctx, "t1.example.org")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)
	require.True(t, got.UseTokenWebapp)
	require.Equal(t, 1, repo.GetCalls())

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestRegistryInvalidateFollowsMovedHost(t *testing.T) {
	ctx := context.Background()
	r, repo := newRegistry(t, &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"})
	require.NoError(t, r.Init(ctx))

	require.NoError(t, repo.Upsert(ctx, &tenants.Tenant{ID: "t1", BaseURL: "https://auth.example.org"}))
	r.Invalidate("t1")

	_, err := r.LookupByHost(ctx, "t1.example.org")
	require.True(t, errors.Is(err, errors.ErrNotFound))
	got, err := r.LookupByHost(ctx, "auth.example.org")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)
}

func TestRegistryCacheTTLReloads(t *testing.T) {
	ctx := context.Background()
	repo := tenantrepofakes.NewFakeTenantRepo(&tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"})
	r, err := tenants.NewRegistry(repo, tenants.WithCacheTTL(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, r.Init(ctx))

	time.Sleep(50 * time.Millisecond)

	got, err := r.LookupByHost(ctx, "t1.example.org")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)
	require.Equal(t, 1, repo.GetCalls())
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRegistryRefreshPicksUpNewTenants(t *testing.T) {
	ctx := context.Background()
	r, repo := newRegistry(t, &tenants.Tenant{ID: "t1", BaseURL: "https://t1.example.org"})
	require.NoError(t, r.Init(ctx))

	require.NoError(t, repo.Upsert(ctx, &tenants.Tenant{ID: "t3", BaseURL: "https://t3.example.org"}))
	_, err := r.LookupByHost(ctx, "t3.example.org")
	require.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, r.Refresh(ctx))
	got, err := r.LookupByHost(ctx, "t3.example.org")
	require.NoError(t, err)
	require.Equal(t, "t3", got.ID)
}
