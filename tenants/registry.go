package tenants

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Registry is the process-wide, read-mostly tenant cache. It is built once
// at start up, passed to the components that need tenant lookups and can be
// refreshed or invalidated explicitly.
//
// The cache holds tenant values and may drop them (Invalidate, ttl). The set
// of known tenants and their hosts is kept apart so host lookups and listings
// survive a dropped entry and reload it through Get.
type Registry struct {
	repo  Repo
	cache *gocache.Cache
	sf    singleflight.Group
	ttl   time.Duration

	mu    sync.RWMutex
	known map[string]string // tenant id -> host
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCacheTTL expires cached tenants after ttl; expired tenants are reloaded
// on the next lookup. Zero keeps entries until they are refreshed or
// invalidated.
func WithCacheTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewRegistry returns an empty registry over repo. Call Init before serving.
func NewRegistry(repo Repo, options ...RegistryOption) (*Registry, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewRegistry] tenant repo is required")
	}
	r := &Registry{repo: repo, ttl: gocache.NoExpiration, known: make(map[string]string)}
	for _, opt := range options {
		opt(r)
	}
	r.cache = gocache.New(r.ttl, time.Minute)
	return r, nil
}

// Init loads every tenant from the repo into the cache.
func (r *Registry) Init(ctx context.Context) error {
	n, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("[Registry.Init] %w", err)
	}
	log.Info().Int("tenants", n).Msg("tenant registry initialised")
	return nil
}

// Refresh replaces the cache contents with the current repo state.
func (r *Registry) Refresh(ctx context.Context) error {
	if _, err := r.load(ctx); err != nil {
		return fmt.Errorf("[Registry.Refresh] %w", err)
	}
	return nil
}

func (r *Registry) load(ctx context.Context) (int, error) {
	list, err := r.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}
	r.cache.Flush()
	r.mu.Lock()
	r.known = make(map[string]string, len(list))
	r.mu.Unlock()
	for _, t := range list {
		r.store(t)
	}
	return len(list), nil
}

// store caches t and records its host.
func (r *Registry) store(t *Tenant) {
	r.cache.Set(t.ID, t, gocache.DefaultExpiration)
	r.mu.Lock()
	r.known[t.ID] = t.Host()
	r.mu.Unlock()
}

func (r *Registry) forget(tenantID string) {
	r.cache.Delete(tenantID)
	r.mu.Lock()
	delete(r.known, tenantID)
	r.mu.Unlock()
}

// Invalidate drops the cached value of a tenant. The tenant stays known and
// the next lookup reloads it from the repo.
func (r *Registry) Invalidate(tenantID string) {
	r.cache.Delete(tenantID)
}

// Get returns a copy of the tenant. Concurrent misses for the same tenant
// share one repo lookup.
func (r *Registry) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, errors.New(errors.ErrValidation, "tenant id is required")
	}
	if v, ok := r.cache.Get(tenantID); ok {
		return v.(*Tenant).Clone(), nil
	}

	v, err, _ := r.sf.Do(tenantID, func() (any, error) {
		t, err := r.repo.Get(ctx, tenantID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				r.forget(tenantID)
			}
			return nil, err
		}
		r.store(t)
		return t, nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("[Registry.Get] load tenant %s: %w", tenantID, err)
	}
	return v.(*Tenant).Clone(), nil
}

// LookupByHost resolves the tenant whose base URL host matches host.
func (r *Registry) LookupByHost(ctx context.Context, host string) (*Tenant, error) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	notFound := errors.Newf(errors.ErrNotFound, "no tenant serves host %s", host)

	tenantID, ok := r.idForHost(host)
	if !ok {
		return nil, notFound
	}
	t, err := r.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, notFound
		}
		return nil, err
	}
	// A reload may have moved the tenant to another host.
	if t.Host() != host {
		return nil, notFound
	}
	return t, nil
}

func (r *Registry) idForHost(host string) (string, bool) {
	if host == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, h := range r.known {
		if h == host {
			return id, true
		}
	}
	return "", false
}

// List returns every known tenant ordered by id. Tenants that are no longer
// in the repo are skipped.
func (r *Registry) List(ctx context.Context) ([]*Tenant, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.known))
	for id := range r.known {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	list := make([]*Tenant, 0, len(ids))
	for _, id := range ids {
		t, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("[Registry.List] %w", err)
		}
		list = append(list, t)
	}
	return list, nil
}

// Update writes the tenant through to the repo and replaces its cache entry,
// so host lookups keep resolving it.
func (r *Registry) Update(ctx context.Context, t *Tenant) error {
	if err := r.repo.Upsert(ctx, t); err != nil {
		return fmt.Errorf("[Registry.Update] %w", err)
	}
	r.store(t.Clone())
	return nil
}
