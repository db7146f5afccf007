// Package filerepo loads tenant configuration from a YAML document and writes
// admin updates back to it.
package filerepo

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/tenants"
	"gopkg.in/yaml.v3"
)

var _ tenants.Repo = (*FileTenantRepo)(nil)

type document struct {
	Tenants []*tenants.Tenant `yaml:"tenants"`
}

// FileTenantRepo keeps the parsed document in memory. Upserts rewrite the
// whole file.
type FileTenantRepo struct {
	path    string
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
}

// Load reads and validates the tenants file at path.
func Load(path string) (*FileTenantRepo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[filerepo.Load] read %s: %w", path, err)
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("[filerepo.Load] parse %s: %w", path, err)
	}

	r := &FileTenantRepo{path: path, tenants: make(map[string]*tenants.Tenant, len(doc.Tenants))}
	for _, t := range doc.Tenants {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("[filerepo.Load] %w", err)
		}
		if _, dup := r.tenants[t.ID]; dup {
			return nil, fmt.Errorf("[filerepo.Load] duplicate tenant %s", t.ID)
		}
		r.tenants[t.ID] = t
	}
	return r, nil
}

func (r *FileTenantRepo) Upsert(_ context.Context, tenantData *tenants.Tenant) error {
	if err := tenantData.Validate(); err != nil {
		return errors.WithCause(errors.ErrValidation, "invalid tenant configuration", err)
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	previous, existed := r.tenants[tenantData.ID]
	r.tenants[tenantData.ID] = tenantData.Clone()
	if err := r.flush(); err != nil {
		if existed {
			r.tenants[tenantData.ID] = previous
		} else {
			delete(r.tenants, tenantData.ID)
		}
		return fmt.Errorf("[FileTenantRepo.Upsert] %w", err)
	}
	return nil
}

func (r *FileTenantRepo) Get(_ context.Context, tenantID string) (*tenants.Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "tenant %s not found", tenantID)
	}
	return t.Clone(), nil
}

func (r *FileTenantRepo) List(_ context.Context) ([]*tenants.Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.sorted(), nil
}

func (r *FileTenantRepo) sorted() []*tenants.Tenant {
	list := make([]*tenants.Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		list = append(list, t.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// flush must be called with the write lock held.
func (r *FileTenantRepo) flush() error {
	out, err := yaml.Marshal(document{Tenants: r.sorted()})
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
