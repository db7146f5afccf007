package tenantrepofakes

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	tenants map[string]*tenants.Tenant
	lock    sync.RWMutex
	gets    int
}

func NewFakeTenantRepo(initial ...*tenants.Tenant) *FakeTenantRepo {
	tr := &FakeTenantRepo{
		tenants: make(map[string]*tenants.Tenant),
	}
	for _, t := range initial {
		tr.tenants[t.ID] = t.Clone()
	}
	return tr
}

func (tr *FakeTenantRepo) Upsert(_ context.Context, tenantData *tenants.Tenant) error {
	if err := tenantData.Validate(); err != nil {
		return errors.WithCause(errors.ErrValidation, "invalid tenant configuration", err)
	}
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.tenants[tenantData.ID] = tenantData.Clone()
	return nil
}

func (tr *FakeTenantRepo) Get(_ context.Context, tenantID string) (*tenants.Tenant, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	tr.gets++
	t, ok := tr.tenants[tenantID]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "tenant %s not found", tenantID)
	}
	return t.Clone(), nil
}

func (tr *FakeTenantRepo) List(_ context.Context) ([]*tenants.Tenant, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	list := make([]*tenants.Tenant, 0, len(tr.tenants))
	for _, t := range tr.tenants {
		list = append(list, t.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list, nil
}

// GetCalls returns how many times Get has been called.
func (tr *FakeTenantRepo) GetCalls() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return tr.gets
}
