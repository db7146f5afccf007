package tenants

import "context"

// Repo is the source of truth for tenant configuration. Reads go through the
// Registry cache; the repo is only consulted on start up, refresh and misses.
type Repo interface {
	Upsert(ctx context.Context, tenantData *Tenant) error
	Get(ctx context.Context, tenantID string) (*Tenant, error)
	List(ctx context.Context) ([]*Tenant, error)
}
