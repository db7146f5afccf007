package clients

import "context"

// Repo persists clients. Every operation is scoped to a tenant; a client in
// one tenant is invisible from another.
//
// Create fails with a validation error when (tenantID, clientID) already
// exists. Get and Delete fail with a not found error when it does not.
type Repo interface {
	Create(ctx context.Context, client *Client) error
	Get(ctx context.Context, tenantID, clientID string) (*Client, error)
	ListByOwner(ctx context.Context, tenantID, owner string) ([]*Client, error)
	Delete(ctx context.Context, tenantID, clientID string) error
}
