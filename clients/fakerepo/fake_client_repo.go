package fakeclientrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/internal/errors"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type clientKey struct {
	tenantID string
	clientID string
}

type FakeClientRepo struct {
	clients map[clientKey]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[clientKey]*clients.Client),
	}
}

func (r *FakeClientRepo) Create(_ context.Context, clientData *clients.Client) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	k := clientKey{clientData.TenantID, clientData.ClientID}
	if _, exists := r.clients[k]; exists {
		return errors.Newf(errors.ErrValidation, "client %s already exists", clientData.ClientID)
	}
	cp := *clientData
	r.clients[k] = &cp
	return nil
}

func (r *FakeClientRepo) Get(_ context.Context, tenantID, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientKey{tenantID, clientID}]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "no client found with id %s", clientID)
	}
	cp := *client
	return &cp, nil
}

func (r *FakeClientRepo) ListByOwner(_ context.Context, tenantID, owner string) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0)
	for k, v := range r.clients {
		if k.tenantID == tenantID && v.Owner == owner {
			cp := *v
			list = append(list, &cp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ClientID < list[j].ClientID
	})
	return list, nil
}

func (r *FakeClientRepo) Delete(_ context.Context, tenantID, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	k := clientKey{tenantID, clientID}
	if _, ok := r.clients[k]; !ok {
		return errors.Newf(errors.ErrNotFound, "no client found with id %s", clientID)
	}
	delete(r.clients, k)
	return nil
}
