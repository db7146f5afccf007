package clients

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/rs/zerolog/log"
)

const clientKeyLength = 32

// Store applies ownership and validation rules on top of a Repo.
type Store struct {
	repo    Repo
	nowTime func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore returns a client store over repo.
func NewStore(repo Repo, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewStore] clients repo is required")
	}
	s := &Store{repo: repo, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// List returns the clients owned by owner in the tenant.
func (s *Store) List(ctx context.Context, tenantID, owner string) ([]*Client, error) {
	list, err := s.repo.ListByOwner(ctx, tenantID, owner)
	if err != nil {
		return nil, fmt.Errorf("[Store.List] %w", err)
	}
	return list, nil
}

// Create registers a new client owned by owner.
func (s *Store) Create(ctx context.Context, tenantID, owner string, reg Registration) (*Client, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(owner) == "" {
		return nil, errors.New(errors.ErrValidation, "tenant and owner are required")
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	client := &Client{
		TenantID:    tenantID,
		ClientID:    reg.ClientID,
		ClientKey:   reg.ClientKey,
		CallbackURL: reg.CallbackURL,
		DisplayName: reg.DisplayName,
		Description: reg.Description,
		Owner:       owner,
	}
	if client.ClientID == "" {
		client.ClientID = uuid.New().String()
	}
	if client.ClientKey == "" {
		key, err := generateClientKey()
		if err != nil {
			return nil, fmt.Errorf("[Store.Create] %w", err)
		}
		client.ClientKey = key
	}
	if client.DisplayName == "" {
		client.DisplayName = client.ClientID
	}
	now := s.nowTime().UTC()
	client.CreateTime = now
	client.LastUpdateTime = now

	if err := s.repo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("[Store.Create] %w", err)
	}
	log.Info().Str("tenant_id", tenantID).Str("client_id", client.ClientID).Str("owner", owner).Msg("client created")
	return client, nil
}

// Get returns the client regardless of owner. Used by the authorization flow.
func (s *Store) Get(ctx context.Context, tenantID, clientID string) (*Client, error) {
	client, err := s.repo.Get(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetOwned returns the client only when requester owns it.
func (s *Store) GetOwned(ctx context.Context, tenantID, clientID, requester string) (*Client, error) {
	client, err := s.repo.Get(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}
	if client.Owner != requester {
		return nil, errors.New(errors.ErrPermissionDenied, "not authorized for this client")
	}
	return client, nil
}

// Delete removes the client when requester owns it.
func (s *Store) Delete(ctx context.Context, tenantID, clientID, requester string) error {
	if _, err := s.GetOwned(ctx, tenantID, clientID, requester); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, tenantID, clientID); err != nil {
		return fmt.Errorf("[Store.Delete] %w", err)
	}
	log.Info().Str("tenant_id", tenantID).Str("client_id", clientID).Msg("client deleted")
	return nil
}

// Authenticate checks presented client credentials against the stored
// client. Unknown clients and wrong keys fail identically.
func (s *Store) Authenticate(ctx context.Context, tenantID, clientID, clientKey string) (*Client, error) {
	if clientID == "" || clientKey == "" {
		return nil, errors.New(errors.ErrInvalidClient, "invalid client credentials")
	}
	client, err := s.repo.Get(ctx, tenantID, clientID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.New(errors.ErrInvalidClient, "invalid client credentials")
		}
		return nil, fmt.Errorf("[Store.Authenticate] %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(client.ClientKey), []byte(clientKey)) != 1 {
		return nil, errors.New(errors.ErrInvalidClient, "invalid client credentials")
	}
	return client, nil
}

func generateClientKey() (string, error) {
	b := make([]byte, clientKeyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
