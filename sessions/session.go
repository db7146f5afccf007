// Package sessions keeps per user-agent state for the browser flows: the
// selected tenant, the authenticated username, federation state and the
// authorization request being resumed. Values are stored server side under
// an opaque id carried by a cookie.
package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
)

// Store persists session values. Load of an unknown id returns an empty map.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// DefaultSessionTTL is used when the manager is built without a ttl.
const DefaultSessionTTL = 30 * time.Minute

const (
	keyTenant      = "tenant_id"
	keyUsername    = "username"
	keyOAuthState  = "oauth2_state"
	keyPending     = "pending_authorization"
	keyWebappState = "webapp_state"
	keyConsent     = "consent_nonce"
)

// Manager loads and creates sessions over a Store.
type Manager struct {
	store Store
	ttl   time.Duration
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("[NewManager] session store is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{store: store, ttl: ttl}, nil
}

// TTL is the idle lifetime of a session.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Load returns the session with id, or a new empty session when id is empty
// or unknown.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return m.newSession(), nil
	}
	values, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("[Manager.Load] %w", err)
	}
	if len(values) == 0 {
		return m.newSession(), nil
	}
	return &Session{id: id, values: values, manager: m}, nil
}

func (m *Manager) newSession() *Session {
	return &Session{id: uuid.New().String(), values: make(map[string]string), manager: m, isNew: true}
}

// Session exposes typed accessors so "absent" and "empty" cannot be confused.
type Session struct {
	id      string
	values  map[string]string
	manager *Manager
	isNew   bool
	dirty   bool

	// rotatedFrom is the stored id replaced by Rotate, deleted on Save.
	rotatedFrom string
}

func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

func (s *Session) get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok && v != ""
}

func (s *Session) set(key, value string) {
	if value == "" {
		delete(s.values, key)
	} else {
		s.values[key] = value
	}
	s.dirty = true
}

func (s *Session) Tenant() (string, bool)      { return s.get(keyTenant) }
func (s *Session) SetTenant(tenantID string)   { s.set(keyTenant, tenantID) }
func (s *Session) Username() (string, bool)    { return s.get(keyUsername) }
func (s *Session) SetUsername(username string) { s.set(keyUsername, username) }
func (s *Session) OAuthState() (string, bool)  { return s.get(keyOAuthState) }
func (s *Session) SetOAuthState(state string)  { s.set(keyOAuthState, state) }
func (s *Session) ClearOAuthState()            { s.set(keyOAuthState, "") }
func (s *Session) WebappState() (string, bool) { return s.get(keyWebappState) }
func (s *Session) SetWebappState(state string) { s.set(keyWebappState, state) }

// ConsentNonce identifies the consent page last shown for the pending
// authorization. A consent answer must carry it.
func (s *Session) ConsentNonce() (string, bool) { return s.get(keyConsent) }
func (s *Session) SetConsentNonce(nonce string) { s.set(keyConsent, nonce) }

// PendingAuthorization returns the authorize request waiting for login or
// tenant selection to complete.
func (s *Session) PendingAuthorization() (*oauthmodel.AuthorizationParameters, bool) {
	raw, ok := s.get(keyPending)
	if !ok {
		return nil, false
	}
	var p oauthmodel.AuthorizationParameters
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (s *Session) SetPendingAuthorization(p *oauthmodel.AuthorizationParameters) {
	if p == nil {
		s.set(keyPending, "")
		s.set(keyConsent, "")
		return
	}
	raw, _ := json.Marshal(p)
	s.set(keyPending, string(raw))
}

// Clear removes every value. The session id is kept so the cookie stays valid.
func (s *Session) Clear() {
	s.values = make(map[string]string)
	s.dirty = true
}

// Rotate moves the values to a fresh id. Called whenever an identity is
// bound so an id planted before login is worthless afterwards.
func (s *Session) Rotate() {
	if !s.isNew && s.rotatedFrom == "" {
		s.rotatedFrom = s.id
	}
	s.id = uuid.New().String()
	s.dirty = true
}

// Save writes the session back when it changed.
func (s *Session) Save(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	var err error
	if len(s.values) == 0 {
		err = s.manager.store.Delete(ctx, s.id)
	} else {
		err = s.manager.store.Save(ctx, s.id, s.values, s.manager.ttl)
	}
	if err != nil {
		return fmt.Errorf("[Session.Save] %w", err)
	}
	if s.rotatedFrom != "" {
		if err := s.manager.store.Delete(ctx, s.rotatedFrom); err != nil {
			return fmt.Errorf("[Session.Save] %w", err)
		}
		s.rotatedFrom = ""
	}
	s.dirty = false
	s.isNew = false
	return nil
}
