package authcoderepofakes

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/jrsteele09/go-authenticator/authcodes"
)

var _ authcodes.Repo = (*FakeCodeRepo)(nil)

type codeKey struct {
	tenantID string
	code     string
}

// FakeCodeRepo keeps codes in memory. A single mutex guards the
// check-and-set in Consume.
type FakeCodeRepo struct {
	codes map[codeKey]*authcodes.AuthorizationCode
	lock  sync.Mutex
}

func NewFakeCodeRepo() *FakeCodeRepo {
	return &FakeCodeRepo{
		codes: make(map[codeKey]*authcodes.AuthorizationCode),
	}
}

func (r *FakeCodeRepo) Insert(_ context.Context, code *authcodes.AuthorizationCode) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	// Expired and redeemed codes can never succeed again.
	for k, c := range r.codes {
		if c.Consumed || c.Expired(code.CreateTime) {
			delete(r.codes, k)
		}
	}

	k := codeKey{code.TenantID, code.Code}
	if _, exists := r.codes[k]; exists {
		return authcodes.ErrCodeExists
	}
	cp := *code
	r.codes[k] = &cp
	return nil
}

func (r *FakeCodeRepo) Consume(_ context.Context, tenantID, code, clientID, clientKey string, now time.Time) (*authcodes.AuthorizationCode, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	c, ok := r.codes[codeKey{tenantID, code}]
	switch {
	case !ok:
		return nil, authcodes.Rejected("code not found")
	case c.ClientID != clientID || subtle.ConstantTimeCompare([]byte(c.ClientKey), []byte(clientKey)) != 1:
		return nil, authcodes.Rejected("client credentials do not match code")
	case c.Expired(now):
		return nil, authcodes.Rejected("code expired")
	case c.Consumed:
		return nil, authcodes.Rejected("code already consumed")
	}
	c.Consumed = true
	cp := *c
	return &cp, nil
}
