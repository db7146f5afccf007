package tokenfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/jrsteele09/go-authenticator/token"
)

var _ token.Issuer = (*FakeIssuer)(nil)

// FakeIssuer records grants and returns a fixed response.
type FakeIssuer struct {
	lock   sync.Mutex
	grants []token.Grant
	err    error
}

func NewFakeIssuer() *FakeIssuer {
	return &FakeIssuer{}
}

// FailWith makes every following Issue call return err.
func (f *FakeIssuer) FailWith(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.err = err
}

func (f *FakeIssuer) Grants() []token.Grant {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]token.Grant(nil), f.grants...)
}

func (f *FakeIssuer) Issue(_ context.Context, grant token.Grant) (oauthmodel.TokenResponse, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.grants = append(f.grants, grant)
	return oauthmodel.TokenResponse{
		"access_token": map[string]any{
			"access_token": "fake-token-for-" + grant.Username,
			"expires_in":   int64(grant.AccessTokenTTL.Seconds()),
		},
	}, nil
}
