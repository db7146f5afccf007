// Package token bridges verified identities to access tokens. The server
// never decides token contents itself: an Issuer mints the token and the
// response is handed back to the caller unchanged.
package token

import (
	"context"
	"time"

	"github.com/jrsteele09/go-authenticator/oauthmodel"
)

// ServiceAccountType is the account type requested for every token minted
// by the authorization server.
const ServiceAccountType = "service"

// Grant is the verified identity a token is minted for.
type Grant struct {
	TenantID       string
	Username       string
	AccountType    string
	ClientID       string
	Issuer         string
	AccessTokenTTL time.Duration
}

// Issuer mints an access token for a grant.
type Issuer interface {
	Issue(ctx context.Context, grant Grant) (oauthmodel.TokenResponse, error)
}
