// Package authcodes issues and redeems single-use authorization codes.
//
// A code is bound to the tenant, the client credentials, the client's
// registered callback and the user who consented. Redemption verifies all of
// them and marks the code consumed in one atomic step, so concurrent
// redemptions of the same code produce exactly one winner.
package authcodes

import (
	"context"
	"time"
)

// AuthorizationCode is a short-lived grant exchanged once for an access token.
type AuthorizationCode struct {
	TenantID    string    `json:"tenant_id"`
	ClientID    string    `json:"client_id"`
	ClientKey   string    `json:"-"`
	RedirectURL string    `json:"redirect_url"`
	Code        string    `json:"code"`
	Username    string    `json:"username"`
	CreateTime  time.Time `json:"create_time"`
	ExpiryTime  time.Time `json:"expiry_time"`
	Consumed    bool      `json:"consumed"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiryTime)
}

// Repo persists codes. Consume must perform the lookup, the client credential
// match, the expiry check, the consumed check and the consumed transition as
// one atomic operation, returning an invalid grant error when any check
// fails.
type Repo interface {
	Insert(ctx context.Context, code *AuthorizationCode) error
	Consume(ctx context.Context, tenantID, code, clientID, clientKey string, now time.Time) (*AuthorizationCode, error)
}
