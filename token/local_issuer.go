package token

import (
	"context"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/jrsteele09/go-authenticator/token/keys"
)

var _ Issuer = (*LocalIssuer)(nil)

const defaultLocalTTL = 4 * time.Hour

// Claim names shared by locally minted tokens and request identity tokens.
const (
	ClaimTenantID    = "tapis/tenant_id"
	ClaimUsername    = "tapis/username"
	ClaimAccountType = "tapis/account_type"
	ClaimTokenType   = "tapis/token_type"
	ClaimClientID    = "tapis/client_id"
)

// LocalIssuer signs access tokens in process. It stands in for the tokens
// service in development and single-binary deployments.
type LocalIssuer struct {
	signer  keys.Signer
	nowTime func() time.Time
}

// LocalIssuerOption configures a LocalIssuer.
type LocalIssuerOption func(*LocalIssuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LocalIssuerOption {
	return func(l *LocalIssuer) {
		l.nowTime = nowFunc
	}
}

func NewLocalIssuer(signer keys.Signer, options ...LocalIssuerOption) (*LocalIssuer, error) {
	if signer == nil {
		return nil, fmt.Errorf("[NewLocalIssuer] signer is required")
	}
	l := &LocalIssuer{signer: signer, nowTime: time.Now}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Issue returns {"access_token": {access_token, expires_at, expires_in, jti}}.
func (l *LocalIssuer) Issue(_ context.Context, grant Grant) (oauthmodel.TokenResponse, error) {
	ttl := grant.AccessTokenTTL
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	now := l.nowTime().UTC()
	expiry := now.Add(ttl)
	jti := uuid.New().String()

	claims := jwtlib.MapClaims{
		"iss":            grant.Issuer,                          // Tenant issuer
		"sub":            grant.Username + "@" + grant.TenantID, // Subject, unique across tenants
		"iat":            now.Unix(),                            // Issued at
		"exp":            expiry.Unix(),                         // Expiry
		"jti":            jti,                                   // Unique token ID
		ClaimTenantID:    grant.TenantID,                        // Tenant the token is valid in
		ClaimUsername:    grant.Username,                        // Resource owner
		ClaimAccountType: grant.AccountType,                     // user or service
		ClaimTokenType:   "access",                              // Always an access token
	}
	if grant.ClientID != "" {
		claims[ClaimClientID] = grant.ClientID
	}

	signed, err := l.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("[LocalIssuer.Issue] %w", err)
	}
	return oauthmodel.TokenResponse{
		"access_token": map[string]any{
			"access_token": signed,
			"expires_at":   expiry.Format(time.RFC3339),
			"expires_in":   int64(ttl / time.Second),
			"jti":          jti,
		},
	}, nil
}
