package token

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/token/keys"
)

// Identity is the caller of an API endpoint, taken from a verified JWT.
type Identity struct {
	TenantID    string
	Username    string
	AccountType string
}

// IsService reports whether the caller is a service account.
func (i *Identity) IsService() bool {
	return i.AccountType == ServiceAccountType
}

// Verifier validates request identity tokens.
type Verifier struct {
	signer  keys.Signer
	nowTime func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifierNowTime sets the now time function (primarily for testing)
func WithVerifierNowTime(nowFunc func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.nowTime = nowFunc
	}
}

func NewVerifier(signer keys.Signer, options ...VerifierOption) (*Verifier, error) {
	if signer == nil {
		return nil, fmt.Errorf("[NewVerifier] signer is required")
	}
	v := &Verifier{signer: signer, nowTime: time.Now}
	for _, opt := range options {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature and expiry of rawToken and extracts the
// identity claims. Every failure is InvalidCredentials.
func (v *Verifier) Verify(rawToken string) (*Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New(errors.ErrInvalidCredentials, "no identity token provided")
	}
	parsed, err := jwtlib.ParseWithClaims(rawToken, jwtlib.MapClaims{}, v.signer.GetVerificationKey,
		jwtlib.WithTimeFunc(v.nowTime),
		jwtlib.WithValidMethods([]string{v.signer.GetSigningMethod().Alg()}),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.WithCause(errors.ErrInvalidCredentials, "invalid or expired identity token", err)
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New(errors.ErrInvalidCredentials, "invalid identity token claims")
	}
	identity := &Identity{}
	identity.TenantID, _ = claims[ClaimTenantID].(string)
	identity.Username, _ = claims[ClaimUsername].(string)
	identity.AccountType, _ = claims[ClaimAccountType].(string)
	if identity.TenantID == "" || identity.Username == "" {
		return nil, errors.New(errors.ErrInvalidCredentials, "identity token is missing tenant or username")
	}
	return identity, nil
}
