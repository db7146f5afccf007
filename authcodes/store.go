package authcodes

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	codeGenerationLength = 32
	DefaultCodeTTL       = 600 * time.Second
	maxIssueAttempts     = 3
)

// ErrCodeExists is returned by Repo.Insert when the code is already stored
// for the tenant.
var ErrCodeExists = stderrors.New("authorization code already exists")

// Store generates, issues and redeems authorization codes.
type Store struct {
	repo    Repo
	ttl     time.Duration
	nowTime func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL sets the lifetime of issued codes.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore returns a code store over repo.
func NewStore(repo Repo, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("[NewStore] authorization code repo is required")
	}
	s := &Store{repo: repo, ttl: DefaultCodeTTL, nowTime: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime applied to issued codes.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// GenerateCode returns 256 bits of randomness, base64url encoded without padding.
func GenerateCode() (string, error) {
	b := make([]byte, codeGenerationLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[GenerateCode] %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ComputeExpiry returns the expiry time for a code issued at now.
func (s *Store) ComputeExpiry(now time.Time) time.Time {
	return now.Add(s.ttl)
}

// Issue persists a fresh, unconsumed code.
func (s *Store) Issue(ctx context.Context, tenantID, clientID, clientKey, redirectURL, username string) (*AuthorizationCode, error) {
	if tenantID == "" || clientID == "" || redirectURL == "" || username == "" {
		return nil, errors.New(errors.ErrValidation, "tenant, client, redirect url and username are required to issue a code")
	}

	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		now := s.nowTime().UTC()
		ac := &AuthorizationCode{
			TenantID:    tenantID,
			ClientID:    clientID,
			ClientKey:   clientKey,
			RedirectURL: redirectURL,
			Code:        code,
			Username:    username,
			CreateTime:  now,
			ExpiryTime:  s.ComputeExpiry(now),
		}
		err = s.repo.Insert(ctx, ac)
		if err == nil {
			log.Debug().Str("tenant_id", tenantID).Str("client_id", clientID).Time("expires", ac.ExpiryTime).Msg("authorization code issued")
			return ac, nil
		}
		if !errors.Is(err, ErrCodeExists) {
			return nil, fmt.Errorf("[Store.Issue] %w", err)
		}
	}
	return nil, fmt.Errorf("[Store.Issue] could not generate a unique code")
}

// ValidateAndConsume redeems code for the presented client credentials. Any
// failure, including a replay of an already consumed code, is an invalid
// grant error.
func (s *Store) ValidateAndConsume(ctx context.Context, tenantID, code, clientID, clientKey string) (*AuthorizationCode, error) {
	if code == "" {
		return nil, errors.New(errors.ErrInvalidGrant, "authorization code is required")
	}
	ac, err := s.repo.Consume(ctx, tenantID, code, clientID, clientKey, s.nowTime().UTC())
	if err != nil {
		if errors.Is(err, errors.ErrInvalidGrant) {
			log.Debug().Err(err).Str("tenant_id", tenantID).Str("client_id", clientID).Msg("authorization code rejected")
			return nil, err
		}
		return nil, errors.WithCause(errors.ErrServiceUnavailable, "authorization code store unavailable", err)
	}
	return ac, nil
}

// Rejected builds the error every repo returns for a failed redemption. The
// reason is kept as the cause for logs and never shown to callers.
func Rejected(reason string) error {
	return errors.WithCause(errors.ErrInvalidGrant, "invalid, expired or already used authorization code", stderrors.New(reason))
}
