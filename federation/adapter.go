package federation

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultProviderTimeout = 10 * time.Second

	// CallbackPath is where every provider returns the user agent.
	CallbackPath = "/v3/oauth2/extensions/oa2/callback"

	// LocalDevelopmentCallbackURL replaces the tenant callback when running
	// on a workstation.
	LocalDevelopmentCallbackURL = "http://localhost:5000" + CallbackPath

	stateLength = 32

	providerFailureMessage = "error communicating with the identity provider; please contact server administrator"
)

// TenantSource resolves tenant configuration.
type TenantSource interface {
	Get(ctx context.Context, tenantID string) (*tenants.Tenant, error)
}

// StateStore holds the state sent to the provider for one user agent.
type StateStore interface {
	OAuthState() (string, bool)
	SetOAuthState(state string)
	ClearOAuthState()
}

// CallbackURL returns the provider callback for a tenant base URL.
func CallbackURL(baseURL string, localDevelopment bool) string {
	if localDevelopment {
		return LocalDevelopmentCallbackURL
	}
	return strings.TrimRight(baseURL, "/") + CallbackPath
}

// Federator creates per-attempt adapters for federated tenants.
type Federator struct {
	tenants          TenantSource
	providers        *Registry
	localDevelopment bool
}

// FederatorOption configures a Federator.
type FederatorOption func(*Federator)

// WithLocalDevelopment makes every adapter use LocalDevelopmentCallbackURL.
func WithLocalDevelopment(enabled bool) FederatorOption {
	return func(f *Federator) {
		f.localDevelopment = enabled
	}
}

func NewFederator(tenantSource TenantSource, providers *Registry, options ...FederatorOption) (*Federator, error) {
	if tenantSource == nil {
		return nil, fmt.Errorf("[NewFederator] tenant source is required")
	}
	if providers == nil {
		return nil, fmt.Errorf("[NewFederator] provider registry is required")
	}
	f := &Federator{tenants: tenantSource, providers: providers}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

// Enabled reports whether the tenant delegates authentication.
func (f *Federator) Enabled(ctx context.Context, tenantID string) (bool, error) {
	tenant, err := f.tenants.Get(ctx, tenantID)
	if err != nil {
		return false, err
	}
	extType, err := tenant.ExtensionType()
	if err != nil {
		return false, errors.WithCause(errors.ErrConfiguration, "custom idp configuration is not valid", err)
	}
	return extType != "", nil
}

// NewAdapter loads the tenant configuration and resolves its provider. It
// never contacts the provider.
func (f *Federator) NewAdapter(ctx context.Context, tenantID string) (*Adapter, error) {
	tenant, err := f.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	extType, err := tenant.ExtensionType()
	if err != nil {
		return nil, errors.WithCause(errors.ErrConfiguration, "custom idp configuration is not valid", err)
	}
	if extType == "" {
		return nil, errors.New(errors.ErrConfiguration, "tenant not configured for federation")
	}
	callbackURL := CallbackURL(tenant.BaseURL, f.localDevelopment)
	provider, err := f.providers.Build(extType, tenant.CustomIdpConfiguration, callbackURL)
	if err != nil {
		return nil, err
	}
	return &Adapter{
		TenantID:    tenant.ID,
		ExtType:     extType,
		CallbackURL: callbackURL,
		provider:    provider,
	}, nil
}

// Adapter is one federation attempt. It must not be shared between agents.
type Adapter struct {
	TenantID    string
	ExtType     string
	CallbackURL string

	provider          Provider
	authorizationCode string
	accessToken       *oauth2.Token
	username          string
}

// Settings returns the provider endpoints and credentials in use.
func (a *Adapter) Settings() Settings {
	return a.provider.Settings()
}

// Username is the identity resolved by the attempt, if any.
func (a *Adapter) Username() string {
	return a.username
}

// BeginLogin stores a fresh state in the session and returns the provider
// URL to send the agent to.
func (a *Adapter) BeginLogin(ctx context.Context, session StateStore) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("[Adapter.BeginLogin] %w", err)
	}
	target, err := a.provider.AuthorizeURL(ctx, state)
	if err != nil {
		return "", a.providerFailure("authorize url", err)
	}
	session.SetOAuthState(state)
	return target, nil
}

// HandleCallback validates the callback parameters. When either the session
// or the request carries a state both must be present and identical.
func (a *Adapter) HandleCallback(session StateStore, code, state string) error {
	stored, hasStored := session.OAuthState()
	if hasStored || state != "" {
		if !hasStored || subtle.ConstantTimeCompare([]byte(stored), []byte(state)) != 1 {
			log.Warn().Str("tenant_id", a.TenantID).Str("ext_type", a.ExtType).Msg("federation callback state mismatch")
			return errors.New(errors.ErrStateMismatch, "invalid oauth2 state")
		}
	}
	if strings.TrimSpace(code) == "" {
		return errors.New(errors.ErrMissingCode, "missing authorization code from identity provider")
	}
	session.ClearOAuthState()
	a.authorizationCode = code
	return nil
}

// ExchangeCodeForToken redeems the callback code. Failures are not retried.
func (a *Adapter) ExchangeCodeForToken(ctx context.Context) error {
	if a.authorizationCode == "" {
		return errors.New(errors.ErrMissingCode, "missing authorization code from identity provider")
	}
	tok, err := a.provider.ExchangeCodeForToken(ctx, a.authorizationCode)
	if err != nil {
		return a.providerFailure("token exchange", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return a.providerFailure("token exchange", fmt.Errorf("no access_token in response"))
	}
	a.accessToken = tok
	return nil
}

// ResolveIdentity returns the local username for the provider account.
func (a *Adapter) ResolveIdentity(ctx context.Context) (string, error) {
	if a.accessToken == nil {
		return "", a.providerFailure("resolve identity", fmt.Errorf("no access token"))
	}
	username, err := a.provider.ResolveIdentity(ctx, a.accessToken)
	if err != nil {
		return "", a.providerFailure("resolve identity", err)
	}
	if username == "" {
		return "", a.providerFailure("resolve identity", fmt.Errorf("empty identity"))
	}
	a.username = username
	log.Info().Str("tenant_id", a.TenantID).Str("ext_type", a.ExtType).Str("username", username).Msg("federated identity resolved")
	return username, nil
}

// Complete runs the callback, exchange and identity steps in order.
func (a *Adapter) Complete(ctx context.Context, session StateStore, code, state string) (string, error) {
	if err := a.HandleCallback(session, code, state); err != nil {
		return "", err
	}
	if err := a.ExchangeCodeForToken(ctx); err != nil {
		return "", err
	}
	return a.ResolveIdentity(ctx)
}

func (a *Adapter) providerFailure(step string, err error) error {
	log.Error().Err(err).Str("tenant_id", a.TenantID).Str("ext_type", a.ExtType).Str("step", step).Msg("identity provider call failed")
	return errors.WithCause(errors.ErrProvider, providerFailureMessage, err)
}

func generateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
