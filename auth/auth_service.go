// Package auth implements the authorization code flow and the token
// endpoint. The Engine is transport agnostic: every step takes the user
// agent's session and returns an Outcome telling the caller what to render
// or where to redirect.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-authenticator/authcodes"
	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/jrsteele09/go-authenticator/sessions"
	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/jrsteele09/go-authenticator/token"
	"github.com/rs/zerolog/log"
)

// TenantSource resolves tenant configuration.
type TenantSource interface {
	Get(ctx context.Context, tenantID string) (*tenants.Tenant, error)
}

// Services holds all dependencies of the Engine. Federator is optional.
type Services struct {
	Tenants   TenantSource
	Clients   *clients.Store
	Codes     *authcodes.Store
	Gate      *Gate
	Federator *federation.Federator
	Issuer    token.Issuer
}

// Engine drives the authorization flow.
type Engine struct {
	services Services
}

// NewEngine initializes a new Engine with required dependencies.
func NewEngine(services Services) (*Engine, error) {
	if services.Tenants == nil {
		return nil, fmt.Errorf("[NewEngine] tenant source is required")
	}
	if services.Clients == nil {
		return nil, fmt.Errorf("[NewEngine] client store is required")
	}
	if services.Codes == nil {
		return nil, fmt.Errorf("[NewEngine] authorization code store is required")
	}
	if services.Gate == nil {
		return nil, fmt.Errorf("[NewEngine] authentication gate is required")
	}
	if services.Issuer == nil {
		return nil, fmt.Errorf("[NewEngine] token issuer is required")
	}
	return &Engine{services: services}, nil
}

// CheckClient validates an authorize request against the registered client.
// The redirect uri must equal the client's callback url exactly.
func (e *Engine) CheckClient(ctx context.Context, tenantID string, params *oauthmodel.AuthorizationParameters) (*clients.Client, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, errors.New(errors.ErrValidation, "tenant is required")
	}
	client, err := e.services.Clients.Get(ctx, tenantID, params.ClientID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, oauthmodel.ErrUnknownClient
		}
		return nil, fmt.Errorf("[Engine.CheckClient] %w", err)
	}
	if params.RedirectURI != client.CallbackURL {
		log.Warn().Str("tenant_id", tenantID).Str("client_id", client.ClientID).Msg("redirect_uri does not match callback url")
		return nil, oauthmodel.ErrInvalidRedirectUri
	}
	return client, nil
}

// Authorize starts or resumes an authorization request. Without a tenant in
// the session the agent is sent to tenant selection, without a username to
// login, otherwise to consent.
func (e *Engine) Authorize(ctx context.Context, sess *sessions.Session, params *oauthmodel.AuthorizationParameters) (*Outcome, error) {
	tenantID, hasTenant := sess.Tenant()
	if !hasTenant {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		sess.SetPendingAuthorization(params)
		return &Outcome{State: StateStart, Action: ActionSelectTenant, Params: params, TenantID: params.TenantID}, nil
	}

	client, err := e.CheckClient(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	pending := *params
	pending.TenantID = tenantID
	sess.SetPendingAuthorization(&pending)

	username, authenticated := sess.Username()
	if !authenticated {
		return e.loginOutcome(ctx, sess, tenantID, StateClientValidated)
	}
	return e.consentOutcome(sess, client, &pending, tenantID, username, "")
}

// consentOutcome shows the consent page for params under a fresh nonce.
// The nonce replaces any earlier one, so only the latest page can be answered.
func (e *Engine) consentOutcome(sess *sessions.Session, client *clients.Client, params *oauthmodel.AuthorizationParameters, tenantID, username, message string) (*Outcome, error) {
	nonce, err := authcodes.GenerateCode()
	if err != nil {
		return nil, fmt.Errorf("[Engine.consentOutcome] %w", err)
	}
	sess.SetConsentNonce(nonce)
	return &Outcome{
		State:        StateConsentPending,
		Action:       ActionConsent,
		Client:       client.Public(),
		Params:       params,
		ConsentNonce: nonce,
		TenantID:     tenantID,
		Username:     username,
		Message:      message,
	}, nil
}

// SetTenant binds the tenant chosen on the tenant page to the session. A
// change of tenant drops any identity from the previous tenant.
func (e *Engine) SetTenant(ctx context.Context, sess *sessions.Session, tenantID string) (*Outcome, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, errors.New(errors.ErrValidation, "tenant is required")
	}
	if _, err := e.services.Tenants.Get(ctx, tenantID); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Newf(errors.ErrValidation, "invalid tenant id %q", tenantID)
		}
		return nil, err
	}
	if current, ok := sess.Tenant(); ok && current != tenantID {
		sess.SetUsername("")
	}
	sess.SetTenant(tenantID)
	log.Debug().Str("tenant_id", tenantID).Msg("tenant selected")
	return e.resume(ctx, sess, StateTenantSelected)
}

// LoginPage decides what GET /login shows: tenant selection, the tenant's
// identity provider, the password form, or the pending request when the
// session is already authenticated.
func (e *Engine) LoginPage(ctx context.Context, sess *sessions.Session) (*Outcome, error) {
	tenantID, ok := sess.Tenant()
	if !ok {
		return &Outcome{State: StateStart, Action: ActionSelectTenant}, nil
	}
	if _, authenticated := sess.Username(); authenticated {
		return e.resume(ctx, sess, StateAuthenticated)
	}
	return e.loginOutcome(ctx, sess, tenantID, StateTenantSelected)
}

// Login checks the submitted credentials through the Gate. Rejected
// credentials redisplay the login page with a generic message.
func (e *Engine) Login(ctx context.Context, sess *sessions.Session, username, password string) (*Outcome, error) {
	tenantID, ok := sess.Tenant()
	if !ok {
		return &Outcome{State: StateStart, Action: ActionSelectTenant}, nil
	}
	if err := e.services.Gate.Authenticate(ctx, tenantID, username, password); err != nil {
		if errors.Is(err, errors.ErrInvalidCredentials) {
			return &Outcome{
				State:    StateTenantSelected,
				Action:   ActionLogin,
				TenantID: tenantID,
				Message:  errors.Message(err, InvalidCombinationMessage),
			}, nil
		}
		return nil, err
	}
	sess.SetUsername(username)
	sess.Rotate()
	return e.resume(ctx, sess, StateAuthenticated)
}

// BeginFederatedLogin sends the agent to the tenant's identity provider.
func (e *Engine) BeginFederatedLogin(ctx context.Context, sess *sessions.Session) (*Outcome, error) {
	tenantID, ok := sess.Tenant()
	if !ok {
		return &Outcome{State: StateStart, Action: ActionSelectTenant}, nil
	}
	if e.services.Federator == nil {
		return nil, errors.New(errors.ErrConfiguration, "tenant not configured for federation")
	}
	adapter, err := e.services.Federator.NewAdapter(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	target, err := adapter.BeginLogin(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &Outcome{State: StateTenantSelected, Action: ActionRedirect, RedirectURL: target, TenantID: tenantID}, nil
}

// CompleteFederatedLogin handles the identity provider callback. The
// resolved identity is bound to the session exactly like a directory login.
func (e *Engine) CompleteFederatedLogin(ctx context.Context, sess *sessions.Session, code, state string) (*Outcome, error) {
	tenantID, ok := sess.Tenant()
	if !ok {
		return nil, errors.New(errors.ErrStateMismatch, "no federation attempt in progress for this session")
	}
	if e.services.Federator == nil {
		return nil, errors.New(errors.ErrConfiguration, "tenant not configured for federation")
	}
	adapter, err := e.services.Federator.NewAdapter(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	username, err := adapter.Complete(ctx, sess, code, state)
	if err != nil {
		return nil, err
	}
	sess.SetUsername(username)
	sess.Rotate()
	return e.resume(ctx, sess, StateAuthenticated)
}

// Consent applies the answer on the consent page. The answer must name the
// client and nonce of the pending request, otherwise the page for the request
// actually pending is shown again. An approval issues a code and redirects to
// the client, an explicit denial redirects with access_denied, anything else
// redisplays the consent page.
func (e *Engine) Consent(ctx context.Context, sess *sessions.Session, answer ConsentAnswer) (*Outcome, error) {
	params, ok := sess.PendingAuthorization()
	if !ok {
		return nil, errors.New(errors.ErrValidation, "no authorization request in progress")
	}
	tenantID, hasTenant := sess.Tenant()
	if !hasTenant {
		return &Outcome{State: StateStart, Action: ActionSelectTenant, Params: params}, nil
	}
	client, err := e.CheckClient(ctx, tenantID, params)
	if err != nil {
		return nil, err
	}
	username, authenticated := sess.Username()
	if !authenticated {
		return e.loginOutcome(ctx, sess, tenantID, StateClientValidated)
	}

	nonce, hasNonce := sess.ConsentNonce()
	if !hasNonce || answer.ClientID != client.ClientID || subtle.ConstantTimeCompare([]byte(nonce), []byte(answer.Nonce)) != 1 {
		log.Warn().Str("tenant_id", tenantID).Str("client_id", client.ClientID).Str("answered_client_id", answer.ClientID).Msg("consent answer does not match the pending request")
		return e.consentOutcome(sess, client, params, tenantID, username, consentChangedMessage)
	}

	switch answer.Decision {
	case ConsentApprove:
		code, err := e.services.Codes.Issue(ctx, tenantID, client.ClientID, client.ClientKey, client.CallbackURL, username)
		if err != nil {
			return nil, err
		}
		sess.SetPendingAuthorization(nil)
		target, err := callbackWith(client.CallbackURL, url.Values{"code": {code.Code}}, params.State)
		if err != nil {
			return nil, err
		}
		log.Info().Str("tenant_id", tenantID).Str("client_id", client.ClientID).Str("username", username).Msg("authorization code issued")
		return &Outcome{State: StateRedirectedToClient, Action: ActionRedirect, RedirectURL: target, TenantID: tenantID, Username: username}, nil
	case ConsentDeny:
		sess.SetPendingAuthorization(nil)
		target, err := callbackWith(client.CallbackURL, url.Values{"error": {"access_denied"}}, params.State)
		if err != nil {
			return nil, err
		}
		log.Info().Str("tenant_id", tenantID).Str("client_id", client.ClientID).Str("username", username).Msg("authorization denied")
		return &Outcome{State: StateDenied, Action: ActionRedirect, RedirectURL: target, TenantID: tenantID, Username: username}, nil
	default:
		return &Outcome{
			State:        StateConsentPending,
			Action:       ActionConsent,
			Client:       client.Public(),
			Params:       params,
			ConsentNonce: nonce,
			TenantID:     tenantID,
			Username:     username,
			Message:      consentRequiredMessage,
		}, nil
	}
}

// Logout clears the session and confirms it to the user.
func (e *Engine) Logout(_ context.Context, sess *sessions.Session) *Outcome {
	if username, ok := sess.Username(); ok {
		log.Info().Str("username", username).Msg("logged out")
	}
	sess.Clear()
	return &Outcome{State: StateStart, Action: ActionLoggedOut, Message: loggedOutMessage}
}

// Token handles the token endpoint. The client credentials are checked
// before anything that depends on the grant type.
func (e *Engine) Token(ctx context.Context, req oauthmodel.TokenRequest) (oauthmodel.TokenResponse, error) {
	tenant, err := e.services.Tenants.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	client, err := e.services.Clients.Authenticate(ctx, tenant.ID, req.ClientID, req.ClientKey)
	if err != nil {
		return nil, err
	}
	if !tenant.AllowsGrantType(string(req.GrantType)) {
		return nil, errors.Newf(errors.ErrUnsupportedGrantType, "grant type %q is not allowed for this tenant", req.GrantType)
	}

	var username string
	switch req.GrantType {
	case oauthmodel.PasswordGrant:
		if req.Username == "" || req.Password == "" {
			return nil, errors.New(errors.ErrValidation, "username and password are required for the password grant")
		}
		if err := e.services.Gate.Authenticate(ctx, tenant.ID, req.Username, req.Password); err != nil {
			return nil, err
		}
		username = req.Username
	case oauthmodel.AuthorizationCodeGrant:
		if req.Code == "" || req.RedirectURI == "" {
			return nil, errors.New(errors.ErrValidation, "code and redirect_uri are required for the authorization_code grant")
		}
		if req.RedirectURI != client.CallbackURL {
			return nil, oauthmodel.ErrInvalidRedirectUri
		}
		code, err := e.services.Codes.ValidateAndConsume(ctx, tenant.ID, req.Code, client.ClientID, client.ClientKey)
		if err != nil {
			return nil, err
		}
		username = code.Username
	default:
		return nil, errors.Newf(errors.ErrUnsupportedGrantType, "unsupported grant_type %q", req.GrantType)
	}

	resp, err := e.services.Issuer.Issue(ctx, token.Grant{
		TenantID:       tenant.ID,
		Username:       username,
		AccountType:    token.ServiceAccountType,
		ClientID:       client.ClientID,
		Issuer:         strings.TrimRight(tenant.BaseURL, "/") + "/v3/tokens",
		AccessTokenTTL: tenant.AccessTokenTTL(),
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("tenant_id", tenant.ID).Str("client_id", client.ClientID).Str("grant_type", string(req.GrantType)).Msg("token issued")
	return resp, nil
}

// resume continues a pending authorization after tenant selection or login.
func (e *Engine) resume(ctx context.Context, sess *sessions.Session, state State) (*Outcome, error) {
	if params, ok := sess.PendingAuthorization(); ok {
		return e.Authorize(ctx, sess, params)
	}
	tenantID, _ := sess.Tenant()
	username, authenticated := sess.Username()
	if !authenticated {
		return e.loginOutcome(ctx, sess, tenantID, state)
	}
	return &Outcome{State: state, Action: ActionLoggedIn, TenantID: tenantID, Username: username}, nil
}

// loginOutcome picks the password form or the tenant's identity provider.
func (e *Engine) loginOutcome(ctx context.Context, sess *sessions.Session, tenantID string, state State) (*Outcome, error) {
	if e.services.Federator != nil {
		federated, err := e.services.Federator.Enabled(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if federated {
			return e.BeginFederatedLogin(ctx, sess)
		}
	}
	return &Outcome{State: state, Action: ActionLogin, TenantID: tenantID}, nil
}

// callbackWith appends values and the client state to the callback url,
// keeping any query the client registered.
func callbackWith(callbackURL string, values url.Values, state string) (string, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", errors.WithCause(errors.ErrValidation, "client callback url is invalid", err)
	}
	q := u.Query()
	for k, v := range values {
		q[k] = v
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
