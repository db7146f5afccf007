package oauthmodel

import (
	"strings"

	"github.com/jrsteele09/go-authenticator/internal/errors"
)

// ResponseType represents the OAuth 2.0 response type.
// Determines what is returned from the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow, the only flow
	// served by the authorize endpoint.
	// Example: /v3/oauth2/authorize?response_type=code&client_id=...
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for a token.
	// Token request includes: code, redirect_uri and basic-auth client credentials
	AuthorizationCodeGrant GrantType = "authorization_code"

	// PasswordGrant authenticates the resource owner directly.
	// Token request includes: username, password and basic-auth client credentials
	PasswordGrant GrantType = "password"
)

// AuthorizationParameters holds parameters for the OAuth2 authorization request.
// These are received as query parameters at the /v3/oauth2/authorize endpoint
// and kept in the session while the agent selects a tenant and logs in.
type AuthorizationParameters struct {
	// TenantID is the tenant the request was addressed to, from the host or
	// the session. It is empty until a tenant has been selected.
	TenantID string `json:"tenant_id,omitempty"`

	// ClientID identifies the application requesting authorization.
	// Required: Yes
	// Validated against: clients.Client.ClientID in the tenant
	ClientID string `json:"client_id"`

	// RedirectURI is where the authorization response will be sent.
	// Required: Yes
	// Security: Must exactly match clients.Client.CallbackURL. No prefix or
	// partial matching, this is what prevents open redirects.
	RedirectURI string `json:"redirect_uri"`

	// ResponseType specifies what the authorization endpoint should return.
	// Required: Yes, and must be "code"
	ResponseType ResponseType `json:"response_type"`

	// State is an opaque value used by the client to maintain state between
	// request and callback. Never validated or interpreted by the server,
	// only echoed back verbatim in the redirect.
	State string `json:"state,omitempty"`

	// Scope is shown on the consent page. Not enforced.
	Scope string `json:"scope,omitempty"`
}

// Validate checks the parameters that must be present before any client
// lookup happens.
func (p *AuthorizationParameters) Validate() error {
	var missing []string
	if strings.TrimSpace(p.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(p.RedirectURI) == "" {
		missing = append(missing, "redirect_uri")
	}
	if strings.TrimSpace(string(p.ResponseType)) == "" {
		missing = append(missing, "response_type")
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ErrValidation, "missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	if p.ResponseType != CodeResponseType {
		return errors.Wrapf(ErrInvalidResponseType, "response_type %q", p.ResponseType)
	}
	return nil
}
