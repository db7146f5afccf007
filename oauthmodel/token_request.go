package oauthmodel

// TokenRequest holds parameters for the OAuth2 token request.
// This represents the form body sent to the /v3/oauth2/tokens endpoint plus
// the client credentials from the basic authorization header.
// Supports grant types: password, authorization_code
type TokenRequest struct {
	TenantID string

	// ClientID identifies the OAuth2 client making the request.
	// Required: Yes (for all grant types), from the basic auth user
	ClientID string

	// ClientKey is the client's secret, from the basic auth password.
	// Security: Never log or expose this value
	ClientKey string

	// GrantType selects the grant specific checks.
	// Required: Yes
	GrantType GrantType

	// Username and Password are the resource owner credentials.
	// Required: Yes (only for password grant)
	Username string
	Password string

	// Code is the authorization code received from the authorization endpoint.
	// Required: Yes (only for authorization_code grant)
	// Usage: Exchanged once for a token, then becomes invalid
	Code string

	// RedirectURI must equal the client's registered callback url.
	// Required: Yes (only for authorization_code grant)
	RedirectURI string
}

// TokenResponse is the payload minted by the token issuance bridge. It is
// returned to the caller verbatim.
type TokenResponse map[string]any
