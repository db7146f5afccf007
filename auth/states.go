package auth

import (
	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
)

// State is a position in the authorization code flow.
type State string

const (
	StateStart              State = "START"
	StateClientValidated    State = "CLIENT_VALIDATED"
	StateTenantSelected     State = "TENANT_SELECTED"
	StateAuthenticated      State = "AUTHENTICATED"
	StateConsentPending     State = "CONSENT_PENDING"
	StateCodeIssued         State = "CODE_ISSUED"
	StateRedirectedToClient State = "REDIRECTED_TO_CLIENT"
	StateDenied             State = "DENIED"
)

// Action tells the HTTP layer what to show the user agent next.
type Action string

const (
	ActionSelectTenant Action = "select_tenant"
	ActionLogin        Action = "login"
	ActionConsent      Action = "consent"
	ActionRedirect     Action = "redirect"
	ActionLoggedIn     Action = "logged_in"
	ActionLoggedOut    Action = "logged_out"
)

// Outcome is the result of one flow step.
type Outcome struct {
	State  State
	Action Action

	// RedirectURL is set for ActionRedirect, either the client callback or
	// an identity provider.
	RedirectURL string

	// Client and Params describe the request awaiting consent. ConsentNonce
	// must come back with the answer to that page.
	Client       *clients.Client
	Params       *oauthmodel.AuthorizationParameters
	ConsentNonce string

	// TenantID and Username are what the session is bound to after the step.
	TenantID string
	Username string

	// Message is user facing feedback for a redisplayed page.
	Message string
}

// ConsentDecision is the submitted answer on the consent page.
type ConsentDecision string

const (
	ConsentApprove ConsentDecision = "approve"
	ConsentDeny    ConsentDecision = "deny"
)

// ConsentAnswer is the consent form as posted. ClientID and Nonce identify
// the page the user answered.
type ConsentAnswer struct {
	Decision ConsentDecision
	ClientID string
	Nonce    string
}

const (
	consentRequiredMessage = "You must approve the request to continue."
	consentChangedMessage  = "The authorization request changed. Review it before approving."
	loggedOutMessage       = "You have been logged out."
)
