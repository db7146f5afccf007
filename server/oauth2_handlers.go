package server

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/jrsteele09/go-authenticator/auth"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/internal/metrics"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/jrsteele09/go-authenticator/sessions"
	"github.com/rs/zerolog/log"
)

var supportedGrantTypes = []string{string(oauthmodel.AuthorizationCodeGrant), string(oauthmodel.PasswordGrant)}

// WellKnownMetadata serves the OAuth2 authorization server metadata for the
// tenant addressed by the request host.
func (s *Server) WellKnownMetadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.tenantFromHost(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		base := strings.TrimRight(tenant.BaseURL, "/")
		grantTypes := supportedGrantTypes
		if len(tenant.AllowableGrantTypes) > 0 {
			grantTypes = tenant.AllowableGrantTypes
		}

		metadata := map[string]any{
			"issuer":                                base,
			"authorization_endpoint":                base + RouteAuthorize,
			"token_endpoint":                        base + RouteTokens,
			"userinfo_endpoint":                     base + RouteUserInfo,
			"registration_endpoint":                 base + RouteClients,
			"response_types_supported":              []string{string(oauthmodel.CodeResponseType)},
			"grant_types_supported":                 grantTypes,
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic"},
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		s.writeOK(w, http.StatusOK, "OAuth metadata retrieved successfully.", metadata)
	}
}

// Authorize begins or resumes the authorization flow
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		params := parseAuthorizationParameters(r)
		if tenant, err := s.tenantFromHost(r); err == nil {
			params.TenantID = tenant.ID
		}
		out, err := s.engine.Authorize(r.Context(), sess, params)
		s.respond(w, r, sess, out, err)
	}
}

// Consent handles the approve or deny answer posted from the consent page.
func (s *Server) Consent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		out, err := s.engine.Consent(r.Context(), sess, auth.ConsentAnswer{
			Decision: auth.ConsentDecision(r.PostFormValue("decision")),
			ClientID: r.PostFormValue("client_id"),
			Nonce:    r.PostFormValue("consent_nonce"),
		})
		if err == nil && out.State == auth.StateRedirectedToClient {
			s.metrics.CodeIssued(out.TenantID)
		}
		s.respond(w, r, sess, out, err)
	}
}

// Tokens exchanges a code or user credentials for an access token.
func (s *Server) Tokens() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseTokenRequest(r)
		if err != nil {
			s.writeTokenError(w, r, "", string(req.GrantType), err)
			return
		}
		tenant, err := s.tenantFromHost(r)
		if err != nil {
			s.writeTokenError(w, r, "", string(req.GrantType), err)
			return
		}
		req.TenantID = tenant.ID

		resp, err := s.engine.Token(r.Context(), req)
		if err != nil {
			s.writeTokenError(w, r, tenant.ID, string(req.GrantType), err)
			return
		}
		s.metrics.TokenRequest(tenant.ID, grantLabel(string(req.GrantType)), metrics.ResultSuccess)
		s.writeOK(w, http.StatusOK, "Token created successfully.", resp)
	}
}

func (s *Server) writeTokenError(w http.ResponseWriter, r *http.Request, tenantID, grantType string, err error) {
	result := metrics.ResultRejected
	if status, _, _ := classify(err); status >= http.StatusInternalServerError {
		result = metrics.ResultError
	}
	s.metrics.TokenRequest(tenantID, grantLabel(grantType), result)
	if errors.Is(err, errors.ErrInvalidClient) {
		w.Header().Set("WWW-Authenticate", `Basic realm="authenticator"`)
	}
	s.writeError(w, r, err)
}

// grantLabel bounds the grant_type metric label to the supported values.
func grantLabel(grantType string) string {
	if slices.Contains(supportedGrantTypes, grantType) {
		return grantType
	}
	return "other"
}

// tokenBody is the token request as a form or a JSON document.
type tokenBody struct {
	GrantType   string `json:"grant_type"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// parseTokenRequest reads the client credentials from basic auth and the
// grant from the body. The grant type is returned even on error so the
// failure can be attributed.
func parseTokenRequest(r *http.Request) (oauthmodel.TokenRequest, error) {
	var body tokenBody
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(&body); err != nil {
			return oauthmodel.TokenRequest{}, errors.WithCause(errors.ErrValidation, "request body is not valid JSON", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return oauthmodel.TokenRequest{}, errors.WithCause(errors.ErrValidation, "request body is not a valid form", err)
		}
		body = tokenBody{
			GrantType:   r.PostForm.Get("grant_type"),
			Username:    r.PostForm.Get("username"),
			Password:    r.PostForm.Get("password"),
			Code:        r.PostForm.Get("code"),
			RedirectURI: r.PostForm.Get("redirect_uri"),
		}
	}

	req := oauthmodel.TokenRequest{
		GrantType:   oauthmodel.GrantType(strings.TrimSpace(body.GrantType)),
		Username:    body.Username,
		Password:    body.Password,
		Code:        body.Code,
		RedirectURI: body.RedirectURI,
	}
	clientID, clientKey, err := clientCredentials(r)
	if err != nil {
		return req, err
	}
	req.ClientID, req.ClientKey = clientID, clientKey
	if req.GrantType == "" {
		return req, errors.New(errors.ErrValidation, "grant_type is required")
	}
	return req, nil
}

// parseAuthorizationParameters extracts the OAuth2 authorization parameters from the query string
func parseAuthorizationParameters(r *http.Request) *oauthmodel.AuthorizationParameters {
	q := r.URL.Query()
	return &oauthmodel.AuthorizationParameters{
		ClientID:     q.Get("client_id"),
		RedirectURI:  q.Get("redirect_uri"),
		ResponseType: oauthmodel.ResponseType(q.Get("response_type")),
		State:        q.Get("state"),
		Scope:        q.Get("scope"),
	}
}

// respond saves the session and renders the next step of the flow.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *sessions.Session, out *auth.Outcome, err error) {
	if saveErr := s.saveSession(w, r, sess); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	switch out.Action {
	case auth.ActionSelectTenant:
		tenantID := out.TenantID
		if tenantID == "" && out.Params != nil {
			tenantID = out.Params.TenantID
		}
		s.renderPage(w, http.StatusOK, pageTenant, PageData{Title: "Select tenant", TenantID: tenantID, Tenants: s.tenantIDs(r.Context()), Message: out.Message})
	case auth.ActionLogin:
		s.renderPage(w, http.StatusOK, pageLogin, PageData{Title: "Log in", TenantID: out.TenantID, Message: out.Message})
	case auth.ActionConsent:
		data := PageData{Title: "Authorize", TenantID: out.TenantID, Username: out.Username, Message: out.Message, ConsentNonce: out.ConsentNonce}
		if out.Client != nil {
			data.ClientID = out.Client.ClientID
			data.ClientName = out.Client.DisplayName
			data.ClientDescription = out.Client.Description
		}
		if out.Params != nil {
			data.Scope = out.Params.Scope
		}
		s.renderPage(w, http.StatusOK, pageConsent, data)
	case auth.ActionRedirect:
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
	case auth.ActionLoggedIn:
		s.renderPage(w, http.StatusOK, pageMessage, PageData{
			Title:    "Logged in",
			TenantID: out.TenantID,
			Username: out.Username,
			Message:  fmt.Sprintf("You are logged in as %s.", out.Username),
		})
	case auth.ActionLoggedOut:
		s.renderPage(w, http.StatusOK, pageMessage, PageData{Title: "Logged out", Message: out.Message})
	default:
		s.renderError(w, r, fmt.Errorf("[Server.respond] unknown action %q", out.Action))
	}
}

// tenantIDs lists the tenants offered on the tenant page.
func (s *Server) tenantIDs(ctx context.Context) []string {
	list, err := s.tenants.List(ctx)
	if err != nil {
		log.Err(err).Msg("failed to list tenants")
		return nil
	}
	ids := make([]string, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ID)
	}
	return ids
}

// Health reports liveness.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.writeOK(w, http.StatusOK, "Service is healthy.", map[string]string{"version": s.version})
	}
}

func (s *Server) NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errors.Newf(errors.ErrNotFound, "no route for %s %s", r.Method, r.URL.Path))
	}
}

func (s *Server) MethodNotAllowed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logFailure(r, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		s.writeJSON(w, http.StatusMethodNotAllowed, envelope{
			Status:  statusError,
			Message: fmt.Sprintf("method %s is not allowed on %s", r.Method, r.URL.Path),
			Result:  errorResult{Error: "method_not_allowed"},
		})
	}
}
