package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/jrsteele09/go-authenticator/tenants"
)

const webappStateLength = 24

// Webapp starts the authorization code flow on behalf of the first-party
// token webapp of the host tenant.
func (s *Server) Webapp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.webappTenant(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		if current, ok := sess.Tenant(); !ok || current != tenant.ID {
			sess.SetUsername("")
			sess.SetTenant(tenant.ID)
		}
		state, err := generateRandomString(webappStateLength)
		if err != nil {
			s.renderError(w, r, fmt.Errorf("[Server.Webapp] generate state: %w", err))
			return
		}
		sess.SetWebappState(state)
		if err := s.saveSession(w, r, sess); err != nil {
			s.renderError(w, r, err)
			return
		}

		q := url.Values{
			"client_id":     {s.config.GetWebappClientID()},
			"redirect_uri":  {webappCallbackURL(tenant)},
			"response_type": {string(oauthmodel.CodeResponseType)},
			"state":         {state},
		}
		http.Redirect(w, r, RouteAuthorize+"?"+q.Encode(), http.StatusFound)
	}
}

// WebappCallback receives the code issued to the token webapp, exchanges it
// and shows the resulting access token.
func (s *Server) WebappCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.webappTenant(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		q := r.URL.Query()
		expected, _ := sess.WebappState()
		sess.SetWebappState("")
		if err := s.saveSession(w, r, sess); err != nil {
			s.renderError(w, r, err)
			return
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(q.Get("state"))) != 1 {
			s.renderError(w, r, errors.New(errors.ErrStateMismatch, "the webapp state does not match this session"))
			return
		}
		if q.Get("error") == "access_denied" {
			s.renderPage(w, http.StatusOK, pageMessage, PageData{Title: "Access denied", TenantID: tenant.ID, Message: "The authorization request was denied."})
			return
		}
		code := q.Get("code")
		if code == "" {
			s.renderError(w, r, errors.New(errors.ErrMissingCode, "no authorization code in the callback"))
			return
		}

		client, err := s.clients.Get(r.Context(), tenant.ID, s.config.GetWebappClientID())
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		resp, err := s.engine.Token(r.Context(), oauthmodel.TokenRequest{
			TenantID:    tenant.ID,
			ClientID:    client.ClientID,
			ClientKey:   client.ClientKey,
			GrantType:   oauthmodel.AuthorizationCodeGrant,
			Code:        code,
			RedirectURI: webappCallbackURL(tenant),
		})
		if err != nil {
			s.renderError(w, r, err)
			return
		}

		username, _ := sess.Username()
		data := PageData{Title: "Access token", TenantID: tenant.ID, Username: username}
		if token, ok := resp["access_token"].(map[string]any); ok {
			data.AccessToken = stringValue(token["access_token"])
			data.ExpiresAt = stringValue(token["expires_at"])
			data.ExpiresIn = stringValue(token["expires_in"])
		}
		s.renderPage(w, http.StatusOK, pageToken, data)
	}
}

func (s *Server) webappTenant(r *http.Request) (*tenants.Tenant, error) {
	tenant, err := s.tenantFromHost(r)
	if err != nil {
		return nil, err
	}
	if !tenant.UseTokenWebapp {
		return nil, errors.New(errors.ErrNotFound, "the token webapp is not enabled for this tenant")
	}
	return tenant, nil
}

func webappCallbackURL(t *tenants.Tenant) string {
	return strings.TrimRight(t.BaseURL, "/") + RouteWebappCallback
}

func stringValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
