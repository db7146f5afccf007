package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/sessions"
	"github.com/jrsteele09/go-authenticator/tenants"
)

// sessionCookieName carries the opaque session id for the browser flow.
const sessionCookieName = "authenticator_session"

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

// tenantFromHost resolves the tenant whose base url serves the request host,
// falling back to the configured default tenant.
func (s *Server) tenantFromHost(r *http.Request) (*tenants.Tenant, error) {
	t, err := s.tenants.LookupByHost(r.Context(), r.Host)
	if err == nil {
		return t, nil
	}
	if defaultTenant := s.config.GetDefaultTenantID(); defaultTenant != "" {
		return s.tenants.Get(r.Context(), defaultTenant)
	}
	return nil, err
}

func (s *Server) loadSession(r *http.Request) (*sessions.Session, error) {
	var id string
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		id = cookie.Value
	}
	sess, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		return nil, errors.WithCause(errors.ErrServiceUnavailable, "session storage is unavailable", err)
	}
	return sess, nil
}

// saveSession persists the session and sets its cookie. It must run before
// anything is written to w.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	if err := sess.Save(r.Context()); err != nil {
		return errors.WithCause(errors.ErrServiceUnavailable, "session storage is unavailable", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessions.TTL().Seconds()),
	})
	return nil
}
