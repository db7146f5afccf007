package server

import (
	"net/http"

	"github.com/jrsteele09/go-authenticator/auth"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/internal/metrics"
	"github.com/jrsteele09/go-authenticator/sessions"
)

// LoginPage shows the login step for the session's tenant (GET /login)
func (s *Server) LoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		out, err := s.engine.LoginPage(r.Context(), sess)
		s.respond(w, r, sess, out, err)
	}
}

// LoginSubmission checks the posted username and password (POST /login)
func (s *Server) LoginSubmission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")

		out, err := s.engine.Login(r.Context(), sess, username, password)
		switch {
		case err != nil:
			s.metrics.Login(tenantOf(sess), metrics.ResultError)
		case out.Action == auth.ActionLogin:
			s.metrics.Login(out.TenantID, metrics.ResultRejected)
		case out.Action != auth.ActionSelectTenant:
			s.metrics.Login(out.TenantID, metrics.ResultSuccess)
		}
		s.respond(w, r, sess, out, err)
	}
}

// TenantPage shows tenant selection, pre-filled with the session or host tenant.
func (s *Server) TenantPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		tenantID, ok := sess.Tenant()
		if !ok {
			if t, err := s.tenantFromHost(r); err == nil {
				tenantID = t.ID
			}
		}
		s.renderPage(w, http.StatusOK, pageTenant, PageData{Title: "Select tenant", TenantID: tenantID, Tenants: s.tenantIDs(r.Context())})
	}
}

// TenantSubmission binds the chosen tenant and resumes the flow. An unknown
// tenant redisplays the form.
func (s *Server) TenantSubmission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		tenantID := r.PostFormValue("tenant")
		out, err := s.engine.SetTenant(r.Context(), sess, tenantID)
		if errors.Is(err, errors.ErrValidation) {
			s.renderPage(w, http.StatusBadRequest, pageTenant, PageData{
				Title:    "Select tenant",
				TenantID: tenantID,
				Tenants:  s.tenantIDs(r.Context()),
				Message:  errors.Message(err, "invalid tenant"),
			})
			return
		}
		s.respond(w, r, sess, out, err)
	}
}

// LogoutPage asks the user to confirm logging out.
func (s *Server) LogoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		username, _ := sess.Username()
		s.renderPage(w, http.StatusOK, pageLogout, PageData{Title: "Log out", TenantID: tenantOf(sess), Username: username})
	}
}

func (s *Server) LogoutSubmission() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.respond(w, r, sess, s.engine.Logout(r.Context(), sess), nil)
	}
}

func tenantOf(sess *sessions.Session) string {
	tenantID, _ := sess.Tenant()
	return tenantID
}
