package server

import (
	"net/http"
	"time"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/internal/metrics"
)

// ProviderCallback completes a federated login when the identity provider
// redirects back with a code and state.
func (s *Server) ProviderCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.loadSession(r)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		tenantID := tenantOf(sess)
		q := r.URL.Query()
		if providerErr := q.Get("error"); providerErr != "" {
			s.metrics.FederatedLogin(tenantID, metrics.ResultRejected, 0)
			description := q.Get("error_description")
			if description == "" {
				description = providerErr
			}
			s.renderError(w, r, errors.Newf(errors.ErrProvider, "identity provider returned an error: %s", description))
			return
		}

		start := time.Now()
		out, err := s.engine.CompleteFederatedLogin(r.Context(), sess, q.Get("code"), q.Get("state"))
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
			if status, _, _ := classify(err); status < http.StatusInternalServerError {
				result = metrics.ResultRejected
			}
		}
		s.metrics.FederatedLogin(tenantID, result, time.Since(start))
		s.respond(w, r, sess, out, err)
	}
}
