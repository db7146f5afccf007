package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/jrsteele09/go-authenticator/internal/errors"
)

// ListProfiles pages through the directory users of the acting tenant. The
// next offset is returned in X-Tapis-Offset. A missing or malformed limit
// means no limit and a malformed offset starts at zero.
func (s *Server) ListProfiles() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		tenantID := actingTenant(r, identity)
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil {
			limit = 0
		}
		offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
		if err != nil || offset < 0 {
			offset = 0
		}

		users, next, err := s.directory.ListUsers(r.Context(), tenantID, limit, offset)
		if err != nil {
			s.writeError(w, r, directoryError(err))
			return
		}
		if users == nil {
			users = []*directory.User{}
		}
		w.Header().Set(headerTapisOffset, strconv.Itoa(next))
		s.writeOK(w, http.StatusOK, "Profiles retrieved successfully.", users)
	}
}

func (s *Server) GetProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		user, err := s.directory.GetUser(r.Context(), actingTenant(r, identity), chi.URLParam(r, "username"))
		if err != nil {
			s.writeError(w, r, directoryError(err))
			return
		}
		s.writeOK(w, http.StatusOK, "User profile retrieved successfully.", user)
	}
}

// UserInfo returns the profile of the caller.
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		user, err := s.directory.GetUser(r.Context(), identity.TenantID, identity.Username)
		if err != nil {
			s.writeError(w, r, directoryError(err))
			return
		}
		s.writeOK(w, http.StatusOK, "User profile retrieved successfully.", user)
	}
}

// directoryError tags directory failures with the kind the API reports.
func directoryError(err error) error {
	switch {
	case errors.Is(err, directory.ErrUserNotFound):
		return errors.WithCause(errors.ErrNotFound, "user not found", err)
	case errors.Is(err, directory.ErrUnavailable):
		return errors.WithCause(errors.ErrServiceUnavailable, "the user directory is unavailable", err)
	default:
		return err
	}
}
