package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-authenticator/clients"
)

// ListClients returns the clients owned by the caller in the caller's tenant.
func (s *Server) ListClients() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		list, err := s.clients.List(r.Context(), identity.TenantID, identity.Username)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if list == nil {
			list = []*clients.Client{}
		}
		s.writeOK(w, http.StatusOK, "Clients retrieved successfully.", list)
	}
}

// CreateClient registers a new client owned by the caller. The response
// carries the client key, which is not shown again in listings by others.
func (s *Server) CreateClient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		var reg clients.Registration
		if err := decodeJSON(r, &reg); err != nil {
			s.writeError(w, r, err)
			return
		}
		client, err := s.clients.Create(r.Context(), identity.TenantID, identity.Username, reg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeOK(w, http.StatusCreated, "Client created successfully.", client)
	}
}

func (s *Server) GetClient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		client, err := s.clients.GetOwned(r.Context(), identity.TenantID, chi.URLParam(r, "client_id"), identity.Username)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeOK(w, http.StatusOK, "Client object retrieved successfully.", client)
	}
}

func (s *Server) DeleteClient() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := identityFrom(r.Context())
		if err := s.clients.Delete(r.Context(), identity.TenantID, chi.URLParam(r, "client_id"), identity.Username); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeOK(w, http.StatusOK, "Client deleted successfully.", nil)
	}
}
