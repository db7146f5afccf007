package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyIdentity stores the verified *token.Identity
const ContextKeyIdentity ContextKey = "identity"

const (
	headerTapisToken  = "X-Tapis-Token"
	headerTapisTenant = "X-Tapis-Tenant"
	headerTapisOffset = "X-Tapis-Offset"
)

var errMissingIdentity = errors.New(errors.ErrInvalidCredentials, "no access token found in the request; set the X-Tapis-Token header")

// RequireIdentity verifies the caller's JWT from X-Tapis-Token or a Bearer
// Authorization header and stores the identity in the request context.
func (s *Server) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			s.writeError(w, r, errMissingIdentity)
			return
		}
		identity, err := s.verifier.Verify(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get(headerTapisToken)); raw != "" {
		return raw
	}
	scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(raw)
}

func identityFrom(ctx context.Context) *token.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*token.Identity)
	return identity
}

// actingTenant is the tenant an API request applies to. Service accounts may
// name another tenant with X-Tapis-Tenant.
func actingTenant(r *http.Request, identity *token.Identity) string {
	if identity.IsService() {
		if tenantID := strings.TrimSpace(r.Header.Get(headerTapisTenant)); tenantID != "" {
			return tenantID
		}
	}
	return identity.TenantID
}

// clientCredentials reads the client id and key from HTTP basic auth.
func clientCredentials(r *http.Request) (string, string, error) {
	clientID, clientKey, ok := r.BasicAuth()
	if !ok || clientID == "" || clientKey == "" {
		return "", "", errors.New(errors.ErrInvalidClient, "client credentials are required in the Authorization header")
	}
	return clientID, clientKey, nil
}
