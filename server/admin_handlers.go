package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/oauthmodel"
	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/rs/zerolog/log"
)

// tenantConfigUpdate is a partial update of the tenant configuration. Nil
// fields are left unchanged.
type tenantConfigUpdate struct {
	CustomIdpConfiguration *json.RawMessage `json:"custom_idp_configuration"`
	AllowableGrantTypes    *[]string        `json:"allowable_grant_types"`
	UseTokenWebapp         *bool            `json:"use_token_webapp"`
	DefaultAccessTokenTTL  *int             `json:"default_access_token_ttl"`
	MaxAccessTokenTTL      *int             `json:"max_access_token_ttl"`
}

// adminTenant loads the acting tenant and checks the caller may administer it.
func (s *Server) adminTenant(r *http.Request) (*tenants.Tenant, error) {
	identity := identityFrom(r.Context())
	tenant, err := s.tenants.Get(r.Context(), actingTenant(r, identity))
	if err != nil {
		return nil, err
	}
	if !identity.IsService() && !tenant.IsAdmin(identity.Username) {
		return nil, errors.New(errors.ErrPermissionDenied, "not authorized to administer this tenant")
	}
	return tenant, nil
}

func (s *Server) GetTenantConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.adminTenant(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeOK(w, http.StatusOK, "Tenant config object retrieved successfully.", tenant)
	}
}

// UpdateTenantConfig applies a partial update. A custom idp configuration is
// resolved against the provider registry before anything is stored.
func (s *Server) UpdateTenantConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.adminTenant(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var update tenantConfigUpdate
		if err := decodeJSON(r, &update); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := update.apply(tenant); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := tenant.Validate(); err != nil {
			s.writeError(w, r, errors.WithCause(errors.ErrValidation, "invalid tenant configuration", err))
			return
		}
		if err := s.checkProvider(tenant); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.tenants.Update(r.Context(), tenant); err != nil {
			s.writeError(w, r, err)
			return
		}
		if tenant.UseTokenWebapp {
			if err := s.ensureWebappClient(r.Context(), tenant); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		log.Info().Str("tenant_id", tenant.ID).Str("username", identityFrom(r.Context()).Username).Msg("tenant config updated")
		s.writeOK(w, http.StatusOK, "Tenant config updated successfully.", tenant)
	}
}

func (u tenantConfigUpdate) apply(t *tenants.Tenant) error {
	if u.CustomIdpConfiguration != nil {
		raw, err := idpDocument(*u.CustomIdpConfiguration)
		if err != nil {
			return err
		}
		t.CustomIdpConfiguration = raw
	}
	if u.AllowableGrantTypes != nil {
		grantTypes := make([]string, 0, len(*u.AllowableGrantTypes))
		for _, g := range *u.AllowableGrantTypes {
			g = strings.TrimSpace(g)
			if g != string(oauthmodel.PasswordGrant) && g != string(oauthmodel.AuthorizationCodeGrant) {
				return errors.Newf(errors.ErrValidation, "unsupported grant type %q", g)
			}
			grantTypes = append(grantTypes, g)
		}
		t.AllowableGrantTypes = grantTypes
	}
	if u.UseTokenWebapp != nil {
		t.UseTokenWebapp = *u.UseTokenWebapp
	}
	if u.DefaultAccessTokenTTL != nil {
		t.DefaultAccessTokenTTL = *u.DefaultAccessTokenTTL
	}
	if u.MaxAccessTokenTTL != nil {
		t.MaxAccessTokenTTL = *u.MaxAccessTokenTTL
	}
	return nil
}

// idpDocument accepts the configuration either as a JSON object or as a
// string holding one. null clears it.
func idpDocument(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.WithCause(errors.ErrValidation, "custom_idp_configuration is not valid", err)
		}
		raw = json.RawMessage(strings.TrimSpace(s))
		if len(raw) == 0 {
			return "", nil
		}
	}
	if raw[0] != '{' || !json.Valid(raw) {
		return "", errors.New(errors.ErrValidation, "custom_idp_configuration must be a JSON object")
	}
	return string(raw), nil
}

// checkProvider fails when the tenant names an identity provider the
// registry cannot build.
func (s *Server) checkProvider(t *tenants.Tenant) error {
	extType, err := t.ExtensionType()
	if err != nil {
		return errors.WithCause(errors.ErrValidation, "custom_idp_configuration is not valid", err)
	}
	if extType == "" || s.providers == nil {
		return nil
	}
	callback := federation.CallbackURL(t.BaseURL, s.config.GetLocalDevelopment())
	if _, err := s.providers.Build(extType, t.CustomIdpConfiguration, callback); err != nil {
		return errors.WithCause(errors.ErrValidation, errors.Message(err, "invalid identity provider configuration"), err)
	}
	return nil
}
