package server

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/rs/zerolog/log"
)

const (
	webappClientOwner       = "authenticator"
	webappClientDisplayName = "Token Webapp"
)

// InitialiseSystem registers the token webapp client in every tenant that
// enables it.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	list, err := s.tenants.List(ctx)
	if err != nil {
		return fmt.Errorf("[Server.InitialiseSystem] %w", err)
	}
	for _, tenant := range list {
		if !tenant.UseTokenWebapp {
			continue
		}
		if err := s.ensureWebappClient(ctx, tenant); err != nil {
			return fmt.Errorf("[Server.InitialiseSystem] tenant %s: %w", tenant.ID, err)
		}
	}
	return nil
}

// ensureWebappClient creates the webapp client for the tenant when it does
// not exist yet. The key comes from configuration or is generated.
func (s *Server) ensureWebappClient(ctx context.Context, tenant *tenants.Tenant) error {
	clientID := s.config.GetWebappClientID()
	existing, err := s.clients.Get(ctx, tenant.ID, clientID)
	if err == nil {
		if existing.CallbackURL != webappCallbackURL(tenant) {
			log.Warn().Str("tenant_id", tenant.ID).Str("client_id", clientID).Str("callback_url", existing.CallbackURL).
				Msg("webapp client callback does not match the tenant base url")
		}
		return nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return err
	}

	_, err = s.clients.Create(ctx, tenant.ID, webappClientOwner, clients.Registration{
		ClientID:    clientID,
		ClientKey:   s.config.GetWebappClientKey(),
		CallbackURL: webappCallbackURL(tenant),
		DisplayName: webappClientDisplayName,
		Description: "Issues access tokens to users of " + tenant.ID + " through the browser.",
	})
	if err != nil {
		return err
	}
	log.Info().Str("tenant_id", tenant.ID).Str("client_id", clientID).Msg("webapp client registered")
	return nil
}
