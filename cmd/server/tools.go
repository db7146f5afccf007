package main

import (
	"fmt"
	"net/http"
	"time"

	authcodespg "github.com/jrsteele09/go-authenticator/authcodes/pgrepo"
	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/federation/providers"
	"github.com/jrsteele09/go-authenticator/internal/config"
	"github.com/jrsteele09/go-authenticator/internal/postgres"
	"github.com/jrsteele09/go-authenticator/tenants/filerepo"
	"github.com/jrsteele09/go-authenticator/token/keys"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newCheckTenantsCommand validates the tenants file and every tenant's
// identity provider configuration without contacting any provider.
func newCheckTenantsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-tenants",
		Short: "Validate the tenants file and identity provider configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := config.New()
			repo, err := filerepo.Load(c.GetTenantsFile())
			if err != nil {
				return err
			}
			list, err := repo.List(cmd.Context())
			if err != nil {
				return err
			}
			registry := providers.Default(http.DefaultClient)
			failed := 0
			for _, t := range list {
				extType, err := t.ExtensionType()
				if err == nil && extType != "" {
					_, err = registry.Build(extType, t.CustomIdpConfiguration, federation.CallbackURL(t.BaseURL, c.GetLocalDevelopment()))
				}
				if err != nil {
					failed++
					log.Error().Err(err).Str("tenant_id", t.ID).Msg("invalid tenant")
					continue
				}
				if extType == "" {
					extType = "directory"
				}
				log.Info().Str("tenant_id", t.ID).Str("base_url", t.BaseURL).Str("login", extType).Msg("tenant ok")
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tenants are invalid", failed, len(list))
			}
			return nil
		},
	}
}

// newPurgeCodesCommand deletes expired and consumed codes from Postgres.
// Redis and memory codes expire on their own.
func newPurgeCodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-codes",
		Short: "Delete expired and consumed authorization codes from Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := config.New()
			pool, err := postgres.Connect(cmd.Context(), c.GetPostgresDSN())
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := authcodespg.New(pool).DeleteExpired(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			log.Info().Int64("deleted", n).Msg("authorization codes purged")
			return nil
		},
	}
}

func newGenKeyCommand() *cobra.Command {
	var keyID string
	var bits int
	cmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Print a new PEM encoded RSA key for TOKEN_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keyPair, err := keys.GenerateRSAKeyPair(keyID, bits)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), keyPair.ExportPrivateKeyPEM())
			return err
		},
	}
	cmd.Flags().StringVar(&keyID, "kid", localIssuerKeyID, "key id")
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size")
	return cmd
}
