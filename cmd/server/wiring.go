package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-authenticator/auth"
	"github.com/jrsteele09/go-authenticator/authcodes"
	authcodespg "github.com/jrsteele09/go-authenticator/authcodes/pgrepo"
	"github.com/jrsteele09/go-authenticator/authcodes/redisrepo"
	"github.com/jrsteele09/go-authenticator/authcodes/repofakes"
	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/clients/fakerepo"
	clientspg "github.com/jrsteele09/go-authenticator/clients/pgrepo"
	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/jrsteele09/go-authenticator/directory/ldap"
	dirmemory "github.com/jrsteele09/go-authenticator/directory/memory"
	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/federation/providers"
	"github.com/jrsteele09/go-authenticator/internal/config"
	"github.com/jrsteele09/go-authenticator/internal/metrics"
	"github.com/jrsteele09/go-authenticator/internal/postgres"
	"github.com/jrsteele09/go-authenticator/server"
	"github.com/jrsteele09/go-authenticator/sessions"
	sessmemory "github.com/jrsteele09/go-authenticator/sessions/memory"
	"github.com/jrsteele09/go-authenticator/sessions/redisstore"
	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/jrsteele09/go-authenticator/tenants/filerepo"
	"github.com/jrsteele09/go-authenticator/token"
	"github.com/jrsteele09/go-authenticator/token/keys"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	localIssuerKeyID = "authenticator"
	identityKeyID    = "identity"
)

// application owns the long lived connections behind the server.
type application struct {
	server *server.Server
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func (a *application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}

func build(ctx context.Context, c config.Config) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	identitySigner, err := keys.ParseSigner(identityKeyID, c.GetIdentitySigningKey())
	if err != nil {
		return nil, fmt.Errorf("[build] IDENTITY_SIGNING_KEY: %w", err)
	}

	registry, err := loadTenants(ctx, c)
	if err != nil {
		return nil, err
	}

	if needsPostgres(c) {
		app.pool, err = postgres.Connect(ctx, c.GetPostgresDSN())
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, app.pool); err != nil {
			return nil, err
		}
	}
	if needsRedis(c) {
		app.redis, err = connectRedis(ctx, c)
		if err != nil {
			return nil, err
		}
	}

	clientRepo, err := clientRepo(c, app.pool)
	if err != nil {
		return nil, err
	}
	clientStore, err := clients.NewStore(clientRepo)
	if err != nil {
		return nil, err
	}
	codeRepo, err := codeRepo(c, app.pool, app.redis)
	if err != nil {
		return nil, err
	}
	codeStore, err := authcodes.NewStore(codeRepo, authcodes.WithTTL(c.GetAuthCodeTTL()))
	if err != nil {
		return nil, err
	}
	sessionManager, err := sessionManager(c, app.redis)
	if err != nil {
		return nil, err
	}

	dir, err := openDirectory(c)
	if err != nil {
		return nil, err
	}
	gate, err := auth.NewGate(dir, auth.WithDirectoryTimeout(c.GetDirectoryTimeout()))
	if err != nil {
		return nil, err
	}

	outbound := &http.Client{Timeout: c.GetOutboundTimeout()}
	providerRegistry := providers.Default(outbound)
	federator, err := federation.NewFederator(registry, providerRegistry, federation.WithLocalDevelopment(c.GetLocalDevelopment()))
	if err != nil {
		return nil, err
	}
	issuer, err := tokenIssuer(c, outbound, identitySigner)
	if err != nil {
		return nil, err
	}

	engine, err := auth.NewEngine(auth.Services{
		Tenants:   registry,
		Clients:   clientStore,
		Codes:     codeStore,
		Gate:      gate,
		Federator: federator,
		Issuer:    issuer,
	})
	if err != nil {
		return nil, err
	}

	verifier, err := token.NewVerifier(identitySigner)
	if err != nil {
		return nil, err
	}

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	app.server, err = server.New(c, server.Services{
		Engine:    engine,
		Tenants:   registry,
		Clients:   clientStore,
		Directory: dir,
		Sessions:  sessionManager,
		Verifier:  verifier,
		Providers: providerRegistry,
		Metrics:   m,
		Version:   version,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func loadTenants(ctx context.Context, c config.Config) (*tenants.Registry, error) {
	repo, err := filerepo.Load(c.GetTenantsFile())
	if err != nil {
		return nil, err
	}
	registry, err := tenants.NewRegistry(repo, tenants.WithCacheTTL(c.GetTenantCacheTTL()))
	if err != nil {
		return nil, err
	}
	if err := registry.Init(ctx); err != nil {
		return nil, err
	}
	log.Info().Str("file", c.GetTenantsFile()).Dur("cache_ttl", c.GetTenantCacheTTL()).Msg("tenants loaded")
	return registry, nil
}

func needsPostgres(c config.Config) bool {
	return c.GetStorageDriver() == config.DriverPostgres || c.GetCodeStore() == config.DriverPostgres
}

func needsRedis(c config.Config) bool {
	return c.GetCodeStore() == config.DriverRedis || c.GetSessionStore() == config.DriverRedis
}

func connectRedis(ctx context.Context, c config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         c.GetRedisAddr(),
		Password:     c.GetRedisPassword(),
		DB:           c.GetRedisDB(),
		DialTimeout:  redisrepo.DefaultDialTimeout,
		ReadTimeout:  redisrepo.DefaultReadTimeout,
		WriteTimeout: redisrepo.DefaultWriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[connectRedis] failed to connect to redis at %s: %w", c.GetRedisAddr(), err)
	}
	return client, nil
}

func clientRepo(c config.Config, pool *pgxpool.Pool) (clients.Repo, error) {
	switch c.GetStorageDriver() {
	case config.DriverMemory:
		log.Warn().Msg("clients are kept in memory and lost on restart")
		return fakeclientrepo.NewFakeClientRepo(), nil
	case config.DriverPostgres:
		return clientspg.New(pool), nil
	default:
		return nil, fmt.Errorf("[clientRepo] unsupported STORAGE_DRIVER %q", c.GetStorageDriver())
	}
}

func codeRepo(c config.Config, pool *pgxpool.Pool, client *redis.Client) (authcodes.Repo, error) {
	switch c.GetCodeStore() {
	case config.DriverMemory:
		return authcoderepofakes.NewFakeCodeRepo(), nil
	case config.DriverRedis:
		return redisrepo.NewWithClient(client, c.GetRedisPrefix()), nil
	case config.DriverPostgres:
		return authcodespg.New(pool), nil
	default:
		return nil, fmt.Errorf("[codeRepo] unsupported CODE_STORE %q", c.GetCodeStore())
	}
}

func sessionManager(c config.Config, client *redis.Client) (*sessions.Manager, error) {
	var store sessions.Store
	switch c.GetSessionStore() {
	case config.DriverMemory:
		store = sessmemory.New(c.GetSessionTTL())
	case config.DriverRedis:
		store = redisstore.New(client, c.GetRedisPrefix())
	default:
		return nil, fmt.Errorf("[sessionManager] unsupported SESSION_STORE %q", c.GetSessionStore())
	}
	return sessions.NewManager(store, c.GetSessionTTL())
}

func openDirectory(c config.Config) (directory.Directory, error) {
	switch c.GetDirectoryDriver() {
	case config.DriverMemory:
		if path := c.GetDirectoryUsersFile(); path != "" {
			return dirmemory.Load(path)
		}
		log.Warn().Msg("no DIRECTORY_USERS_FILE set, the directory is empty")
		return dirmemory.New(), nil
	case config.DriverLDAP:
		return ldap.New(ldap.Config{
			URL:          c.GetLDAPURL(),
			BindDN:       c.GetLDAPBindDN(),
			BindPassword: c.GetLDAPBindPassword(),
			BaseDN:       c.GetLDAPUserBaseDN(),
			Timeout:      c.GetDirectoryTimeout(),
		})
	default:
		return nil, fmt.Errorf("[openDirectory] unsupported DIRECTORY_DRIVER %q", c.GetDirectoryDriver())
	}
}

// tokenIssuer builds the bridge selected by TOKEN_ISSUER. Local tokens carry
// the service account type, so their key must not be one the API accepts as
// a request identity.
func tokenIssuer(c config.Config, client *http.Client, identitySigner keys.Signer) (token.Issuer, error) {
	switch c.GetTokenIssuer() {
	case config.TokenIssuerHTTP:
		return token.NewHTTPIssuer(c.GetTokensServiceURL(),
			token.WithHTTPClient(client),
			token.WithServiceToken(c.GetTokensServiceToken()),
		)
	case config.TokenIssuerLocal:
		signer, err := keys.ParseSigner(localIssuerKeyID, c.GetTokenSigningKey())
		if err != nil {
			return nil, fmt.Errorf("[tokenIssuer] TOKEN_SIGNING_KEY: %w", err)
		}
		if keys.SharesKey(signer, identitySigner) {
			return nil, fmt.Errorf("[tokenIssuer] TOKEN_SIGNING_KEY must differ from IDENTITY_SIGNING_KEY")
		}
		return token.NewLocalIssuer(signer)
	default:
		return nil, fmt.Errorf("[tokenIssuer] unsupported TOKEN_ISSUER %q", c.GetTokenIssuer())
	}
}
