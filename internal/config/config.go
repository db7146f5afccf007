package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
	DirectoryConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetTenantsFile() string
	GetDefaultTenantID() string
	GetLocalDevelopment() bool
	GetOutboundTimeout() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StorageConfig interface {
	GetStorageDriver() string
	GetPostgresDSN() string
	GetCodeStore() string
	GetSessionStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetTenantCacheTTL() time.Duration
}

type DirectoryConfig interface {
	GetDirectoryDriver() string
	GetDirectoryUsersFile() string
	GetDirectoryTimeout() time.Duration
	GetLDAPURL() string
	GetLDAPBindDN() string
	GetLDAPBindPassword() string
	GetLDAPUserBaseDN() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Storage
	Directory
}

var _ Config = mainConfig{}

// New returns the environment backed configuration. A .env file in the
// working directory is loaded first when present.
func New() Config {
	LoadDotEnv()
	return mainConfig{}
}
