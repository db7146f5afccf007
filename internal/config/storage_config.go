package config

import "time"

// Backend names accepted by the storage settings.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverLDAP     = "ldap"
)

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageDriver selects the client store backend.
func (Storage) GetStorageDriver() string {
	return GetEnv("STORAGE_DRIVER", DriverMemory)
}

func (Storage) GetPostgresDSN() string {
	return GetEnv("POSTGRES_DSN", "")
}

// GetCodeStore defaults to the client store backend.
func (s Storage) GetCodeStore() string {
	return GetEnv("CODE_STORE", s.GetStorageDriver())
}

func (Storage) GetSessionStore() string {
	return GetEnv("SESSION_STORE", DriverMemory)
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "authenticator:")
}

// GetTenantCacheTTL bounds how long a cached tenant is served before it is
// reloaded from the tenant repo. Zero caches until refreshed.
func (Storage) GetTenantCacheTTL() time.Duration {
	return GetEnvDuration("TENANT_CACHE_TTL", 0)
}
