package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	portEnvVar         = "PORT"
	appNameVar         = "APP_NAME"
	envVar             = "ENV"
	logLevelVar        = "LOG_LEVEL"
	tenantsFileVar     = "TENANTS_FILE"
	defaultTenantVar   = "DEFAULT_TENANT_ID"
	localDevVar        = "LOCAL_DEVELOPMENT"
	outboundTimeoutVar = "OUTBOUND_TIMEOUT"
)

const defaultOutboundTimeout = 10 * time.Second

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Authenticator")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetTenantsFile() string {
	return GetEnv(tenantsFileVar, "./config/tenants.yaml")
}

// GetDefaultTenantID is used when the request host does not match any
// tenant base url.
func (EnvVars) GetDefaultTenantID() string {
	return GetEnv(defaultTenantVar, "")
}

// GetLocalDevelopment switches the federation callback to localhost.
func (EnvVars) GetLocalDevelopment() bool {
	return GetEnvBool(localDevVar, false)
}

// GetOutboundTimeout bounds every call to the tokens service and identity
// providers.
func (EnvVars) GetOutboundTimeout() time.Duration {
	return GetEnvDuration(outboundTimeoutVar, defaultOutboundTimeout)
}

// LoadDotEnv loads .env into the process environment without overriding
// variables that are already set.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvInt(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("not an integer, using default")
		return defaultValue
	}
	return n
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Msg("not a boolean, using default")
		return defaultValue
	}
	return b
}

// GetEnvDuration accepts a Go duration ("90s", "5m") or a bare number of
// seconds.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", value).Msg("not a duration, using default")
		return defaultValue
	}
	return d
}
