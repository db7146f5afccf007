package config

import "time"

type SecurityConfig interface {
	GetIdentitySigningKey() string
	GetSessionTTL() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetIdentitySigningKey verifies the JWTs presented to the API endpoints.
func (Security) GetIdentitySigningKey() string {
	return GetEnv("IDENTITY_SIGNING_KEY", "")
}

func (Security) GetSessionTTL() time.Duration {
	return GetEnvDuration("SESSION_TTL", 30*time.Minute)
}
