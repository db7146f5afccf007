package config

import "time"

// Token issuer modes.
const (
	TokenIssuerHTTP  = "http"
	TokenIssuerLocal = "local"
)

type OAuthConfig interface {
	GetAuthCodeTTL() time.Duration
	GetTokenIssuer() string
	GetTokensServiceURL() string
	GetTokensServiceToken() string
	GetTokenSigningKey() string
	GetWebappClientID() string
	GetWebappClientKey() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthCodeTTL() time.Duration {
	return GetEnvDuration("AUTH_CODE_TTL", 600*time.Second)
}

func (OAuth) GetTokenIssuer() string {
	return GetEnv("TOKEN_ISSUER", TokenIssuerHTTP)
}

func (OAuth) GetTokensServiceURL() string {
	return GetEnv("TOKENS_SERVICE_URL", "http://localhost:5001")
}

// GetTokensServiceToken is the service JWT sent to the tokens service.
func (OAuth) GetTokensServiceToken() string {
	return GetEnv("TOKENS_SERVICE_TOKEN", "")
}

// GetTokenSigningKey is the HMAC secret or PEM private key used by the local
// issuer.
func (OAuth) GetTokenSigningKey() string {
	return GetEnv("TOKEN_SIGNING_KEY", "")
}

func (OAuth) GetWebappClientID() string {
	return GetEnv("WEBAPP_CLIENT_ID", "authenticator-webapp")
}

func (OAuth) GetWebappClientKey() string {
	return GetEnv("WEBAPP_CLIENT_KEY", "")
}
