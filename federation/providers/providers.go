// Package providers assembles the registry of supported identity providers.
package providers

import (
	"net/http"

	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/federation/github"
	"github.com/jrsteele09/go-authenticator/federation/oidc"
)

// Default returns a registry with every built-in provider type.
func Default(client *http.Client) *federation.Registry {
	r := federation.NewRegistry(client)
	r.Register(github.Type, github.Factory)
	r.Register(oidc.Type, oidc.Factory)
	return r
}
