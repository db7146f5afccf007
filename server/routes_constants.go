package server

import "github.com/jrsteele09/go-authenticator/federation"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	routePrefix = "/v3/oauth2"

	// Metadata and administration
	RouteWellKnownMetadata = routePrefix + "/.well-known/oauth-authorization-server"
	RouteAdminConfig       = routePrefix + "/admin/config"

	// API routes (identity JWT required)
	RouteClients  = routePrefix + "/clients"
	RouteClient   = routePrefix + "/clients/{client_id}"
	RouteUserInfo = routePrefix + "/userinfo"
	RouteProfiles = routePrefix + "/profiles"
	RouteProfile  = routePrefix + "/profiles/{username}"

	// Token endpoint (client basic auth)
	RouteTokens = routePrefix + "/tokens"

	// Browser flow
	RouteAuthorize = routePrefix + "/authorize"
	RouteLogin     = routePrefix + "/login"
	RouteTenant    = routePrefix + "/tenant"
	RouteLogout    = routePrefix + "/logout"
	RouteCallback  = federation.CallbackPath

	// First-party token webapp
	RouteWebapp         = routePrefix + "/webapp"
	RouteWebappCallback = routePrefix + "/webapp/callback"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
