package server

import "net/http"

func (s *Server) initRoutes() {
	// OAuth2 metadata
	s.RegisterRouteFunc(http.MethodGet, RouteWellKnownMetadata, ChainMiddleware(s.WellKnownMetadata(), s.APIMiddleware()...))

	// Token endpoint
	s.RegisterRouteFunc(http.MethodPost, RouteTokens, ChainMiddleware(s.Tokens(), s.APIMiddleware(NoStoreMiddleware)...))

	// Identity protected API
	s.RegisterRouteFunc(http.MethodGet, RouteAdminConfig, ChainMiddleware(s.GetTenantConfig(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodPost, RouteAdminConfig, ChainMiddleware(s.UpdateTenantConfig(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodGet, RouteClients, ChainMiddleware(s.ListClients(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodPost, RouteClients, ChainMiddleware(s.CreateClient(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodGet, RouteClient, ChainMiddleware(s.GetClient(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodDelete, RouteClient, ChainMiddleware(s.DeleteClient(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodGet, RouteUserInfo, ChainMiddleware(s.UserInfo(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodGet, RouteProfiles, ChainMiddleware(s.ListProfiles(), s.APIMiddleware(s.RequireIdentity)...))
	s.RegisterRouteFunc(http.MethodGet, RouteProfile, ChainMiddleware(s.GetProfile(), s.APIMiddleware(s.RequireIdentity)...))

	// Browser authorization flow
	s.RegisterRouteFunc(http.MethodGet, RouteAuthorize, ChainMiddleware(s.Authorize(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodPost, RouteAuthorize, ChainMiddleware(s.Consent(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodGet, RouteLogin, ChainMiddleware(s.LoginPage(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodPost, RouteLogin, ChainMiddleware(s.LoginSubmission(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodGet, RouteTenant, ChainMiddleware(s.TenantPage(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodPost, RouteTenant, ChainMiddleware(s.TenantSubmission(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodGet, RouteLogout, ChainMiddleware(s.LogoutPage(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodPost, RouteLogout, ChainMiddleware(s.LogoutSubmission(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodGet, RouteCallback, ChainMiddleware(s.ProviderCallback(), s.HTMLMiddleWare()...))

	// Token webapp
	s.RegisterRouteFunc(http.MethodGet, RouteWebapp, ChainMiddleware(s.Webapp(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc(http.MethodGet, RouteWebappCallback, ChainMiddleware(s.WebappCallback(), s.HTMLMiddleWare(NoStoreMiddleware)...))

	// CORS preflight for the API
	s.RegisterRouteFunc(http.MethodOptions, routePrefix+"/*", ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	// Operations
	if s.metrics != nil {
		s.RegisterRouteHandler(RouteMetrics, s.metrics.Handler())
	}
	s.RegisterRouteFunc(http.MethodGet, RouteHealth, s.Health())

	s.router.NotFound(ChainMiddleware(s.NotFound(), s.APIMiddleware()...))
	s.router.MethodNotAllowed(ChainMiddleware(s.MethodNotAllowed(), s.APIMiddleware()...))
}
