// Package server is the HTTP boundary of the authenticator: the browser
// authorization flow, the token endpoint and the JSON API.
package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-authenticator/auth"
	"github.com/jrsteele09/go-authenticator/clients"
	"github.com/jrsteele09/go-authenticator/directory"
	"github.com/jrsteele09/go-authenticator/federation"
	"github.com/jrsteele09/go-authenticator/internal/config"
	"github.com/jrsteele09/go-authenticator/internal/metrics"
	"github.com/jrsteele09/go-authenticator/sessions"
	"github.com/jrsteele09/go-authenticator/tenants"
	"github.com/jrsteele09/go-authenticator/token"
	"github.com/rs/zerolog/log"
)

// Services holds the components the handlers delegate to. Providers and
// Metrics are optional.
type Services struct {
	Engine    *auth.Engine
	Tenants   *tenants.Registry
	Clients   *clients.Store
	Directory directory.Directory
	Sessions  *sessions.Manager
	Verifier  *token.Verifier
	Providers *federation.Registry
	Metrics   *metrics.Metrics
	Version   string
}

type Server struct {
	env       string
	version   string
	router    chi.Router
	routes    []string
	config    config.Config
	templates *template.Template

	engine    *auth.Engine
	tenants   *tenants.Registry
	clients   *clients.Store
	directory directory.Directory
	sessions  *sessions.Manager
	verifier  *token.Verifier
	providers *federation.Registry
	metrics   *metrics.Metrics
}

func New(cfg config.Config, services Services) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[server.New] config is required")
	}
	switch {
	case services.Engine == nil:
		return nil, fmt.Errorf("[server.New] engine is required")
	case services.Tenants == nil:
		return nil, fmt.Errorf("[server.New] tenant registry is required")
	case services.Clients == nil:
		return nil, fmt.Errorf("[server.New] client store is required")
	case services.Directory == nil:
		return nil, fmt.Errorf("[server.New] directory is required")
	case services.Sessions == nil:
		return nil, fmt.Errorf("[server.New] session manager is required")
	case services.Verifier == nil:
		return nil, fmt.Errorf("[server.New] identity verifier is required")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("[server.New] %w", err)
	}

	s := &Server{
		env:       cfg.GetEnv(),
		version:   services.Version,
		router:    chi.NewRouter(),
		config:    cfg,
		templates: templates,
		engine:    services.Engine,
		tenants:   services.Tenants,
		clients:   services.Clients,
		directory: services.Directory,
		sessions:  services.Sessions,
		verifier:  services.Verifier,
		providers: services.Providers,
		metrics:   services.Metrics,
	}
	if s.version == "" {
		s.version = "dev"
	}

	if err := s.InitialiseSystem(context.Background()); err != nil {
		return nil, fmt.Errorf("[server.New] failed to initialise the system: %w", err)
	}

	s.router.Use(middleware.RequestID, middleware.RealIP, s.metrics.Middleware)
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteFunc adds a handler for method and pattern.
func (s *Server) RegisterRouteFunc(method, pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, method+" "+pattern)
	s.router.Method(method, pattern, handler)
}

// RegisterRouteHandler adds a handler for every method under pattern.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, "*       "+pattern)
	s.router.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, _ := strings.Cut(route, " ")
		log.Debug().Str("method", method).Str("path", strings.TrimSpace(path)).Msg("route")
	}
}
