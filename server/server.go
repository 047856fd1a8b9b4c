package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/finport/go-oidc-gateway/accounts"
	"github.com/finport/go-oidc-gateway/authn"
	"github.com/finport/go-oidc-gateway/internal/config"
	"github.com/finport/go-oidc-gateway/sessions"
	"github.com/finport/go-oidc-gateway/tenancy"
	"github.com/finport/go-oidc-gateway/token"
)

// Deps holds the server's collaborators.
type Deps struct {
	Authenticator *authn.Authenticator
	Validator     *token.Validator
	Guard         *tenancy.Guard
	Sessions      sessions.Repo
	Accounts      *accounts.Client
}

// Server is the HTTP boundary: it resolves identity, authorizes tenancy and
// dispatches to handlers or the upstream proxy.
type Server struct {
	env          string
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	authn        *authn.Authenticator
	validator    *token.Validator
	guard        *tenancy.Guard
	capabilities *tenancy.Registry
	sessions     sessions.Repo
	accounts     *accounts.Client
	proxy        http.Handler
}

func New(config config.Config, deps Deps) (*Server, error) {
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("[Server New] authenticator is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("[Server New] token validator is required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("[Server New] tenancy guard is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("[Server New] session repo is required")
	}

	s := &Server{
		env:          config.GetEnv(),
		mux:          http.NewServeMux(),
		config:       config,
		authn:        deps.Authenticator,
		validator:    deps.Validator,
		guard:        deps.Guard,
		capabilities: tenancy.NewRegistry(),
		sessions:     deps.Sessions,
		accounts:     deps.Accounts,
	}

	if upstream := config.GetProxyUpstream(); upstream != "" {
		proxy, err := s.newUpstreamProxy(upstream)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to build upstream proxy: %w", err)
		}
		s.proxy = proxy
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterRoute attaches the route's capability record at registration time;
// the guard middleware reads it back as plain data via the matched pattern.
func (s *Server) RegisterRoute(pattern string, capability tenancy.Capability, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.capabilities.Register(pattern, capability)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		capability := s.capabilities.Lookup(route)
		log.Debug().
			Str("route", route).
			Bool("public", capability.Public).
			Stringer("tenancy", capability.Requirement).
			Msg("route registered")
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
