package server

import (
	"net/http"
	"strings"

	"github.com/finport/go-oidc-gateway/tenancy"
)

func (s *Server) initRoutes() {
	public := tenancy.Capability{Public: true}
	authed := tenancy.Capability{}
	tenanted := tenancy.Capability{Requirement: tenancy.Required}

	// LOGIN / LOGOUT
	s.RegisterRoute("GET "+RouteLogin, public, ChainMiddleware(s.LoginHandler(), s.BaseMiddleware()...))
	s.RegisterRoute("GET "+RouteLoginCallback, public, ChainMiddleware(s.LoginCallbackHandler(), s.BaseMiddleware()...))
	s.RegisterRoute("POST "+RouteLoginCallback, public, ChainMiddleware(s.LoginCallbackHandler(), s.BaseMiddleware()...)) // form_post response mode
	s.RegisterRoute("GET "+RouteLogout, public, ChainMiddleware(s.LogoutHandler(), s.BaseMiddleware()...))
	s.RegisterRoute("GET "+RouteLoggedOut, public, ChainMiddleware(s.LoggedOutHandler(), s.BaseMiddleware()...))

	// SESSION / TOKEN
	s.RegisterRoute("GET "+RouteUser, authed, ChainMiddleware(s.UserHandler(), s.GuardedMiddleware()...))
	s.RegisterRoute("GET "+RouteCheckToken, authed, ChainMiddleware(s.CheckTokenHandler(), s.GuardedMiddleware()...))
	s.RegisterRoute("GET "+RouteRefreshToken, authed, ChainMiddleware(s.RefreshTokenHandler(), s.GuardedMiddleware()...))

	// TENANT-SCOPED API
	if s.accounts != nil {
		s.RegisterRoute("GET "+RouteAccounts, tenanted, ChainMiddleware(s.AccountsListHandler(), s.GuardedAPIMiddleware()...))
		s.RegisterRoute("GET "+RouteAccountBalances, tenanted, ChainMiddleware(s.AccountBalancesHandler(), s.GuardedAPIMiddleware()...))
		s.RegisterRoute("GET "+RouteAccountDetail, tenanted, ChainMiddleware(s.AccountDetailHandler(), s.GuardedAPIMiddleware()...))
		s.RegisterRoute("GET "+RouteAccountStatement, tenanted, ChainMiddleware(s.AccountStatementHandler(), s.GuardedAPIMiddleware()...))

		// Preflight requests carry no credentials; CORS middleware answers them.
		preflight := ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}, s.BaseMiddleware(s.CorsMiddleware)...)
		for _, route := range []string{RouteAccounts, RouteAccountBalances, RouteAccountDetail, RouteAccountStatement} {
			s.RegisterRoute("OPTIONS "+route, public, preflight)
		}
	}

	// UPSTREAM PROXY
	if s.proxy != nil {
		prefix := s.config.GetProxyPrefix()
		pattern := strings.TrimSuffix(prefix, "/")
		s.RegisterRoute(pattern+"/", authed, ChainMiddleware(s.ProxyHandler(), s.GuardedAPIMiddleware()...))
	}
}

// BaseMiddleware applies to every route, public ones included.
func (s *Server) BaseMiddleware(mw ...func(http.HandlerFunc) http.HandlerFunc) []func(http.HandlerFunc) http.HandlerFunc {
	chained := []func(http.HandlerFunc) http.HandlerFunc{
		s.LoggingMiddleware,
		s.RecoverMiddleware,
	}
	return append(chained, mw...)
}

// GuardedMiddleware resolves identity and authorizes tenancy for browser and
// bearer traffic.
func (s *Server) GuardedMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return s.BaseMiddleware(s.IdentityMiddleware, s.TenancyMiddleware)
}

// GuardedAPIMiddleware additionally applies CORS for cross-origin API calls.
func (s *Server) GuardedAPIMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return s.BaseMiddleware(s.CorsMiddleware, s.IdentityMiddleware, s.TenancyMiddleware)
}
