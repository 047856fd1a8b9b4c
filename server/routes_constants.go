package server

// Route path constants
// All gateway routes are defined here to ensure consistency and prevent typos
const (
	// Auth routes
	RouteLogin         = "/login"
	RouteLoginCallback = "/login/callback"
	RouteLogout        = "/logout"
	RouteLoggedOut     = "/loggedout"

	// Session/token routes
	RouteUser         = "/user"
	RouteCheckToken   = "/check-token"
	RouteRefreshToken = "/refresh-token"

	// Tenant-scoped API routes
	RouteAccounts         = "/api/{tenantId}/{channelType}/accounts"
	RouteAccountBalances  = "/api/{tenantId}/{channelType}/accounts/{id}/balances"
	RouteAccountDetail    = "/api/{tenantId}/{channelType}/accounts/{id}"
	RouteAccountStatement = "/api/{tenantId}/{channelType}/accounts/{id}/statement"
)

// Cookie names and the provider-less logout fallback window.
const (
	// sessionCookieName carries the browser session ID.
	sessionCookieName = "session_id"
	// sessionStateCookieName marks the short-lived logged-out state when the
	// provider has no end-session endpoint.
	sessionStateCookieName = "session_state"
	loggedOutCookieValue   = "logged out"
	loggedOutMaxAgeSeconds = 900
)
