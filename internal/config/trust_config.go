package config

import (
	"strconv"
	"strings"
	"time"
)

// AuthMode selects how the gateway establishes identity for browser traffic.
type AuthMode string

const (
	// AuthModeSession keeps tokens in a server-side session keyed by cookie.
	AuthModeSession AuthMode = "session"
	// AuthModeDelegated re-establishes identity per call from the bearer token.
	AuthModeDelegated AuthMode = "delegated"
)

// TrustConfig describes the relationship with the external identity provider.
// It is read once at startup; components receive plain values, never the
// interface itself.
type TrustConfig interface {
	GetIssuer() string
	GetClientID() string
	GetClientSecret() string
	GetAudience() string
	GetRedirectURI() string
	GetRedirectURILogout() string
	GetScopes() []string
	GetIdleTime() time.Duration
	GetHTTPTimeout() time.Duration
	IsMultitenant() bool
	GetAuthMode() AuthMode
}

type Trust struct{}

var _ TrustConfig = Trust{}

func (Trust) GetIssuer() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Trust) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Trust) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

func (Trust) GetAudience() string {
	return GetEnv("OIDC_AUDIENCE", "")
}

func (t Trust) GetRedirectURI() string {
	return GetEnv("OIDC_REDIRECT_URI", EnvVars{}.GetOrigin()+"/login/callback")
}

// GetRedirectURILogout returns the post-logout redirect target. Falls back to
// the gateway origin when unset.
func (Trust) GetRedirectURILogout() string {
	return GetEnv("OIDC_REDIRECT_URI_LOGOUT", "")
}

func (Trust) GetScopes() []string {
	scopes := GetEnv("OIDC_SCOPES", "openid profile email offline_access")
	return strings.Fields(scopes)
}

// GetIdleTime returns how close to expiry a token must be before a refresh is
// recommended.
func (Trust) GetIdleTime() time.Duration {
	return envDuration("OIDC_IDLE_TIME_SECONDS", 30*time.Second)
}

func (Trust) GetHTTPTimeout() time.Duration {
	return envDuration("OIDC_HTTP_TIMEOUT_SECONDS", 10*time.Second)
}

func (Trust) IsMultitenant() bool {
	return GetEnv("MULTITENANT", "false") == "true"
}

func (Trust) GetAuthMode() AuthMode {
	if GetEnv("AUTH_MODE", string(AuthModeSession)) == string(AuthModeDelegated) {
		return AuthModeDelegated
	}
	return AuthModeSession
}

func envDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}
