package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/finport/go-oidc-gateway/internal/utils"
)

// BearerClaims is the identity derived from a verified bearer token. It is
// built per request and never persisted.
type BearerClaims struct {
	Subject   string
	Audience  []string
	Issuer    string
	ExpiresAt time.Time
	Tenant    string
	Channel   string
	Roles     []string
	Extra     map[string]any
}

// Identity-partition and registered claim names recognised in access tokens.
const (
	tenantClaim  = "tenant"
	channelClaim = "channel"
	rolesClaim   = "roles"
)

func claimsFromMap(m jwt.MapClaims) *BearerClaims {
	c := &BearerClaims{Extra: make(map[string]any)}

	if v, ok := m["sub"].(string); ok {
		c.Subject = v
	}
	if v, ok := m["iss"].(string); ok {
		c.Issuer = v
	}
	if v, ok := m[tenantClaim].(string); ok {
		c.Tenant = v
	}
	if v, ok := m[channelClaim].(string); ok {
		c.Channel = v
	}
	if v, ok := m["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(v), 0)
	}
	if aud, err := m.GetAudience(); err == nil {
		c.Audience = aud
	}
	if roles, ok := m[rolesClaim].([]any); ok {
		c.Roles = utils.ToStringSlice(roles)
	}

	standard := map[string]bool{
		"sub": true, "iss": true, "aud": true, "exp": true,
		"iat": true, "nbf": true, "jti": true,
		tenantClaim: true, channelClaim: true, rolesClaim: true,
	}
	for k, v := range m {
		if !standard[k] {
			c.Extra[k] = v
		}
	}
	return c
}
