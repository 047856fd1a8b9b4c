package server

import (
	"context"

	"github.com/finport/go-oidc-gateway/sessions"
	"github.com/finport/go-oidc-gateway/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySessionID stores the browser session ID
	ContextKeySessionID ContextKey = "session_id"
	// ContextKeySession stores the resolved identity session
	ContextKeySession ContextKey = "session"
	// ContextKeyBearerClaims stores claims from a validated bearer token
	ContextKeyBearerClaims ContextKey = "bearer_claims"
)

func sessionFromContext(ctx context.Context) (string, sessions.Session, bool) {
	id, ok := ctx.Value(ContextKeySessionID).(string)
	if !ok {
		return "", sessions.Session{}, false
	}
	session, ok := ctx.Value(ContextKeySession).(sessions.Session)
	if !ok {
		return "", sessions.Session{}, false
	}
	return id, session, true
}

func bearerClaimsFromContext(ctx context.Context) (*token.BearerClaims, bool) {
	claims, ok := ctx.Value(ContextKeyBearerClaims).(*token.BearerClaims)
	return claims, ok && claims != nil
}
