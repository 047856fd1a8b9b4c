package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/finport/go-oidc-gateway/internal/config"
	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/tenancy"
)

// IdentityMiddleware resolves the caller's identity before the tenancy guard
// runs. Bearer tokens take precedence; session cookies cover browser traffic.
// Public routes pass through untouched.
func (s *Server) IdentityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		capability := s.capabilities.Lookup(r.Pattern)
		if capability.Public {
			next(w, r)
			return
		}

		if rawToken := bearerToken(r); rawToken != "" {
			claims, err := s.validator.Validate(rawToken)
			if err != nil {
				log.Debug().Err(err).Msg("bearer token rejected")
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyBearerClaims, claims)
			next(w, r.WithContext(ctx))
			return
		}

		if s.authn.Mode() == config.AuthModeDelegated {
			// Delegated mode re-establishes identity per call and never falls
			// back to a cookie.
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		session, err := s.sessions.Get(cookie.Value)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySessionID, cookie.Value)
		ctx = context.WithValue(ctx, ContextKeySession, session)
		next(w, r.WithContext(ctx))
	}
}

// TenancyMiddleware authorizes the request against the route's tenancy
// capability. It runs after IdentityMiddleware so identity is already in the
// request context.
func (s *Server) TenancyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		capability := s.capabilities.Lookup(r.Pattern)

		err := s.guard.Authorize(capability.Requirement, requestIdentity(r), routeParams(r))
		if err == nil {
			next(w, r)
			return
		}

		var misdirected *errs.MisdirectedError
		switch {
		case errs.Is(err, errs.ErrRouteNotFound):
			http.NotFound(w, r)
		case errs.As(err, &misdirected):
			writeJSON(w, http.StatusMisdirectedRequest, misdirected)
		default:
			writeJSONError(w, http.StatusInternalServerError, "authorization failed")
		}
	}
}

// requestIdentity derives the tenant/channel identity from whichever identity
// source the request carries. nil when the request is anonymous.
func requestIdentity(r *http.Request) *tenancy.Identity {
	if claims, ok := bearerClaimsFromContext(r.Context()); ok {
		return &tenancy.Identity{Tenant: claims.Tenant, Channel: claims.Channel}
	}
	if _, session, ok := sessionFromContext(r.Context()); ok {
		return &tenancy.Identity{Tenant: session.UserInfo.Tenant, Channel: session.UserInfo.Channel}
	}
	return nil
}

// routeParams reads the tenant/channel path values matched by the mux. nil
// when the route carries neither.
func routeParams(r *http.Request) *tenancy.RouteParams {
	tenantID := r.PathValue("tenantId")
	channelType := r.PathValue("channelType")
	if tenantID == "" && channelType == "" {
		return nil
	}
	return &tenancy.RouteParams{TenantID: tenantID, ChannelType: channelType}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
