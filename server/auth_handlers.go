package server

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finport/go-oidc-gateway/authn"
	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/sessions"
)

// sessionExpiredMessage matches what browser clients render verbatim.
const sessionExpiredMessage = "Your session has expired. \n\nPlease log in again"

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnURL := r.URL.Query().Get("returnUrl")

		authURL, err := s.authn.BeginLogin(returnURL)
		if err != nil {
			log.Error().Err(err).Msg("failed to begin login flow")
			http.Error(w, "Failed to start login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

func (s *Server) LoginCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params (GET) and form_post (POST)
		state := r.FormValue("state")
		code := r.FormValue("code")
		errorParam := r.FormValue("error")
		errorDesc := r.FormValue("error_description")

		if errorParam != "" {
			http.Error(w, "Authorization failed: "+errorParam+" - "+errorDesc, http.StatusBadRequest)
			return
		}

		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		session, returnURL, err := s.authn.CompleteLogin(r.Context(), state, code)
		if err != nil {
			log.Warn().Err(err).Msg("login callback rejected")
			if errs.Is(err, errs.ErrCallbackRejected) {
				http.Error(w, "Login failed", http.StatusUnauthorized)
				return
			}
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		sessionID := generateRandomString(32)
		if err := s.sessions.Upsert(sessionID, session); err != nil {
			log.Error().Err(err).Msg("failed to store session")
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		maxAge := 0
		if session.ExpiresAt != nil {
			maxAge = int(time.Until(time.Unix(*session.ExpiresAt, 0)).Seconds())
		}
		s.setSessionCookie(w, r, sessionID, maxAge)

		if returnURL == "" {
			returnURL = "/"
		}
		http.Redirect(w, r, returnURL, http.StatusSeeOther)
	}
}

// LogoutHandler clears the local session first; provider-side logout never
// blocks it. With an end-session endpoint the browser is sent there, otherwise
// a short-lived logged-out marker backs the local confirmation view.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		var session sessions.Session
		if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			sessionID = cookie.Value
			if stored, err := s.sessions.Get(sessionID); err == nil {
				session = stored
			}
		}

		result := s.authn.Logout(sessionID, session)

		s.clearSessionCookie(w, r)

		if result.RedirectURL != "" {
			http.Redirect(w, r, result.RedirectURL, http.StatusFound)
			return
		}

		s.setLoggedOutCookie(w, r)
		http.Redirect(w, r, RouteLoggedOut, http.StatusSeeOther)
	}
}

func (s *Server) LoggedOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(loggedOutHTML))
	}
}

const loggedOutHTML = `<!DOCTYPE html>
<html>
<head><title>Logged out</title></head>
<body>
<h1>You have been logged out</h1>
<p><a href="/login">Log in again</a></p>
</body>
</html>
`

// UserHandler returns the caller's identity from whichever source established
// it: the stored session or a validated bearer token.
func (s *Server) UserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := bearerClaimsFromContext(r.Context()); ok {
			writeJSON(w, http.StatusOK, map[string]string{
				"sub":     claims.Subject,
				"tenant":  claims.Tenant,
				"channel": claims.Channel,
			})
			return
		}

		_, session, ok := sessionFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, session.UserInfo)
	}
}

// CheckTokenHandler reports session validity. With refresh=true a near-expiry
// session is refreshed in the same call.
func (s *Server) CheckTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, session, ok := sessionFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, sessionExpiredMessage)
			return
		}

		wantsRefresh := r.URL.Query().Get("refresh") == "true"

		status, checked, err := s.authn.CheckSession(r.Context(), sessionID, session, wantsRefresh)
		if err != nil {
			log.Warn().Err(err).Msg("session refresh during check failed")
		}
		if status == authn.StatusInvalid {
			writeJSONError(w, http.StatusUnauthorized, sessionExpiredMessage)
			return
		}

		if checked.ExpiresAt != nil && checked.AccessToken != session.AccessToken {
			maxAge := int(time.Until(time.Unix(*checked.ExpiresAt, 0)).Seconds())
			s.setSessionCookie(w, r, sessionID, maxAge)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    status.String(),
			"expiresAt": checked.ExpiresAt,
		})
	}
}

// RefreshTokenHandler forces a token refresh regardless of remaining lifetime.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, session, ok := sessionFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, sessionExpiredMessage)
			return
		}

		refreshed, err := s.authn.Refresh(r.Context(), sessionID, session)
		if err != nil {
			log.Warn().Err(err).Msg("token refresh rejected")

			var rejected *errs.RefreshRejectedError
			if errs.As(err, &rejected) && rejected.ProviderMessage != "" {
				writeJSONError(w, http.StatusUnauthorized, rejected.ProviderMessage)
				return
			}
			writeJSONError(w, http.StatusUnauthorized, sessionExpiredMessage)
			return
		}

		if refreshed.ExpiresAt != nil {
			maxAge := int(time.Until(time.Unix(*refreshed.ExpiresAt, 0)).Seconds())
			s.setSessionCookie(w, r, sessionID, maxAge)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "refreshed",
			"expiresAt": refreshed.ExpiresAt,
		})
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Server) setLoggedOutCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionStateCookieName,
		Value:    loggedOutCookieValue,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   loggedOutMaxAgeSeconds,
	})
}
