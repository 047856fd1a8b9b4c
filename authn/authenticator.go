// Package authn orchestrates browser login, session validity checks and
// logout against the external identity provider.
package authn

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/finport/go-oidc-gateway/authn/flowrepo"
	"github.com/finport/go-oidc-gateway/internal/config"
	"github.com/finport/go-oidc-gateway/lifecycle"
	"github.com/finport/go-oidc-gateway/sessions"
)

// Status is the outcome of a session check.
type Status int

const (
	// StatusValid means the session can keep serving requests as-is.
	StatusValid Status = iota
	// StatusInvalid means the caller must re-authenticate.
	StatusInvalid
	// StatusRefreshed means the session's tokens were just replaced.
	StatusRefreshed
)

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "invalid"
	case StatusRefreshed:
		return "refreshed"
	default:
		return "valid"
	}
}

// LogoutResult tells the boundary how to finish a logout after the local
// session state has already been cleared.
type LogoutResult struct {
	// RedirectURL is the provider end-session redirect, when advertised.
	RedirectURL string
	// MarkLoggedOut instructs the boundary to set the short-lived
	// "logged out" cookie and show the static confirmation view.
	MarkLoggedOut bool
}

// Authenticator drives the session token lifecycle. A single component covers
// both authentication modes: cookie-backed sessions and per-call delegated
// identity, selected by configuration.
type Authenticator struct {
	provider  Provider
	sessions  sessions.Repo
	flows     flowrepo.Repo
	refresher *lifecycle.Refresher
	idleTime  time.Duration
	mode      config.AuthMode

	clientID          string
	origin            string
	redirectURILogout string

	nowTime func() time.Time
}

// AuthenticatorOption modifies the Authenticator instance.
type AuthenticatorOption func(*Authenticator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.nowTime = nowFunc
	}
}

// Deps holds the authenticator's collaborators.
type Deps struct {
	Provider  Provider
	Sessions  sessions.Repo
	Flows     flowrepo.Repo
	Refresher *lifecycle.Refresher
}

// NewAuthenticator wires the session authenticator from its collaborators and
// the trust configuration snapshot.
func NewAuthenticator(deps Deps, cfg config.Config, options ...AuthenticatorOption) (*Authenticator, error) {
	if deps.Provider == nil {
		return nil, errors.New("[NewAuthenticator] Provider is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("[NewAuthenticator] Sessions repo is required")
	}
	if deps.Flows == nil {
		return nil, errors.New("[NewAuthenticator] Flows repo is required")
	}
	if deps.Refresher == nil {
		return nil, errors.New("[NewAuthenticator] Refresher is required")
	}

	a := &Authenticator{
		provider:          deps.Provider,
		sessions:          deps.Sessions,
		flows:             deps.Flows,
		refresher:         deps.Refresher,
		idleTime:          cfg.GetIdleTime(),
		mode:              cfg.GetAuthMode(),
		clientID:          cfg.GetClientID(),
		origin:            cfg.GetOrigin(),
		redirectURILogout: cfg.GetRedirectURILogout(),
		nowTime:           time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Mode reports the configured authentication mode.
func (a *Authenticator) Mode() config.AuthMode { return a.mode }

// BeginLogin starts a login flow and returns the provider redirect URL. No
// session state exists yet; only the flow record keyed by state.
func (a *Authenticator) BeginLogin(returnURL string) (string, error) {
	state := uuid.New().String()
	nonce := uuid.New().String()

	if err := a.flows.Upsert(state, &flowrepo.Flow{
		Nonce:     nonce,
		ReturnURL: returnURL,
		CreatedAt: a.nowTime(),
	}); err != nil {
		return "", errors.Wrap(err, "[BeginLogin] failed to store flow state")
	}

	return a.provider.AuthCodeURL(state, nonce), nil
}

// CompleteLogin finishes the callback leg: the flow state is consumed exactly
// once, the code is exchanged, and the identity session is returned for the
// boundary to store.
func (a *Authenticator) CompleteLogin(ctx context.Context, state, code string) (sessions.Session, string, error) {
	flow, err := a.flows.Get(state)
	if err != nil {
		return sessions.Session{}, "", errors.Wrap(err, "[CompleteLogin] unknown state")
	}
	if err := a.flows.Delete(state); err != nil {
		return sessions.Session{}, "", errors.Wrap(err, "[CompleteLogin] failed to consume state")
	}

	session, err := a.provider.Exchange(ctx, code, flow.Nonce)
	if err != nil {
		return sessions.Session{}, "", err
	}
	return session, flow.ReturnURL, nil
}

// CheckSession classifies the session and optionally refreshes it. Expired
// sessions are invalid regardless of wantsRefresh. A near-expiry session is
// refreshed only on request; refresh failure invalidates rather than retries.
// On StatusRefreshed the returned session has already been persisted.
func (a *Authenticator) CheckSession(ctx context.Context, sessionID string, session sessions.Session, wantsRefresh bool) (Status, sessions.Session, error) {
	switch lifecycle.Classify(session.ExpiresAt, a.nowTime(), a.idleTime) {
	case lifecycle.Expired:
		return StatusInvalid, session, nil
	case lifecycle.NearExpiry:
		if !wantsRefresh {
			return StatusValid, session, nil
		}
		refreshed, err := a.Refresh(ctx, sessionID, session)
		if err != nil {
			return StatusInvalid, session, err
		}
		return StatusRefreshed, refreshed, nil
	default:
		return StatusValid, session, nil
	}
}

// Refresh replaces the session's token triple via the provider and persists
// the result. The input session is untouched on failure.
func (a *Authenticator) Refresh(ctx context.Context, sessionID string, session sessions.Session) (sessions.Session, error) {
	triple, err := a.refresher.Refresh(ctx, sessionID, session)
	if err != nil {
		return sessions.Session{}, err
	}

	refreshed := session
	refreshed.SetTokens(triple.AccessToken, triple.RefreshToken, triple.ExpiresAt)
	if err := a.sessions.Upsert(sessionID, refreshed); err != nil {
		return sessions.Session{}, errors.Wrap(err, "[Refresh] failed to persist session")
	}
	return refreshed, nil
}

// Logout clears local session state first, unconditionally; provider-side
// logout must never block it. It then decides how the boundary should finish:
// redirect to the provider's end-session endpoint when one is advertised,
// otherwise mark a short-lived logged-out state locally.
func (a *Authenticator) Logout(sessionID string, session sessions.Session) LogoutResult {
	_ = a.sessions.Delete(sessionID)

	endSession := a.provider.Metadata().EndSessionEndpoint
	if endSession == "" {
		return LogoutResult{MarkLoggedOut: true}
	}

	postLogout := a.redirectURILogout
	if postLogout == "" {
		postLogout = a.origin
	}

	redirect := endSession +
		"?post_logout_redirect_uri=" + url.QueryEscape(postLogout) +
		"&client_id=" + url.QueryEscape(a.clientID)
	if session.IDToken != "" {
		redirect += "&id_token_hint=" + url.QueryEscape(session.IDToken)
	}
	return LogoutResult{RedirectURL: redirect}
}
