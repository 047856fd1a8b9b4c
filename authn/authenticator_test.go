package authn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finport/go-oidc-gateway/authn"
	"github.com/finport/go-oidc-gateway/authn/flowrepo"
	"github.com/finport/go-oidc-gateway/internal/config"
	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/internal/utils"
	"github.com/finport/go-oidc-gateway/lifecycle"
	"github.com/finport/go-oidc-gateway/sessions"
)

const (
	testClientID = "client-1"
	testOrigin   = "http://localhost:8080"
)

type fakeProvider struct {
	metadata    authn.Metadata
	session     sessions.Session
	exchangeErr error
	gotCode     string
	gotNonce    string
}

func (f *fakeProvider) Metadata() authn.Metadata { return f.metadata }

func (f *fakeProvider) AuthCodeURL(state, nonce string) string {
	return f.metadata.AuthorizationEndpoint + "?state=" + url.QueryEscape(state) + "&nonce=" + url.QueryEscape(nonce)
}

func (f *fakeProvider) Exchange(ctx context.Context, code, nonce string) (sessions.Session, error) {
	f.gotCode = code
	f.gotNonce = nonce
	if f.exchangeErr != nil {
		return sessions.Session{}, f.exchangeErr
	}
	return f.session, nil
}

type authFixture struct {
	provider *fakeProvider
	sessions sessions.Repo
	flows    flowrepo.Repo
	authn    *authn.Authenticator
	now      time.Time
}

func setupAuthenticator(t *testing.T, tokenEndpoint string) *authFixture {
	t.Helper()

	t.Setenv("OIDC_CLIENT_ID", testClientID)
	t.Setenv("ORIGIN", testOrigin)
	t.Setenv("OIDC_IDLE_TIME_SECONDS", "30")

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		metadata: authn.Metadata{
			AuthorizationEndpoint: "https://idp.example.com/auth",
			TokenEndpoint:         tokenEndpoint,
		},
		session: sessions.Session{
			UserInfo:     sessions.UserInfo{Subject: "user-1", Tenant: "tenant-1", Channel: "web"},
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    utils.Ptr(now.Add(time.Hour).Unix()),
			IDToken:      "id-token-1",
		},
	}

	sessionRepo := sessions.NewInMemoryRepo()
	flowRepo := flowrepo.NewInMemoryRepo()

	refresher := lifecycle.NewRefresher(tokenEndpoint, testClientID, "secret", "openid", 5*time.Second,
		lifecycle.WithNowTime(func() time.Time { return now }))

	a, err := authn.NewAuthenticator(authn.Deps{
		Provider:  provider,
		Sessions:  sessionRepo,
		Flows:     flowRepo,
		Refresher: refresher,
	}, config.New(), authn.WithNowTime(func() time.Time { return now }))
	require.NoError(t, err)

	return &authFixture{provider: provider, sessions: sessionRepo, flows: flowRepo, authn: a, now: now}
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	t.Helper()
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestLoginFlow(t *testing.T) {
	t.Run("begin login stores flow state and nonce", func(t *testing.T) {
		f := setupAuthenticator(t, "")

		authURL, err := f.authn.BeginLogin("/dashboard")
		require.NoError(t, err)

		state := stateFromAuthURL(t, authURL)
		flow, err := f.flows.Get(state)
		require.NoError(t, err)
		require.NotEmpty(t, flow.Nonce)
		require.Equal(t, "/dashboard", flow.ReturnURL)
	})

	t.Run("complete login consumes the flow exactly once", func(t *testing.T) {
		f := setupAuthenticator(t, "")

		authURL, err := f.authn.BeginLogin("/dashboard")
		require.NoError(t, err)
		state := stateFromAuthURL(t, authURL)

		session, returnURL, err := f.authn.CompleteLogin(context.Background(), state, "code-1")
		require.NoError(t, err)
		require.Equal(t, "user-1", session.UserInfo.Subject)
		require.Equal(t, "/dashboard", returnURL)
		require.Equal(t, "code-1", f.provider.gotCode)
		require.NotEmpty(t, f.provider.gotNonce)

		_, _, err = f.authn.CompleteLogin(context.Background(), state, "code-1")
		require.Error(t, err)
	})

	t.Run("unknown state is rejected", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		_, _, err := f.authn.CompleteLogin(context.Background(), "no-such-state", "code-1")
		require.Error(t, err)
	})

	t.Run("provider rejection propagates", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		f.provider.exchangeErr = errs.ErrCallbackRejected

		authURL, err := f.authn.BeginLogin("")
		require.NoError(t, err)

		_, _, err = f.authn.CompleteLogin(context.Background(), stateFromAuthURL(t, authURL), "code-1")
		require.ErrorIs(t, err, errs.ErrCallbackRejected)
	})
}

func TestCheckSession(t *testing.T) {
	t.Run("fresh session is valid", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		session := sessions.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: utils.Ptr(f.now.Add(time.Hour).Unix())}

		status, _, err := f.authn.CheckSession(context.Background(), "s1", session, true)
		require.NoError(t, err)
		require.Equal(t, authn.StatusValid, status)
	})

	t.Run("expired session is invalid even when refresh is requested", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		session := sessions.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: utils.Ptr(f.now.Add(-time.Minute).Unix())}

		status, _, err := f.authn.CheckSession(context.Background(), "s1", session, true)
		require.NoError(t, err)
		require.Equal(t, authn.StatusInvalid, status)
	})

	t.Run("near expiry without refresh stays valid", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		session := sessions.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: utils.Ptr(f.now.Add(10 * time.Second).Unix())}

		status, _, err := f.authn.CheckSession(context.Background(), "s1", session, false)
		require.NoError(t, err)
		require.Equal(t, authn.StatusValid, status)
	})

	t.Run("near expiry with refresh replaces and persists the tokens", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"new-a","refresh_token":"new-r","expires_in":3600}`))
		}))
		defer ts.Close()

		f := setupAuthenticator(t, ts.URL)
		session := sessions.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: utils.Ptr(f.now.Add(10 * time.Second).Unix())}
		require.NoError(t, f.sessions.Upsert("s1", session))

		status, refreshed, err := f.authn.CheckSession(context.Background(), "s1", session, true)
		require.NoError(t, err)
		require.Equal(t, authn.StatusRefreshed, status)
		require.Equal(t, "new-a", refreshed.AccessToken)
		require.Equal(t, "new-r", refreshed.RefreshToken)
		require.Equal(t, f.now.Unix()+3600, *refreshed.ExpiresAt)

		stored, err := f.sessions.Get("s1")
		require.NoError(t, err)
		require.Equal(t, "new-a", stored.AccessToken)
	})

	t.Run("failed refresh invalidates and leaves the stored session untouched", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`invalid_grant`))
		}))
		defer ts.Close()

		f := setupAuthenticator(t, ts.URL)
		session := sessions.Session{AccessToken: "a", RefreshToken: "r", ExpiresAt: utils.Ptr(f.now.Add(10 * time.Second).Unix())}
		require.NoError(t, f.sessions.Upsert("s1", session))

		status, _, err := f.authn.CheckSession(context.Background(), "s1", session, true)
		require.Error(t, err)
		require.Equal(t, authn.StatusInvalid, status)

		stored, err := f.sessions.Get("s1")
		require.NoError(t, err)
		require.Equal(t, "a", stored.AccessToken)
		require.Equal(t, "r", stored.RefreshToken)
	})
}

func TestLogout(t *testing.T) {
	t.Run("session is deleted before anything else", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		require.NoError(t, f.sessions.Upsert("s1", f.provider.session))

		f.authn.Logout("s1", f.provider.session)

		_, err := f.sessions.Get("s1")
		require.ErrorIs(t, err, errs.ErrSessionNotFound)
	})

	t.Run("end-session endpoint produces a provider redirect", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		f.provider.metadata.EndSessionEndpoint = "https://idp.example.com/logout"

		result := f.authn.Logout("s1", f.provider.session)
		require.False(t, result.MarkLoggedOut)

		parsed, err := url.Parse(result.RedirectURL)
		require.NoError(t, err)
		require.Equal(t, "https://idp.example.com/logout", parsed.Scheme+"://"+parsed.Host+parsed.Path)
		require.Equal(t, testOrigin, parsed.Query().Get("post_logout_redirect_uri"))
		require.Equal(t, testClientID, parsed.Query().Get("client_id"))
		require.Equal(t, "id-token-1", parsed.Query().Get("id_token_hint"))
	})

	t.Run("configured logout redirect wins over the origin", func(t *testing.T) {
		t.Setenv("OIDC_REDIRECT_URI_LOGOUT", "https://portal.example.com/bye")
		f := setupAuthenticator(t, "")
		f.provider.metadata.EndSessionEndpoint = "https://idp.example.com/logout"

		result := f.authn.Logout("s1", f.provider.session)
		parsed, err := url.Parse(result.RedirectURL)
		require.NoError(t, err)
		require.Equal(t, "https://portal.example.com/bye", parsed.Query().Get("post_logout_redirect_uri"))
	})

	t.Run("no id_token_hint without an ID token", func(t *testing.T) {
		f := setupAuthenticator(t, "")
		f.provider.metadata.EndSessionEndpoint = "https://idp.example.com/logout"

		session := f.provider.session
		session.IDToken = ""
		result := f.authn.Logout("s1", session)

		parsed, err := url.Parse(result.RedirectURL)
		require.NoError(t, err)
		require.Empty(t, parsed.Query().Get("id_token_hint"))
	})

	t.Run("no end-session endpoint marks local logged-out state", func(t *testing.T) {
		f := setupAuthenticator(t, "")

		result := f.authn.Logout("s1", f.provider.session)
		require.True(t, result.MarkLoggedOut)
		require.Empty(t, result.RedirectURL)
	})
}
