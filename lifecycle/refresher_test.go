package lifecycle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/internal/utils"
	"github.com/finport/go-oidc-gateway/lifecycle"
	"github.com/finport/go-oidc-gateway/sessions"
)

func testSession() sessions.Session {
	return sessions.Session{
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    utils.Ptr(int64(1000)),
	}
}

func TestRefresh(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("successful refresh uses expires_in relative to now", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			require.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
			require.Equal(t, "client-1", r.PostForm.Get("client_id"))
			require.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
			require.Equal(t, "openid profile", r.PostForm.Get("scope"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":3600}`))
		}))
		defer ts.Close()

		r := lifecycle.NewRefresher(ts.URL, "client-1", "secret-1", "openid profile", 5*time.Second,
			lifecycle.WithNowTime(func() time.Time { return now }))

		triple, err := r.Refresh(context.Background(), "session-1", testSession())
		require.NoError(t, err)
		require.Equal(t, "new-access", triple.AccessToken)
		require.Equal(t, "new-refresh", triple.RefreshToken)
		require.NotNil(t, triple.ExpiresAt)
		require.Equal(t, now.Unix()+3600, *triple.ExpiresAt)
	})

	t.Run("absolute expires_at wins over expires_in", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"b","expires_in":3600,"expires_at":12345}`))
		}))
		defer ts.Close()

		r := lifecycle.NewRefresher(ts.URL, "client-1", "secret-1", "", 5*time.Second)

		triple, err := r.Refresh(context.Background(), "session-1", testSession())
		require.NoError(t, err)
		require.Equal(t, int64(12345), *triple.ExpiresAt)
	})

	t.Run("no expiry advertised leaves ExpiresAt nil", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"b"}`))
		}))
		defer ts.Close()

		r := lifecycle.NewRefresher(ts.URL, "client-1", "secret-1", "", 5*time.Second)

		triple, err := r.Refresh(context.Background(), "session-1", testSession())
		require.NoError(t, err)
		require.Nil(t, triple.ExpiresAt)
	})

	t.Run("provider rejection carries the provider message", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`invalid_grant`))
		}))
		defer ts.Close()

		r := lifecycle.NewRefresher(ts.URL, "client-1", "secret-1", "", 5*time.Second)

		_, err := r.Refresh(context.Background(), "session-1", testSession())
		require.Error(t, err)
		require.True(t, errs.Is(err, errs.ErrRefreshRejected))

		var rejected *errs.RefreshRejectedError
		require.True(t, errs.As(err, &rejected))
		require.Equal(t, "invalid_grant", rejected.ProviderMessage)
	})

	t.Run("missing refresh token fails before calling the provider", func(t *testing.T) {
		r := lifecycle.NewRefresher("http://localhost:0", "client-1", "secret-1", "", time.Second)

		session := testSession()
		session.RefreshToken = ""
		_, err := r.Refresh(context.Background(), "session-1", session)
		require.ErrorIs(t, err, errs.ErrMissingRefreshContext)
	})

	t.Run("missing token endpoint fails before calling the provider", func(t *testing.T) {
		r := lifecycle.NewRefresher("", "client-1", "secret-1", "", time.Second)

		_, err := r.Refresh(context.Background(), "session-1", testSession())
		require.ErrorIs(t, err, errs.ErrMissingRefreshContext)
	})

	t.Run("concurrent refreshes share one provider call", func(t *testing.T) {
		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write([]byte(`{"access_token":"shared","refresh_token":"shared-r","expires_in":3600}`))
		}))
		defer ts.Close()

		r := lifecycle.NewRefresher(ts.URL, "client-1", "secret-1", "", 5*time.Second)

		const workers = 8
		var wg sync.WaitGroup
		results := make([]lifecycle.TokenTriple, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				triple, err := r.Refresh(context.Background(), "session-1", testSession())
				require.NoError(t, err)
				results[i] = triple
			}(i)
		}
		wg.Wait()

		require.Equal(t, int32(1), calls.Load())
		for _, triple := range results {
			require.Equal(t, "shared", triple.AccessToken)
		}
	})

	t.Run("cancelled request context does not cancel the provider call", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(30 * time.Millisecond)
			_, _ = w.Write([]byte(`{"access_token":"late","refresh_token":"late-r"}`))
		}))
		defer ts.Close()

		r := lifecycle.NewRefresher(ts.URL, "client-1", "secret-1", "", 5*time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(5 * time.Millisecond)
			cancel()
		}()

		triple, err := r.Refresh(ctx, "session-1", testSession())
		require.NoError(t, err)
		require.Equal(t, "late", triple.AccessToken)
	})
}
