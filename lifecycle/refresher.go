package lifecycle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/sessions"
)

// TokenTriple is the result of a successful refresh. The caller swaps it into
// the stored session in one step; a failed refresh produces no triple and the
// prior session state stays untouched.
type TokenTriple struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *int64
}

// Refresher performs the refresh_token grant. Concurrent refreshes for the
// same session share one in-flight provider call: some providers invalidate a
// refresh token on use, so duplicates are not merely wasteful.
type Refresher struct {
	tokenEndpoint string
	clientID      string
	clientSecret  string
	scope         string
	httpClient    *http.Client
	group         singleflight.Group
	nowTime       func() time.Time
}

// RefresherOption modifies the Refresher instance.
type RefresherOption func(*Refresher)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) RefresherOption {
	return func(r *Refresher) {
		r.nowTime = nowFunc
	}
}

// WithHTTPClient sets a custom HTTP client for token endpoint calls.
func WithHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) {
		r.httpClient = c
	}
}

// NewRefresher creates a refresher for the given token endpoint and client
// credentials. The timeout applies to every provider call.
func NewRefresher(tokenEndpoint, clientID, clientSecret, scope string, timeout time.Duration, options ...RefresherOption) *Refresher {
	r := &Refresher{
		tokenEndpoint: tokenEndpoint,
		clientID:      clientID,
		clientSecret:  clientSecret,
		scope:         scope,
		httpClient:    &http.Client{Timeout: timeout},
		nowTime:       time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// tokenEndpointResponse is the provider's answer to a refresh grant.
type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    *int64 `json:"expires_in,omitempty"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
}

// Refresh issues one refresh_token grant for the session identified by key.
// Callers racing on the same key wait for the in-flight call and share its
// outcome. The provider call itself is never cancelled mid-flight by an
// abandoned request; its result is simply discarded by the caller.
func (r *Refresher) Refresh(ctx context.Context, key string, session sessions.Session) (TokenTriple, error) {
	if session.AccessToken == "" || session.RefreshToken == "" || r.tokenEndpoint == "" {
		return TokenTriple{}, errs.ErrMissingRefreshContext
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		return r.refreshGrant(ctx, session.RefreshToken)
	})
	if err != nil {
		return TokenTriple{}, err
	}
	return result.(TokenTriple), nil
}

func (r *Refresher) refreshGrant(ctx context.Context, refreshToken string) (TokenTriple, error) {
	form := url.Values{
		"client_id":     {r.clientID},
		"client_secret": {r.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {r.scope},
	}

	// Detached from the request context: abandoning the request must not
	// leave the provider with a half-applied grant. The client timeout still
	// bounds the call.
	req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodPost, r.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenTriple{}, &errs.RefreshRejectedError{ProviderMessage: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return TokenTriple{}, &errs.RefreshRejectedError{ProviderMessage: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return TokenTriple{}, &errs.RefreshRejectedError{ProviderMessage: strings.TrimSpace(string(body))}
	}

	var tokenResp tokenEndpointResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return TokenTriple{}, &errs.RefreshRejectedError{ProviderMessage: err.Error()}
	}

	return TokenTriple{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    r.expiresAt(tokenResp),
	}, nil
}

// expiresAt prefers the provider's absolute expires_at, falls back to
// now+expires_in, and stays absent when the provider advertises neither.
func (r *Refresher) expiresAt(resp tokenEndpointResponse) *int64 {
	if resp.ExpiresAt != nil {
		return resp.ExpiresAt
	}
	if resp.ExpiresIn != nil {
		at := r.nowTime().Unix() + *resp.ExpiresIn
		return &at
	}
	return nil
}
