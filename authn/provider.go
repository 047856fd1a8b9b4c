package authn

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/sessions"
)

// Metadata mirrors the fields the gateway needs from the provider's discovery
// document.
type Metadata struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
	EndSessionEndpoint    string
	JWKSURI               string
}

// Provider is the identity-provider client this package requires. The full
// OIDC discovery and key-rotation machinery stays behind this contract.
type Provider interface {
	Metadata() Metadata
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (sessions.Session, error)
}

// discoveryClaims are the extra discovery-document fields go-oidc does not
// surface directly.
type discoveryClaims struct {
	TokenEndpoint      string `json:"token_endpoint"`
	EndSessionEndpoint string `json:"end_session_endpoint"`
	JWKSURI            string `json:"jwks_uri"`
}

// OIDCProvider implements Provider on top of coreos/go-oidc and x/oauth2.
type OIDCProvider struct {
	provider   *oidc.Provider
	verifier   *oidc.IDTokenVerifier
	oauth2Cfg  oauth2.Config
	metadata   Metadata
	httpClient *http.Client
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider discovers the issuer and prepares the code-exchange client.
// Every provider call made through it carries the configured timeout.
func NewOIDCProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURI string, scopes []string, timeout time.Duration) (*OIDCProvider, error) {
	httpClient := &http.Client{Timeout: timeout}
	ctx = oidc.ClientContext(ctx, httpClient)

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[NewOIDCProvider] issuer discovery")
	}

	var extra discoveryClaims
	if err := provider.Claims(&extra); err != nil {
		return nil, errors.Wrap(err, "[NewOIDCProvider] discovery claims")
	}

	return &OIDCProvider{
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		oauth2Cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		metadata: Metadata{
			AuthorizationEndpoint: provider.Endpoint().AuthURL,
			TokenEndpoint:         extra.TokenEndpoint,
			EndSessionEndpoint:    extra.EndSessionEndpoint,
			JWKSURI:               extra.JWKSURI,
		},
		httpClient: httpClient,
	}, nil
}

func (p *OIDCProvider) Metadata() Metadata {
	return p.metadata
}

func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth2Cfg.AuthCodeURL(state, oidc.Nonce(nonce))
}

// identityClaims are the ID-token claims turned into session user info.
type identityClaims struct {
	Nonce   string `json:"nonce"`
	Sub     string `json:"sub"`
	Tenant  string `json:"tenant"`
	Channel string `json:"channel"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// Exchange swaps the authorization code for tokens, verifies the ID token and
// nonce, and builds the identity session. Any provider denial, including a
// timeout, surfaces as a callback rejection.
func (p *OIDCProvider) Exchange(ctx context.Context, code, nonce string) (sessions.Session, error) {
	ctx = oidc.ClientContext(ctx, p.httpClient)

	oauth2Token, err := p.oauth2Cfg.Exchange(ctx, code)
	if err != nil {
		return sessions.Session{}, errs.Wrapf(errs.ErrCallbackRejected, "token exchange failed: %v", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return sessions.Session{}, errs.Wrapf(errs.ErrCallbackRejected, "no ID token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return sessions.Session{}, errs.Wrapf(errs.ErrCallbackRejected, "ID token verification failed: %v", err)
	}

	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return sessions.Session{}, errs.Wrapf(errs.ErrCallbackRejected, "failed to extract claims: %v", err)
	}
	if claims.Nonce != nonce {
		return sessions.Session{}, errs.Wrapf(errs.ErrCallbackRejected, "nonce mismatch")
	}

	session := sessions.Session{
		UserInfo: sessions.UserInfo{
			Subject: claims.Sub,
			Tenant:  claims.Tenant,
			Channel: claims.Channel,
			Name:    claims.Name,
			Email:   claims.Email,
		},
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		IDToken:      rawIDToken,
		CreatedAt:    time.Now(),
	}
	if !oauth2Token.Expiry.IsZero() {
		at := oauth2Token.Expiry.Unix()
		session.ExpiresAt = &at
	}
	return session, nil
}
