// Package token verifies stateless bearer tokens presented on machine calls.
package token

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	errs "github.com/finport/go-oidc-gateway/internal/errors"
	"github.com/finport/go-oidc-gateway/token/keys"
)

// Validator checks a raw bearer token's structure, signature and claims
// against the trust configuration. It has no knowledge of routes; public
// routes bypass it upstream.
type Validator struct {
	store    *keys.Store
	issuer   string
	audience string
	nowTime  func() time.Time
}

// ValidatorOption modifies the Validator instance.
type ValidatorOption func(*Validator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowTime = nowFunc
	}
}

// NewValidator creates a validator backed by the given key store. Issuer and
// audience come from the trust configuration; an empty value skips that check.
func NewValidator(store *keys.Store, issuer, audience string, options ...ValidatorOption) *Validator {
	v := &Validator{
		store:    store,
		issuer:   issuer,
		audience: audience,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate verifies a raw token and returns its claims. Checks run in a fixed
// order (structure, signature, expiry, audience, issuer) and each failure maps
// to one sentinel from internal/errors.
func (v *Validator) Validate(rawToken string) (*BearerClaims, error) {
	parser := jwtlib.NewParser(jwtlib.WithoutClaimsValidation())

	parsed, err := parser.Parse(rawToken, v.store.VerificationKey)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", errs.ErrMalformedToken, err)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrSignatureInvalid, err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errs.ErrMalformedToken
	}

	// Expiry is required; the boundary instant counts as expired.
	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errs.ErrTokenExpired
	}
	if !exp.After(v.nowTime()) {
		return nil, errs.ErrTokenExpired
	}

	if v.audience != "" {
		audiences, err := mapClaims.GetAudience()
		if err != nil {
			return nil, errs.ErrAudienceMismatch
		}
		found := false
		for _, aud := range audiences {
			if aud == v.audience {
				found = true
				break
			}
		}
		if !found {
			return nil, errs.ErrAudienceMismatch
		}
	}

	if v.issuer != "" {
		iss, err := mapClaims.GetIssuer()
		if err != nil || iss != v.issuer {
			return nil, errs.ErrIssuerMismatch
		}
	}

	return claimsFromMap(mapClaims), nil
}
