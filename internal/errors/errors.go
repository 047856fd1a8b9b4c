package errors

import (
	"errors"
	"fmt"
)

// Common error types for the gateway
var (
	// Stateless token validation errors
	ErrMalformedToken   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")
	ErrAudienceMismatch = errors.New("token audience mismatch")
	ErrIssuerMismatch   = errors.New("token issuer mismatch")

	// Token lifecycle errors
	ErrMissingRefreshContext = errors.New("missing refresh context")
	ErrRefreshRejected       = errors.New("refresh rejected")

	// Login errors
	ErrCallbackRejected = errors.New("callback rejected")

	// Tenancy authorization errors
	ErrRouteNotFound = errors.New("route not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// MisdirectedError denies a request addressed to the wrong tenant partition.
// It carries the request's own route parameters so an automated caller can
// retry against the correct partition; it never carries the authenticated
// identity's tenant.
type MisdirectedError struct {
	TenantID    string `json:"tenantId"`
	ChannelType string `json:"channelType"`
}

func (e *MisdirectedError) Error() string {
	return fmt.Sprintf("misdirected request: tenant %q channel %q", e.TenantID, e.ChannelType)
}

// RefreshRejectedError carries the provider's raw rejection message so an
// explicit refresh request can pass it through for diagnostics.
type RefreshRejectedError struct {
	ProviderMessage string
}

func (e *RefreshRejectedError) Error() string {
	if e.ProviderMessage == "" {
		return ErrRefreshRejected.Error()
	}
	return fmt.Sprintf("refresh rejected: %s", e.ProviderMessage)
}

func (*RefreshRejectedError) Unwrap() error { return ErrRefreshRejected }

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
