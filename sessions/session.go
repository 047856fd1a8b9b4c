package sessions

import "time"

// UserInfo holds the identity claims resolved at login.
type UserInfo struct {
	Subject string `json:"sub"`
	Tenant  string `json:"tenant,omitempty"`
	Channel string `json:"channel,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Session represents one authenticated browser session. It is created at the
// login callback, mutated only through SetTokens after a successful refresh,
// and destroyed at logout.
type Session struct {
	UserInfo UserInfo

	// Token triple. The three fields are replaced together or not at all;
	// a failed refresh must leave them untouched.
	AccessToken  string
	RefreshToken string
	ExpiresAt    *int64 // epoch seconds; nil when the provider advertises no expiry

	// IDToken is retained only for the provider end-session hint at logout.
	IDToken string

	CreatedAt time.Time
}

// SetTokens replaces the token triple in one step.
func (s *Session) SetTokens(accessToken, refreshToken string, expiresAt *int64) {
	s.AccessToken = accessToken
	s.RefreshToken = refreshToken
	s.ExpiresAt = expiresAt
}
