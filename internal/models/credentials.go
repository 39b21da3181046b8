package models

import (
	"fmt"
	"time"
)

// DefaultTokenType is the token type committed when the upstream does not
// provide one.
const DefaultTokenType = "bearer"

// CredentialPair holds the access and refresh tokens of one authenticated
// session together with their decoded expiry instants. It is owned by the
// token store and replaced wholesale on every successful login or refresh.
//
// The expiry instants come from an unverified token payload and must never
// be used for authorization decisions - they only schedule refreshes.
type CredentialPair struct {
	ID               string
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// EmptyCredentialPair returns the sentinel value a session holds when it is
// logged out.
func EmptyCredentialPair() CredentialPair {
	return CredentialPair{TokenType: DefaultTokenType}
}

func (c CredentialPair) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// AccessExpired reports whether the access token can no longer be used. A
// missing token counts as expired. An unknown (zero) expiry counts as not
// expired - deliberate leniency for tokens whose payload could not be
// decoded.
func (c CredentialPair) AccessExpired() bool {
	if c.AccessToken == "" {
		return true
	}
	if c.AccessExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(c.AccessExpiresAt)
}

// RefreshExpired applies the same rule to the refresh token.
func (c CredentialPair) RefreshExpired() bool {
	if c.RefreshToken == "" {
		return true
	}
	if c.RefreshExpiresAt.IsZero() {
		return false
	}
	return !time.Now().Before(c.RefreshExpiresAt)
}

// ValidAccessToken returns the access token only when it is present and not
// expired, otherwise the empty string.
func (c CredentialPair) ValidAccessToken() string {
	if c.AccessToken == "" || c.AccessExpired() {
		return ""
	}
	return c.AccessToken
}

// AccessExpiresSoon reports whether the access token expires within the
// given margin. Tokens with unknown expiry never expire soon.
func (c CredentialPair) AccessExpiresSoon(margin time.Duration) bool {
	if c.AccessToken == "" || c.AccessExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(c.AccessExpiresAt)
}

// String implements the Stringer interface for printing the pair in logs
func (c CredentialPair) String() string {
	return fmt.Sprintf(
		"CredentialPair<ID: %s, AccessToken: redacted, RefreshToken: redacted, Type: %s, AccessExpiresAt: %s, RefreshExpiresAt: %s>",
		c.ID,
		c.TokenType,
		c.AccessExpiresAt,
		c.RefreshExpiresAt,
	)
}
