package config

import (
	"fmt"
	"time"
)

type TokenEncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

// TokensConfig controls the credential lifecycle: whether the deployment
// issues refresh tokens at all, the fallback expiry windows used when a
// token payload cannot be decoded, and the margin at which a token counts
// as expiring soon.
type TokensConfig struct {
	RefreshEnabled         bool
	AccessFallbackMinutes  int
	RefreshFallbackMinutes int
	ExpiryMarginMinutes    int
	RedirectDelaySeconds   int
	Encryption             TokenEncryptionConfig
}

func (c TokensConfig) AccessFallback() time.Duration {
	return time.Duration(c.AccessFallbackMinutes) * time.Minute
}

func (c TokensConfig) RefreshFallback() time.Duration {
	return time.Duration(c.RefreshFallbackMinutes) * time.Minute
}

func (c TokensConfig) ExpiryMargin() time.Duration {
	return time.Duration(c.ExpiryMarginMinutes) * time.Minute
}

// RedirectDelay is how long the gateway waits after a failed refresh before
// issuing the login redirect, so a failure notification can render first.
func (c TokensConfig) RedirectDelay() time.Duration {
	return time.Duration(c.RedirectDelaySeconds) * time.Second
}

func (c *TokensConfig) Validate() error {
	if c.AccessFallbackMinutes <= 0 {
		return fmt.Errorf("access token fallback window must be greater than zero, got %d", c.AccessFallbackMinutes)
	}
	if c.RefreshFallbackMinutes <= c.AccessFallbackMinutes {
		return fmt.Errorf(
			"refresh token fallback window (%d) must be longer than the access token one (%d)",
			c.RefreshFallbackMinutes,
			c.AccessFallbackMinutes,
		)
	}
	if c.ExpiryMarginMinutes <= 0 {
		return fmt.Errorf("token expiry margin must be greater than zero, got %d", c.ExpiryMarginMinutes)
	}
	if c.Encryption.Enabled && len(c.Encryption.SecretKey) != 32 {
		return fmt.Errorf(
			"token encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.Encryption.SecretKey),
		)
	}
	return nil
}
