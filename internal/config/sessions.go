package config

import "fmt"

type SessionsConfig struct {
	IdleSessionTTLSeconds int
	MaxSessionTTLSeconds  int
	CookieName            string
}

func (c *SessionsConfig) Validate() error {
	if c.IdleSessionTTLSeconds <= 0 {
		return fmt.Errorf("idle session TTL seconds must be greater than zero, got %d", c.IdleSessionTTLSeconds)
	}
	if c.MaxSessionTTLSeconds > 0 && c.IdleSessionTTLSeconds > c.MaxSessionTTLSeconds {
		return fmt.Errorf(
			"max session TTL seconds (%d) cannot be less than idle session TTL seconds (%d)",
			c.MaxSessionTTLSeconds,
			c.IdleSessionTTLSeconds,
		)
	}
	if c.CookieName == "" {
		return fmt.Errorf("a session cookie name must be provided")
	}
	return nil
}
