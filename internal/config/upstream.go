package config

import (
	"fmt"
	"net/url"
	"time"
)

// UpstreamConfig points the gateway at the food-ordering REST API.
type UpstreamConfig struct {
	BaseURL        *url.URL
	TimeoutSeconds int
}

func (c UpstreamConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *UpstreamConfig) Validate() error {
	if c.BaseURL == nil || c.BaseURL.Host == "" {
		return fmt.Errorf("an upstream base URL must be provided")
	}
	if c.BaseURL.Scheme != "http" && c.BaseURL.Scheme != "https" {
		return fmt.Errorf("unsupported upstream URL scheme %q", c.BaseURL.Scheme)
	}
	return nil
}
