// Package tokens decodes expiry instants out of bearer tokens issued by the
// upstream. No signature or integrity verification is ever performed here:
// the decoded expiry is a refresh-scheduling heuristic and must never feed
// an authorization decision.
package tokens

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type expiryClaim struct {
	Exp *float64 `json:"exp"`
}

// DecodeExpiry extracts the expiry instant embedded in a JWT-shaped token.
// Any token that cannot be decoded (fewer than two segments, malformed
// base64, invalid JSON, missing exp claim) yields now + fallbackWindow
// instead of an error, so that a malformed token still gets a usable
// refresh schedule.
func DecodeExpiry(token string, fallbackWindow time.Duration) time.Time {
	fallback := time.Now().Add(fallbackWindow)

	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return fallback
	}
	// the jwt parser rejects padded segments, but some upstream builds pad
	payload, err := jwt.DecodeSegment(strings.TrimRight(parts[1], "="))
	if err != nil {
		return fallback
	}
	var claim expiryClaim
	if err := json.Unmarshal(payload, &claim); err != nil {
		return fallback
	}
	if claim.Exp == nil {
		return fallback
	}
	sec := int64(*claim.Exp)
	return time.Unix(sec, int64((*claim.Exp-float64(sec))*float64(time.Second)))
}
