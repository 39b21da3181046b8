package tokens

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fallbackWindow = 25 * time.Minute

func tokenWithPayload(t *testing.T, payload string) string {
	t.Helper()
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return "header." + encoded + ".signature"
}

func TestDecodeExpiryFromClaim(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	token := tokenWithPayload(t, fmt.Sprintf(`{"sub":"42","exp":%d}`, exp))

	decoded := DecodeExpiry(token, fallbackWindow)

	require.Equal(t, exp, decoded.Unix())
}

func TestDecodeExpiryFallsBack(t *testing.T) {
	malformed := []string{
		"",
		"justonechunk",
		"two.chunks-but-not-base64-!!!",
		tokenWithPayload(t, "not json at all"),
		tokenWithPayload(t, `{"sub":"42"}`),
		tokenWithPayload(t, `{"exp":"not-a-number"}`),
	}

	for _, token := range malformed {
		before := time.Now()
		decoded := DecodeExpiry(token, fallbackWindow)
		after := time.Now()

		assert.False(t, decoded.Before(before), "token %q", token)
		assert.False(t, decoded.After(after.Add(fallbackWindow)), "token %q", token)
	}
}

func TestDecodeExpiryTwoSegments(t *testing.T) {
	// the upstream may hand out unsigned tokens in development mode
	encoded := base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000}`))
	token := "header." + encoded

	decoded := DecodeExpiry(token, fallbackWindow)

	assert.Equal(t, int64(1700000000), decoded.Unix())
}

func TestDecodeExpiryPaddedSegment(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Unix()
	// standard base64 with padding instead of the raw url alphabet
	encoded := base64.URLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp)))
	token := "header." + encoded + ".sig"

	decoded := DecodeExpiry(token, fallbackWindow)

	assert.Equal(t, exp, decoded.Unix())
}
