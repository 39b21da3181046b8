package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmptyPairIsExpired(t *testing.T) {
	pair := EmptyCredentialPair()

	assert.True(t, pair.Empty())
	assert.True(t, pair.AccessExpired())
	assert.True(t, pair.RefreshExpired())
	assert.Equal(t, "", pair.ValidAccessToken())
	assert.Equal(t, DefaultTokenType, pair.TokenType)
}

func TestUnknownExpiryIsLenient(t *testing.T) {
	pair := CredentialPair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    DefaultTokenType,
	}

	assert.False(t, pair.AccessExpired())
	assert.False(t, pair.RefreshExpired())
	assert.Equal(t, "access", pair.ValidAccessToken())
	assert.False(t, pair.AccessExpiresSoon(time.Hour))
}

func TestAccessExpiry(t *testing.T) {
	pair := CredentialPair{
		AccessToken:      "access",
		RefreshToken:     "refresh",
		AccessExpiresAt:  time.Now().Add(-time.Minute),
		RefreshExpiresAt: time.Now().Add(time.Hour),
	}

	assert.True(t, pair.AccessExpired())
	assert.False(t, pair.RefreshExpired())
	assert.Equal(t, "", pair.ValidAccessToken())
}

func TestAccessExpiresSoon(t *testing.T) {
	pair := CredentialPair{
		AccessToken:     "access",
		AccessExpiresAt: time.Now().Add(2 * time.Minute),
	}

	assert.True(t, pair.AccessExpiresSoon(5*time.Minute))
	assert.False(t, pair.AccessExpiresSoon(time.Minute))
	assert.False(t, pair.AccessExpired())
}

func TestStringRedactsTokens(t *testing.T) {
	pair := CredentialPair{
		ID:           "cred-1",
		AccessToken:  "topsecret",
		RefreshToken: "alsosecret",
		TokenType:    DefaultTokenType,
	}

	printed := pair.String()

	assert.NotContains(t, printed, "topsecret")
	assert.NotContains(t, printed, "alsosecret")
	assert.Contains(t, printed, "cred-1")
}
