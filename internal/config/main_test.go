package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func getValidConfig(t *testing.T) Config {
	t.Helper()
	upstreamURL, err := url.Parse("https://api.feastline.dev")
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		RunningEnvironment: Production,
		Server:             ServerConfig{Host: "0.0.0.0", Port: 8080},
		Upstream:           UpstreamConfig{BaseURL: upstreamURL, TimeoutSeconds: 30},
		Sessions: SessionsConfig{
			IdleSessionTTLSeconds: 14400,
			MaxSessionTTLSeconds:  86400,
			CookieName:            "_feast_session",
		},
		Tokens: TokensConfig{
			RefreshEnabled:         true,
			AccessFallbackMinutes:  25,
			RefreshFallbackMinutes: 10080,
			ExpiryMarginMinutes:    3,
			RedirectDelaySeconds:   2,
		},
		Routes: RoutesConfig{
			HomeRoute:           "/home",
			LoginRoute:          "/login",
			ForbiddenRoute:      "/403",
			NotFoundRoute:       "/404",
			VendorPathPrefix:    "/vendor",
			VendorRegisterRoute: "/vendor/register",
			AuthRouteMode:       AuthRouteModeStatic,
			StaticSuperRole:     "admin",
			ConstantRoutes:      []Route{{Path: "/login"}, {Path: "/403"}, {Path: "/404"}},
			AuthRoutes: []Route{
				{Path: "/home"},
				{Path: "/manage/users", Roles: []string{"admin"}},
				{Path: "/vendor/items", Roles: []string{"vendor"}},
			},
		},
		Redis: RedisConfig{Type: DBTypeRedis, Addresses: []string{"localhost:6379"}},
	}
}

func TestValidConfig(t *testing.T) {
	config := getValidConfig(t)

	err := config.Validate()

	assert.NoError(t, err)
}

func TestInvalidSessionsConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Sessions.IdleSessionTTLSeconds = 0

	err := config.Validate()

	assert.Error(t, err)
}

func TestInvalidTokensConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Tokens.Encryption = TokenEncryptionConfig{Enabled: true, SecretKey: "too-short"}

	err := config.Validate()

	assert.Error(t, err)
}

func TestInvalidUpstreamConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Upstream.BaseURL = nil

	err := config.Validate()

	assert.Error(t, err)
}

func TestInvalidRoutesConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Routes.AuthRouteMode = "whatever"

	err := config.Validate()

	assert.Error(t, err)
}

func TestMockRedisRejectedInProduction(t *testing.T) {
	config := getValidConfig(t)
	config.Redis = RedisConfig{Type: DBTypeRedisMock}

	err := config.Validate()

	assert.Error(t, err)
}
