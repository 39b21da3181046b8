package login

import (
	"fmt"

	"github.com/feastline/feast-gateway/internal/sessions"
	"github.com/feastline/feast-gateway/internal/upstream"
	"github.com/labstack/echo/v4"
)

// LoginServer exposes the auth and account endpoints of the gateway. Token
// endpoints run through the coordinator so that credentials never leave the
// gateway; account endpoints are thin pass-throughs to the upstream.
type LoginServer struct {
	coordinator    *Coordinator
	upstream       *upstream.Client
	sessionHandler *sessions.SessionHandler
}

func (l *LoginServer) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	auth := server.Group("/auth")
	auth.Use(commonMiddlewares...)
	auth.POST("/login", l.PostLogin, NoCaching)
	auth.POST("/login/email", l.PostLoginWithEmailCode, NoCaching)
	auth.POST("/refresh", l.PostRefresh, NoCaching)
	auth.POST("/logout", l.PostLogout, NoCaching)
	auth.POST("/register", l.PostRegister)
	auth.POST("/send-email-code", l.PostSendEmailCode)
	auth.POST("/reset-password", l.PostResetPassword)

	user := server.Group("/user")
	user.Use(commonMiddlewares...)
	user.GET("/me", l.GetProfile)
	user.PUT("/me", l.PutProfile)
	user.PUT("/me/password", l.PutPassword)

	session := server.Group("/session")
	session.Use(commonMiddlewares...)
	session.GET("/tabs", l.GetTabs)
	session.PUT("/tabs", l.PutTabs)

	store := server.Group("/store")
	store.Use(commonMiddlewares...)
	store.GET("/my/status", l.GetVendorStoreStatus)
}

type LoginServerOption func(*LoginServer) error

func WithCoordinator(co *Coordinator) LoginServerOption {
	return func(l *LoginServer) error {
		l.coordinator = co
		return nil
	}
}

func WithClient(client *upstream.Client) LoginServerOption {
	return func(l *LoginServer) error {
		l.upstream = client
		return nil
	}
}

func WithSessionHandler(sh *sessions.SessionHandler) LoginServerOption {
	return func(l *LoginServer) error {
		l.sessionHandler = sh
		return nil
	}
}

func NewLoginServer(options ...LoginServerOption) (*LoginServer, error) {
	server := LoginServer{}
	for _, opt := range options {
		if err := opt(&server); err != nil {
			return nil, err
		}
	}
	if server.coordinator == nil {
		return nil, fmt.Errorf("login server coordinator not provided")
	}
	if server.upstream == nil {
		return nil, fmt.Errorf("login server upstream client not provided")
	}
	if server.sessionHandler == nil {
		return nil, fmt.Errorf("login server session handler not provided")
	}
	return &server, nil
}
