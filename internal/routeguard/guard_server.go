package routeguard

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/feastline/feast-gateway/internal/notify"
	"github.com/feastline/feast-gateway/internal/sessions"
	"github.com/labstack/echo/v4"
)

// GuardServer exposes the navigation decisions to the web console. The
// console asks before each navigation; a pending login redirect from a
// failed refresh preempts the normal evaluation.
type GuardServer struct {
	guard          *Guard
	sessionHandler *sessions.SessionHandler
	notifier       *notify.QueueNotifier
	loginRoute     string
}

type GuardServerOption func(*GuardServer) error

func WithGuard(guard *Guard) GuardServerOption {
	return func(s *GuardServer) error {
		s.guard = guard
		s.loginRoute = guard.config.LoginRoute
		return nil
	}
}

func WithSessionHandler(sh *sessions.SessionHandler) GuardServerOption {
	return func(s *GuardServer) error {
		s.sessionHandler = sh
		return nil
	}
}

func WithNotifier(notifier *notify.QueueNotifier) GuardServerOption {
	return func(s *GuardServer) error {
		s.notifier = notifier
		return nil
	}
}

func NewGuardServer(options ...GuardServerOption) (*GuardServer, error) {
	server := GuardServer{}
	for _, opt := range options {
		if err := opt(&server); err != nil {
			return nil, err
		}
	}
	if server.guard == nil {
		return nil, fmt.Errorf("guard server needs a guard")
	}
	if server.sessionHandler == nil {
		return nil, fmt.Errorf("guard server needs a session handler")
	}
	return &server, nil
}

func (s *GuardServer) RegisterHandlers(server *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	group := server.Group("/navigation")
	group.Use(commonMiddlewares...)
	group.GET("/decision", s.GetDecision)
	group.GET("/toasts", s.GetToasts)
	pages := server.Group("/pages")
	pages.Use(commonMiddlewares...)
	pages.GET("/login", s.GetLoginPage)
	pages.GET("/forbidden", s.GetForbiddenPage)
	pages.GET("/not-found", s.GetNotFoundPage)
	pages.GET("/vendor-register", s.GetVendorRegisterPage)
}

// GetLoginPage renders the fallback sign-in page for clients that follow a
// guard redirect without the web console loaded.
func (s *GuardServer) GetLoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, "login", map[string]any{
		"redirect": c.QueryParam("redirect"),
		"message":  c.QueryParam("message"),
	})
}

func (s *GuardServer) GetForbiddenPage(c echo.Context) error {
	return c.Render(http.StatusForbidden, "forbidden", map[string]any{"home": s.guard.config.HomeRoute})
}

func (s *GuardServer) GetNotFoundPage(c echo.Context) error {
	return c.Render(http.StatusNotFound, "notfound", map[string]any{"home": s.guard.config.HomeRoute})
}

func (s *GuardServer) GetVendorRegisterPage(c echo.Context) error {
	return c.Render(http.StatusOK, "vendor_register", map[string]any{"redirect": c.QueryParam("redirect")})
}

func (s *GuardServer) GetDecision(c echo.Context) error {
	session, err := s.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	rawTarget := c.QueryParam("to")
	if rawTarget == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "a navigation target is required")
	}
	target, err := url.Parse(rawTarget)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the navigation target")
	}

	if s.notifier != nil && s.notifier.ConsumeLoginRedirect(session.ID) {
		s.guard.Reset(session.ID)
		return c.JSON(http.StatusOK, Decision{Action: ActionRedirect, To: s.loginRoute})
	}

	decision, err := s.guard.Evaluate(
		c.Request().Context(),
		session.ID,
		target.Path,
		target.Query(),
		c.QueryParam("from"),
	)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

// GetToasts drains the queued notifications of the session so the console
// can render them.
func (s *GuardServer) GetToasts(c echo.Context) error {
	session, err := s.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	toasts := []notify.Toast{}
	if s.notifier != nil {
		toasts = append(toasts, s.notifier.DrainToasts(session.ID)...)
	}
	return c.JSON(http.StatusOK, toasts)
}
