package sessions

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/feastline/feast-gateway/internal/config"
	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/feastline/feast-gateway/internal/utils"
	"github.com/labstack/echo/v4"
)

// SessionHandler loads the gateway session of every request, creating one
// when the cookie is missing or the stored session expired, and writes the
// session back after the request ran so that Touch calls stick.
type SessionHandler struct {
	sessionMaker SessionMaker
	sessions     models.SessionRepository
	cookieName   string
}

func (sh *SessionHandler) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session, loadErr := sh.LoadOrCreate(c)
			if loadErr != nil {
				slog.Info(
					"SESSION MIDDLEWARE",
					"message",
					"could not load or create session",
					"error",
					loadErr,
					"requestID",
					utils.GetRequestID(c),
				)
				return loadErr
			}
			c.Set(SessionCtxKey, session)
			err := next(c)
			saveErr := sh.Save(c)
			if saveErr != nil {
				slog.Info(
					"SESSION MIDDLEWARE",
					"message",
					"could not save session",
					"sessionID",
					session.ID,
					"error",
					saveErr,
					"requestID",
					utils.GetRequestID(c),
				)
			}
			return err
		}
	}
}

func (sh *SessionHandler) Get(c echo.Context) (models.Session, error) {
	sessionRaw := c.Get(SessionCtxKey)
	if sessionRaw == nil {
		return models.Session{}, gwerrors.ErrSessionNotFound
	}
	session, ok := sessionRaw.(models.Session)
	if !ok {
		return models.Session{}, gwerrors.ErrSessionParse
	}
	return session, nil
}

func (sh *SessionHandler) Create(c echo.Context) (models.Session, error) {
	session, err := sh.sessionMaker.NewSession()
	if err != nil {
		return models.Session{}, err
	}
	c.SetCookie(&http.Cookie{
		Name:     sh.cookieName,
		Value:    session.ID,
		Secure:   true,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
	return session, nil
}

func (sh *SessionHandler) Load(c echo.Context) (models.Session, error) {
	// check if the session is already in the request context
	sessionRaw := c.Get(SessionCtxKey)
	if sessionRaw != nil {
		session, ok := sessionRaw.(models.Session)
		if !ok {
			return models.Session{}, gwerrors.ErrSessionParse
		}
		if session.Expired() {
			return models.Session{}, gwerrors.ErrSessionExpired
		}
		return session, nil
	}

	cookie, err := c.Cookie(sh.cookieName)
	if err != nil {
		if err == http.ErrNoCookie {
			return models.Session{}, gwerrors.ErrSessionNotFound
		}
		return models.Session{}, err
	}

	session, err := sh.sessions.GetSession(c.Request().Context(), cookie.Value)
	if err != nil {
		return models.Session{}, err
	}
	if session.Expired() {
		return models.Session{}, gwerrors.ErrSessionExpired
	}
	session.Touch()
	return session, nil
}

func (sh *SessionHandler) LoadOrCreate(c echo.Context) (models.Session, error) {
	session, err := sh.Load(c)
	if err != nil {
		switch {
		case errors.Is(err, gwerrors.ErrSessionExpired),
			errors.Is(err, gwerrors.ErrSessionNotFound):
			return sh.Create(c)
		default:
			return models.Session{}, err
		}
	}
	return session, nil
}

func (sh *SessionHandler) Save(c echo.Context) error {
	session, err := sh.Get(c)
	if err != nil {
		return err
	}
	return sh.sessions.SetSession(c.Request().Context(), session)
}

// Destroy removes the stored session and expires the cookie. Destroying a
// session that was never stored is not an error.
func (sh *SessionHandler) Destroy(c echo.Context) error {
	session, err := sh.Get(c)
	if err != nil {
		if errors.Is(err, gwerrors.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	err = sh.sessions.RemoveSession(c.Request().Context(), session.ID)
	if err != nil && !errors.Is(err, gwerrors.ErrSessionNotFound) {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     sh.cookieName,
		Value:    "",
		Secure:   true,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}

type SessionHandlerOption func(*SessionHandler) error

func WithConfig(c config.SessionsConfig) SessionHandlerOption {
	return func(sh *SessionHandler) error {
		sh.sessionMaker = NewSessionMaker(
			WithIdleSessionTTLSeconds(c.IdleSessionTTLSeconds),
			WithMaxSessionTTLSeconds(c.MaxSessionTTLSeconds),
		)
		if c.CookieName != "" {
			sh.cookieName = c.CookieName
		}
		return nil
	}
}

func WithSessionRepository(repo models.SessionRepository) SessionHandlerOption {
	return func(sh *SessionHandler) error {
		sh.sessions = repo
		return nil
	}
}

func NewSessionHandler(options ...SessionHandlerOption) (SessionHandler, error) {
	sh := SessionHandler{cookieName: DefaultSessionCookieName}
	for _, opt := range options {
		if err := opt(&sh); err != nil {
			return SessionHandler{}, err
		}
	}
	if sh.sessionMaker == nil {
		return SessionHandler{}, fmt.Errorf("session maker is not initialized")
	}
	if sh.sessions == nil {
		return SessionHandler{}, fmt.Errorf("session repository is not initialized")
	}
	return sh, nil
}
