package login

import (
	"errors"
	"net/http"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/feastline/feast-gateway/internal/upstream"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type emailLoginRequest struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
}

type loginResponse struct {
	User  models.UserProfile `json:"user"`
	State SessionState       `json:"state"`
}

func (l *LoginServer) PostLogin(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	var payload loginRequest
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the login payload")
	}
	_, err = l.coordinator.Login(c.Request().Context(), session.ID, payload.Username, payload.Password)
	if err != nil {
		return translateError(err)
	}
	return l.respondWithProfile(c, session.ID)
}

func (l *LoginServer) PostLoginWithEmailCode(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	var payload emailLoginRequest
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the login payload")
	}
	_, err = l.coordinator.LoginWithEmailCode(c.Request().Context(), session.ID, payload.Email, payload.VerificationCode)
	if err != nil {
		return translateError(err)
	}
	return l.respondWithProfile(c, session.ID)
}

func (l *LoginServer) PostRefresh(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	_, err = l.coordinator.Refresh(c.Request().Context(), session.ID)
	if err != nil {
		return translateError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (l *LoginServer) PostLogout(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	l.coordinator.Logout(c.Request().Context(), session.ID)
	return c.NoContent(http.StatusNoContent)
}

func (l *LoginServer) PostRegister(c echo.Context) error {
	var payload upstream.RegisterPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the registration payload")
	}
	profile, err := l.upstream.Register(c.Request().Context(), payload)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusCreated, profile)
}

func (l *LoginServer) PostSendEmailCode(c echo.Context) error {
	var payload upstream.EmailCodePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the payload")
	}
	if err := l.upstream.SendEmailCode(c.Request().Context(), payload.Email, payload.Scene); err != nil {
		return translateError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (l *LoginServer) PostResetPassword(c echo.Context) error {
	var payload upstream.ResetPasswordPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the payload")
	}
	if err := l.upstream.ResetPassword(c.Request().Context(), payload); err != nil {
		return translateError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetProfile serves the profile fresh from the upstream and refreshes the
// cached copy, falling back to the cache only when the session holds no
// usable token.
func (l *LoginServer) GetProfile(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	token := l.coordinator.TryGetValidToken(ctx, session.ID)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	profile, err := l.upstream.Profile(ctx, token)
	if err != nil {
		return translateError(err)
	}
	l.coordinator.commitProfile(ctx, session.ID, profile)
	return c.JSON(http.StatusOK, profile)
}

func (l *LoginServer) PutProfile(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	var payload upstream.UpdateProfilePayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the profile payload")
	}
	ctx := c.Request().Context()
	token := l.coordinator.TryGetValidToken(ctx, session.ID)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	profile, err := l.upstream.UpdateProfile(ctx, token, payload)
	if err != nil {
		return translateError(err)
	}
	l.coordinator.commitProfile(ctx, session.ID, profile)
	return c.JSON(http.StatusOK, profile)
}

func (l *LoginServer) PutPassword(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	var payload upstream.UpdatePasswordPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the password payload")
	}
	ctx := c.Request().Context()
	token := l.coordinator.TryGetValidToken(ctx, session.ID)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	if err := l.upstream.UpdatePassword(ctx, token, payload); err != nil {
		return translateError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (l *LoginServer) GetTabs(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	tabs, err := l.coordinator.Tabs(c.Request().Context(), session.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tabs)
}

func (l *LoginServer) PutTabs(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	tabs := models.NewSerializableOrderedMap()
	if err := c.Bind(&tabs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot parse the tabs payload")
	}
	if err := l.coordinator.SetTabs(c.Request().Context(), session.ID, tabs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (l *LoginServer) GetVendorStoreStatus(c echo.Context) error {
	session, err := l.sessionHandler.Get(c)
	if err != nil {
		return err
	}
	force := c.QueryParam("force") == "true"
	status, err := l.coordinator.VendorStoreStatus(c.Request().Context(), session.ID, force)
	if err != nil {
		return translateError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (l *LoginServer) respondWithProfile(c echo.Context, sessionID string) error {
	profile, err := l.coordinator.Profile(c.Request().Context(), sessionID)
	if err != nil && !errors.Is(err, gwerrors.ErrProfileNotFound) {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{User: profile, State: l.coordinator.State(sessionID)})
}

// translateError maps coordinator and upstream failures onto HTTP responses,
// keeping the upstream's status code and detail message where one exists.
func translateError(err error) error {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.Detail
		if message == "" {
			message = http.StatusText(statusErr.StatusCode)
		}
		return echo.NewHTTPError(statusErr.StatusCode, message)
	}
	switch {
	case errors.Is(err, gwerrors.ErrUnsupportedMode):
		return echo.NewHTTPError(http.StatusBadRequest, "refresh tokens are not enabled")
	case errors.Is(err, gwerrors.ErrMissingRefreshToken),
		errors.Is(err, gwerrors.ErrCredentialsNotFound),
		errors.Is(err, gwerrors.ErrTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, "not logged in")
	}
	return err
}
