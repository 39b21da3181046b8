package upstream

import (
	"errors"
	"fmt"
)

// TokenResponse is the raw token shape returned by the upstream login and
// refresh endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type EmailLoginPayload struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

type RegisterPayload struct {
	Username         string `json:"username"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	VerificationCode string `json:"verification_code"`
	Phone            string `json:"phone,omitempty"`
}

type EmailCodePayload struct {
	Email string `json:"email"`
	Scene string `json:"scene"`
}

type ResetPasswordPayload struct {
	Email            string `json:"email"`
	VerificationCode string `json:"verification_code"`
	NewPassword      string `json:"new_password"`
}

type UpdateProfilePayload struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type UpdatePasswordPayload struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// errorBody is the structured failure shape of the upstream. The message
// lives in "detail", with "msg" as a legacy alias.
type errorBody struct {
	Detail string `json:"detail"`
	Msg    string `json:"msg"`
}

func (e errorBody) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Msg
}

// StatusError is any non-2xx response from the upstream, carrying the
// status code and the human-readable message from the structured error
// field.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Detail)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
