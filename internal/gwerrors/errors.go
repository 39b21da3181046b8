// Package gwerrors contains all common errors used by the gateway.
package gwerrors

import "fmt"

var ErrSessionParse = fmt.Errorf("cannot parse session from context")
var ErrSessionNotFound = fmt.Errorf("cannot find the session")
var ErrSessionExpired = fmt.Errorf("the session is expired")
var ErrCredentialsNotFound = fmt.Errorf("the credentials cannot be found")
var ErrTokenExpired = fmt.Errorf("the token is expired")
var ErrUnsupportedMode = fmt.Errorf("refresh tokens are not supported in this deployment")
var ErrMissingRefreshToken = fmt.Errorf("no refresh token is stored")
var ErrAuthenticationExpired = fmt.Errorf("the session authentication has expired")
var ErrProfileNotFound = fmt.Errorf("the user profile cannot be found")
var ErrNotFound = fmt.Errorf("the requested resource cannot be found")
