package auth

import "errors"

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrWrongTokenType     = errors.New("wrong token type")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInactiveJudge      = errors.New("judge account is disabled")
	ErrMissingSecret      = errors.New("jwt secret is not configured")
)
