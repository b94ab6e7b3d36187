package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters of a-z, 0-9 or underscore")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrInvalidTheme       = errors.New("theme must be light or dark")
)
