package service

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrDuplicateEmail           = errors.New("email already registered")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrNotVerified              = errors.New("email not verified")
	ErrInvalidRefreshToken      = errors.New("invalid refresh token")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrNotFound                 = errors.New("todo not found")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
)

// UserMessage renders a validation error for display: the ErrInvalidInput
// prefix is dropped and the first letter is upper-cased.
func UserMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, ErrInvalidInput) {
		msg = strings.TrimPrefix(msg, ErrInvalidInput.Error()+": ")
	}
	r, size := utf8.DecodeRuneInString(msg)
	if size == 0 {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
