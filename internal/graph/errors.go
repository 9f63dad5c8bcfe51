package graph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kube-rca/todo/internal/service"
)

// Error codes exposed in extensions.code.
const (
	CodeDuplicateEmail      = "DUPLICATE_EMAIL"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeNotVerified         = "NOT_VERIFIED"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeNotFound            = "NOT_FOUND"
	CodeBadUserInput        = "BAD_USER_INPUT"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeInternal            = "INTERNAL"
)

// codedError satisfies gqlerrors.ExtendedError so the code survives
// formatting into the response.
type codedError struct {
	message string
	code    string
}

func (e *codedError) Error() string { return e.message }

func (e *codedError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

var errUnauthorized = &codedError{message: "Unauthorized", code: CodeUnauthorized}

func toGraphQLError(ctx context.Context, err error) error {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		return &codedError{message: "Email already registered", code: CodeDuplicateEmail}
	case errors.Is(err, service.ErrInvalidCredentials):
		return &codedError{message: "Invalid email or password", code: CodeInvalidCredentials}
	case errors.Is(err, service.ErrNotVerified):
		return &codedError{message: "Email not verified", code: CodeNotVerified}
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return &codedError{message: "Invalid refresh token", code: CodeInvalidRefreshToken}
	case errors.Is(err, service.ErrUnauthorized):
		return errUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return &codedError{message: "Todo not found", code: CodeNotFound}
	case errors.Is(err, service.ErrInvalidInput):
		return &codedError{message: service.UserMessage(err), code: CodeBadUserInput}
	case errors.Is(err, service.ErrInvalidVerificationToken):
		return &codedError{message: "Invalid verification token", code: CodeInvalidToken}
	case errors.Is(err, service.ErrInvalidResetToken):
		return &codedError{message: "Invalid or expired reset token", code: CodeInvalidToken}
	}

	slog.ErrorContext(ctx, "resolver failed", "component", "graphql", "err", err)
	return &codedError{message: "internal server error", code: CodeInternal}
}
