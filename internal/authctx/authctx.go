// Package authctx carries the authenticated identity through a request
// context. Absence of a user means the request is anonymous.
package authctx

import (
	"context"

	"github.com/kube-rca/todo/internal/model"
)

type userKey struct{}

func WithUser(ctx context.Context, user model.AuthUser) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the identity stored by WithUser, if any.
func UserFrom(ctx context.Context) (model.AuthUser, bool) {
	user, ok := ctx.Value(userKey{}).(model.AuthUser)
	if !ok || user.ID == "" {
		return model.AuthUser{}, false
	}
	return user, true
}
