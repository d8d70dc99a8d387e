// Package authctx carries the authenticated user on a request context.
package authctx

import (
	"context"

	"github.com/taskflow/taskflow-api/internal/core/domain"
)

type userKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// User returns the user attached by WithUser, if any.
func User(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(*domain.User)
	return u, ok && u != nil
}
