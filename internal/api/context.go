package api

import (
	"context"

	"github.com/terra-clan/contest-client/internal/models"
)

type contextKey string

const userContextKey contextKey = "participant"

// UserFromContext extracts the participant from context
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// ContextWithUser adds the participant to context
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
