// Package users declares the user repository contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

type Repository interface {
	// Create stores user. A taken email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByEmail returns common.ErrorNotFound when no user has email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
