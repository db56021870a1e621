// Package refreshtokens declares the server-side repository contract for
// refresh tokens.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Repository stores single-use refresh tokens.
type Repository interface {
	// Create stores token.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns the token row or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes token and reports whether a row was removed. Deleting an
	// absent token is not an error.
	Delete(ctx context.Context, token string) (bool, error)
}
