// Package users holds the local user store: locally created users keyed by
// a generated 24-hex identifier.
package users

import (
	"context"

	"github.com/dmitrijs2005/userhub/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, patch *models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id string) (*models.User, error)
}
