// Package avatars holds avatar metadata. Content lives in blob storage;
// records carry only the filename and MD5 of the bytes.
package avatars

import (
	"context"

	"github.com/dmitrijs2005/userhub/internal/server/models"
)

// Repository stores avatar metadata keyed by foreign id. Several records
// may share a foreign id; lookups and deletes act on the latest one.
type Repository interface {
	Create(ctx context.Context, avatar *models.Avatar) (*models.Avatar, error)
	FindByForeignID(ctx context.Context, foreignID string) (*models.Avatar, error)
	DeleteByForeignID(ctx context.Context, foreignID string) (*models.Avatar, error)
}
