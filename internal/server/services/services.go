// Package services contains server-side business logic: UserService
// resolves user ids against the local store or the remote directory, and
// AvatarService keeps avatar metadata and content together.
package services

import (
	"context"
	"html"
	"strings"

	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/microcosm-cc/bluemonday"
)

// Directory is the remote user directory.
type Directory interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	CreateUser(ctx context.Context, in *models.NewUser) (*models.User, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Notifier receives local user creations. Its failures are only logged.
type Notifier interface {
	UserCreated(ctx context.Context, user *models.User) error
}

// AvatarStore is the avatar side of the service layer, implemented by
// AvatarService.
type AvatarStore interface {
	Create(ctx context.Context, foreignID string, in *models.NewAvatar) (*models.Avatar, error)
	FindOne(ctx context.Context, foreignID string) (*models.Avatar, error)
	Delete(ctx context.Context, foreignID string) (*models.DeletedAvatar, error)
}

var textPolicy = bluemonday.StrictPolicy()

// sanitize strips markup from user supplied text and returns it unescaped.
func sanitize(val string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(val)))
}

func sanitizePtr(val *string) *string {
	if val == nil {
		return nil
	}
	s := sanitize(*val)
	return &s
}
