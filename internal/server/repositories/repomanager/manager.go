// Package repomanager opens the configured database and vends the
// repositories bound to it.
package repomanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/userhub/internal/server/repositories/avatars"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Avatars() avatars.Repository
	Close(ctx context.Context) error
}

// New selects the backend from the DSN scheme: mongodb:// and
// mongodb+srv:// open the document store, postgres:// and postgresql://
// the SQL store. dbName is only used by the document store.
func New(ctx context.Context, dsn, dbName string) (RepositoryManager, error) {
	switch {
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongoRepositoryManager(ctx, dsn, dbName)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresRepositoryManager(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn scheme: %q", schemeOf(dsn))
	}
}

func schemeOf(dsn string) string {
	scheme, _, ok := strings.Cut(dsn, "://")
	if !ok {
		return ""
	}
	return scheme
}
