package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/userhub/internal/server/repositories/avatars"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRepositoryManager vends document-store repositories sharing one
// client.
type MongoRepositoryManager struct {
	client *mongo.Client
	db     *mongo.Database
}

// mongoConnect and mongoPing are seams for testing.
var mongoConnect = func(ctx context.Context, opts ...*options.ClientOptions) (*mongo.Client, error) {
	return mongo.Connect(ctx, opts...)
}

var mongoPing = func(ctx context.Context, c *mongo.Client) error {
	return c.Ping(ctx, readpref.Primary())
}

func NewMongoRepositoryManager(ctx context.Context, uri, dbName string) (*MongoRepositoryManager, error) {
	client, err := mongoConnect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := mongoPing(ctx, client); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &MongoRepositoryManager{client: client, db: client.Database(dbName)}, nil
}

func (m *MongoRepositoryManager) Users() users.Repository {
	return users.NewMongoRepository(m.db)
}

func (m *MongoRepositoryManager) Avatars() avatars.Repository {
	return avatars.NewMongoRepository(m.db)
}

// RunMigrations creates the indexes the repositories rely on.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	return avatars.NewMongoRepository(m.db).EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
