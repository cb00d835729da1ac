package avatars

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "avatars"

type avatarDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	ForeignID   string             `bson:"foreignId"`
	Filename    string             `bson:"filename"`
	ContentType string             `bson:"contentType"`
	MD5         string             `bson:"md5"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d *avatarDocument) toModel() *models.Avatar {
	return &models.Avatar{
		ID:          d.ID.Hex(),
		ForeignID:   d.ForeignID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		MD5:         d.MD5,
		CreatedAt:   d.CreatedAt,
	}
}

var now = func() time.Time { return time.Now().UTC() }

// latestFirst orders records of one foreign id newest first; _id breaks
// ties within the same millisecond.
var latestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the lookup index on (foreignId, createdAt).
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "foreignId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, avatar *models.Avatar) (*models.Avatar, error) {
	doc := &avatarDocument{
		ID:          primitive.NewObjectID(),
		ForeignID:   avatar.ForeignID,
		Filename:    avatar.Filename,
		ContentType: avatar.ContentType,
		MD5:         avatar.MD5,
		CreatedAt:   now(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return doc.toModel(), nil
}

func (r *MongoRepository) FindByForeignID(ctx context.Context, foreignID string) (*models.Avatar, error) {
	opts := options.FindOne().SetSort(latestFirst)
	return decodeSingle(r.coll.FindOne(ctx, bson.D{{Key: "foreignId", Value: foreignID}}, opts))
}

func (r *MongoRepository) DeleteByForeignID(ctx context.Context, foreignID string) (*models.Avatar, error) {
	opts := options.FindOneAndDelete().SetSort(latestFirst)
	return decodeSingle(r.coll.FindOneAndDelete(ctx, bson.D{{Key: "foreignId", Value: foreignID}}, opts))
}

func decodeSingle(res *mongo.SingleResult) (*models.Avatar, error) {
	var doc avatarDocument
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc.toModel(), nil
}
