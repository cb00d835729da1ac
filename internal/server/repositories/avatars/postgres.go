package avatars

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/dbx"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var newID = func() string { return primitive.NewObjectID().Hex() }

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores metadata only; Content is not persisted here.
func (r *PostgresRepository) Create(ctx context.Context, avatar *models.Avatar) (*models.Avatar, error) {

	query :=
		`INSERT INTO avatars (id, foreign_id, filename, content_type, md5)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	created := *avatar
	created.ID = newID()

	err := r.db.QueryRowContext(ctx, query,
		created.ID, created.ForeignID, created.Filename, created.ContentType, created.MD5).
		Scan(&created.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &created, nil
}

// FindByForeignID returns the latest record of foreignID. Ties on
// created_at go to the larger id, which matches the document store.
func (r *PostgresRepository) FindByForeignID(ctx context.Context, foreignID string) (*models.Avatar, error) {
	query :=
		`SELECT id, foreign_id, filename, content_type, md5, created_at FROM avatars
		 WHERE foreign_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, foreignID))
}

// DeleteByForeignID removes the latest record of foreignID in one statement
// and returns it.
func (r *PostgresRepository) DeleteByForeignID(ctx context.Context, foreignID string) (*models.Avatar, error) {
	query :=
		`DELETE FROM avatars
		 WHERE id = (
		   SELECT id FROM avatars WHERE foreign_id = $1
		   ORDER BY created_at DESC, id DESC
		   LIMIT 1
		 )
		 RETURNING id, foreign_id, filename, content_type, md5, created_at`

	return r.scanOne(r.db.QueryRowContext(ctx, query, foreignID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Avatar, error) {
	a := &models.Avatar{}
	err := row.Scan(&a.ID, &a.ForeignID, &a.Filename, &a.ContentType, &a.MD5, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}
