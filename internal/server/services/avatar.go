package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/filex"
	"github.com/dmitrijs2005/userhub/internal/logging"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userhub/internal/server/storage"
)

// AvatarService stores avatar content in blob storage and its metadata in
// the database. The two are not written atomically.
type AvatarService struct {
	repomanager repomanager.RepositoryManager
	blobs       storage.BlobStore
	logger      logging.Logger
}

func NewAvatarService(m repomanager.RepositoryManager, blobs storage.BlobStore, logger logging.Logger) *AvatarService {
	return &AvatarService{
		repomanager: m,
		blobs:       blobs,
		logger:      logger.With("module", "avatars"),
	}
}

// Create writes the blob first, then inserts the metadata. A failed blob
// write leaves no record; a failed insert leaves the blob behind.
func (s *AvatarService) Create(ctx context.Context, foreignID string, in *models.NewAvatar) (*models.Avatar, error) {
	if !filex.IsPlainName(in.Filename) {
		return nil, common.NewError(common.ErrorInvalidArgument, "Invalid filename %q", in.Filename)
	}

	if err := s.blobs.Write(ctx, in.Filename, in.ContentType, in.Content); err != nil {
		s.logger.Error(ctx, "blob write failed", "filename", in.Filename, "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to write an avatar %s", in.Filename)
	}

	sum := md5.Sum(in.Content)
	created, err := s.repomanager.Avatars().Create(ctx, &models.Avatar{
		ForeignID:   foreignID,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		MD5:         hex.EncodeToString(sum[:]),
	})
	if err != nil {
		s.logger.Error(ctx, "avatar insert failed", "foreign_id", foreignID, "filename", in.Filename, "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to save an avatar %s", in.Filename)
	}

	created.Content = in.Content
	s.logger.Info(ctx, "avatar created", "foreign_id", foreignID, "id", created.ID)
	return created, nil
}

func (s *AvatarService) FindOne(ctx context.Context, foreignID string) (*models.Avatar, error) {
	avatar, err := s.repomanager.Avatars().FindByForeignID(ctx, foreignID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "avatar not found", "foreign_id", foreignID)
			return nil, common.NewError(common.ErrorNotFound, "Avatar with ID: %s not found", foreignID)
		}
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to retrieve an avatar")
	}

	content, err := s.blobs.Read(ctx, avatar.Filename)
	if err != nil {
		s.logger.Error(ctx, "blob read failed", "filename", avatar.Filename, "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to read an avatar %s", avatar.Filename)
	}

	avatar.Content = content
	return avatar, nil
}

// Delete removes the record, then the blob. When the blob cannot be
// removed the record is already gone and the error says so.
func (s *AvatarService) Delete(ctx context.Context, foreignID string) (*models.DeletedAvatar, error) {
	avatar, err := s.repomanager.Avatars().DeleteByForeignID(ctx, foreignID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "avatar not found", "foreign_id", foreignID)
			return nil, common.NewError(common.ErrorNotFound, "Avatar with ID: %s not found", foreignID)
		}
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to delete an avatar")
	}

	if err := s.blobs.Delete(ctx, avatar.Filename); err != nil {
		s.logger.Error(ctx, "blob delete failed, record already removed", "id", avatar.ID, "filename", avatar.Filename, "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to delete an avatar %s", avatar.Filename)
	}

	s.logger.Info(ctx, "avatar deleted", "foreign_id", foreignID, "id", avatar.ID)
	return &models.DeletedAvatar{ID: avatar.ID}, nil
}
