package services

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/filex"
	"github.com/dmitrijs2005/userhub/internal/logging"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// UserService routes id-bearing operations by id shape: local ids go to
// the local store, remote ids to the directory. A local id that is absent
// is never looked up remotely.
type UserService struct {
	repomanager   repomanager.RepositoryManager
	directory     Directory
	avatars       AvatarStore
	notifier      Notifier
	notifyTimeout time.Duration
	logger        logging.Logger

	// backfills collapses concurrent avatar backfills of one foreign id.
	backfills   singleflight.Group
	newFilename func(foreignID, ext string) string
}

func NewUserService(m repomanager.RepositoryManager, dir Directory, avatars AvatarStore, notifier Notifier, notifyTimeout time.Duration, logger logging.Logger) *UserService {
	return &UserService{
		repomanager:   m,
		directory:     dir,
		avatars:       avatars,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		logger:        logger.With("module", "users"),
		newFilename:   avatarFilename,
	}
}

// avatarFilename names blobs after their owner so that owners never share
// a blob.
func avatarFilename(foreignID, ext string) string {
	return foreignID + "_" + uuid.NewString() + ext
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// avatarExt keeps the extension of a client supplied name when it is a
// short alphanumeric one, and falls back to .jpg.
func avatarExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if !safeExt.MatchString(ext) {
		return ".jpg"
	}
	return ext
}

func notFound(raw string) error {
	return common.NewError(common.ErrorNotFound, "User with id %s not found", raw)
}

// ResolveUser returns the user behind raw, reading remote users live.
// Ids of neither shape are reported as not found.
func (s *UserService) ResolveUser(ctx context.Context, raw string) (*models.User, error) {
	id, err := models.ParseUserID(raw)
	if err != nil {
		s.logger.Warn(ctx, "unrecognised user id", "id", raw)
		return nil, notFound(raw)
	}

	switch id := id.(type) {
	case models.LocalID:
		return s.getLocal(ctx, id)
	case models.RemoteID:
		return s.getRemote(ctx, id)
	default:
		return nil, notFound(raw)
	}
}

func (s *UserService) getLocal(ctx context.Context, id models.LocalID) (*models.User, error) {
	u, err := s.repomanager.Users().GetByID(ctx, id.String())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "user not found", "id", id.String())
			return nil, common.NewError(common.ErrorNotFound, "User with ID %s not found", id)
		}
		s.logger.Error(ctx, "failed to retrieve user", "id", id.String(), "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to retrieve user")
	}
	return u, nil
}

func (s *UserService) getRemote(ctx context.Context, id models.RemoteID) (*models.User, error) {
	u, err := s.directory.GetUser(ctx, int(id))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			s.logger.Warn(ctx, "directory user not found", "id", id.String())
			return nil, notFound(id.String())
		case errors.Is(err, common.ErrorUpstream):
			s.logger.Error(ctx, "directory lookup failed", "id", id.String(), "error", err)
			return nil, common.WrapError(common.ErrorUpstream, err, "Failed to retrieve user %s from directory", id)
		default:
			return nil, common.WrapError(common.ErrorInternal, err, "Failed to retrieve user")
		}
	}
	return u, nil
}

// ListUsers returns every locally stored user.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	list, err := s.repomanager.Users().List(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to retrieve users", "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to retrieve users")
	}
	s.logger.Debug(ctx, "retrieved users", "count", len(list))
	return list, nil
}

func validateNewUser(in *models.NewUser) error {
	switch {
	case in.Email == "":
		return common.NewError(common.ErrorInvalidArgument, "email is required")
	case in.FirstName == "":
		return common.NewError(common.ErrorInvalidArgument, "first_name is required")
	case in.LastName == "":
		return common.NewError(common.ErrorInvalidArgument, "last_name is required")
	case in.Job == "":
		return common.NewError(common.ErrorInvalidArgument, "job is required")
	}
	return nil
}

// CreateUser registers the user with the directory first and stores the
// directory's representation locally. When the local write fails the
// directory record stays behind. The notifier runs before returning and
// cannot fail the call.
func (s *UserService) CreateUser(ctx context.Context, in *models.NewUser) (*models.User, error) {
	clean := &models.NewUser{
		Email:     sanitize(in.Email),
		Job:       sanitize(in.Job),
		FirstName: sanitize(in.FirstName),
		LastName:  sanitize(in.LastName),
	}
	if err := validateNewUser(clean); err != nil {
		return nil, err
	}

	remote, err := s.directory.CreateUser(ctx, clean)
	if err != nil {
		s.logger.Error(ctx, "directory create failed", "error", err)
		return nil, common.WrapError(common.ErrorUpstream, err, "Failed to create user in directory")
	}

	created, err := s.repomanager.Users().Create(ctx, &models.User{
		Email:     remote.Email,
		Job:       clean.Job,
		FirstName: remote.FirstName,
		LastName:  remote.LastName,
		Avatar:    remote.Avatar,
	})
	if err != nil {
		s.logger.Error(ctx, "local create failed after directory create", "directory_id", remote.ID, "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to create user (directory id %s was created)", remote.ID)
	}

	s.logger.Info(ctx, "user created", "id", created.ID, "directory_id", remote.ID)
	s.notifyCreated(ctx, created)
	return created, nil
}

// notifyCreated runs the notifier detached from request cancellation but
// bounded by notifyTimeout.
func (s *UserService) notifyCreated(ctx context.Context, user *models.User) {
	if s.notifier == nil {
		return
	}

	nctx := context.WithoutCancel(ctx)
	if s.notifyTimeout > 0 {
		var cancel context.CancelFunc
		nctx, cancel = context.WithTimeout(nctx, s.notifyTimeout)
		defer cancel()
	}

	if err := s.notifier.UserCreated(nctx, user); err != nil {
		s.logger.Warn(ctx, "user created notification failed", "id", user.ID, "error", err)
	}
}

// localID accepts local ids only; anything else is an invalid argument.
func localID(raw string) (models.LocalID, error) {
	id, err := models.ParseUserID(raw)
	if err != nil {
		return "", common.NewError(common.ErrorInvalidArgument, "Invalid ID")
	}
	local, ok := id.(models.LocalID)
	if !ok {
		return "", common.NewError(common.ErrorInvalidArgument, "Invalid ID")
	}
	return local, nil
}

func (s *UserService) UpdateUser(ctx context.Context, raw string, patch *models.UserPatch) (*models.User, error) {
	id, err := localID(raw)
	if err != nil {
		s.logger.Warn(ctx, "update with non-local id", "id", raw)
		return nil, err
	}

	clean := &models.UserPatch{
		Email:     sanitizePtr(patch.Email),
		Job:       sanitizePtr(patch.Job),
		FirstName: sanitizePtr(patch.FirstName),
		LastName:  sanitizePtr(patch.LastName),
	}

	if clean.Empty() {
		return s.getLocal(ctx, id)
	}

	u, err := s.repomanager.Users().Update(ctx, id.String(), clean)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "user not found", "id", id.String())
			return nil, common.NewError(common.ErrorNotFound, "User with ID %s not found", id)
		}
		s.logger.Error(ctx, "failed to update user", "id", id.String(), "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to update user")
	}

	s.logger.Info(ctx, "user updated", "id", u.ID)
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, raw string) (*models.User, error) {
	id, err := localID(raw)
	if err != nil {
		s.logger.Warn(ctx, "delete with non-local id", "id", raw)
		return nil, err
	}

	u, err := s.repomanager.Users().Delete(ctx, id.String())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "user not found", "id", id.String())
			return nil, common.NewError(common.ErrorNotFound, "User with ID %s not found", id)
		}
		s.logger.Error(ctx, "failed to delete user", "id", id.String(), "error", err)
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to delete user")
	}

	s.logger.Info(ctx, "user deleted", "id", u.ID)
	return u, nil
}

// avatarKey is the foreign id avatars of raw are stored under.
func avatarKey(raw string) string {
	if id, err := models.ParseUserID(raw); err == nil {
		return id.String()
	}
	return raw
}

// FetchAvatar returns the stored avatar of raw or, when there is none,
// downloads the user's avatar URL and stores it. Lookup failures other
// than not found are returned without a backfill.
func (s *UserService) FetchAvatar(ctx context.Context, raw string) (*models.Avatar, error) {
	key := avatarKey(raw)

	avatar, err := s.avatars.FindOne(ctx, key)
	if err == nil {
		return avatar, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	// The flight outlives the caller that started it; callers sharing it
	// only give up on their own cancellation.
	flight := context.WithoutCancel(ctx)
	ch := s.backfills.DoChan(key, func() (any, error) {
		return s.backfill(flight, raw, key)
	})

	select {
	case <-ctx.Done():
		s.logger.Warn(ctx, "avatar request cancelled during backfill", "foreign_id", key)
		return nil, common.WrapError(common.ErrorInternal, ctx.Err(), "Avatar request for %s cancelled", key)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug(ctx, "avatar backfill shared", "foreign_id", key)
		}
		return res.Val.(*models.Avatar), nil
	}
}

func (s *UserService) backfill(ctx context.Context, raw, key string) (*models.Avatar, error) {
	// A flight that finished between our lookup and DoChan already stored it.
	if avatar, err := s.avatars.FindOne(ctx, key); err == nil {
		return avatar, nil
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	user, err := s.ResolveUser(ctx, raw)
	if err != nil {
		return nil, err
	}
	if user.Avatar == "" {
		s.logger.Warn(ctx, "user has no avatar url", "id", key)
		return nil, common.NewError(common.ErrorNotFound, "Avatar with ID: %s not found", key)
	}

	content, err := s.directory.Download(ctx, user.Avatar)
	if err != nil {
		s.logger.Error(ctx, "avatar download failed", "id", key, "url", user.Avatar, "error", err)
		if errors.Is(err, common.ErrorUpstream) {
			return nil, common.WrapError(common.ErrorUpstream, err, "Failed to download avatar of user %s", key)
		}
		return nil, common.WrapError(common.ErrorInternal, err, "Failed to download avatar of user %s", key)
	}

	return s.avatars.Create(ctx, key, &models.NewAvatar{
		Filename:    s.newFilename(key, ".jpg"),
		ContentType: common.AvatarContentType,
		Content:     content,
	})
}

// UploadAvatar stores an explicitly supplied avatar for a user that
// resolves and has none yet. The blob is named after the owner; only the
// extension of the supplied filename is kept.
func (s *UserService) UploadAvatar(ctx context.Context, raw string, in *models.NewAvatar) (*models.Avatar, error) {
	if !filex.IsPlainName(in.Filename) {
		return nil, common.NewError(common.ErrorInvalidArgument, "Invalid filename %q", in.Filename)
	}

	if _, err := s.ResolveUser(ctx, raw); err != nil {
		return nil, err
	}

	key := avatarKey(raw)
	_, err := s.avatars.FindOne(ctx, key)
	switch {
	case err == nil:
		return nil, common.NewError(common.ErrorAlreadyExists, "Avatar with ID: %s already exists", key)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}

	contentType := sanitize(in.ContentType)
	if contentType == "" {
		contentType = common.AvatarContentType
	}

	return s.avatars.Create(ctx, key, &models.NewAvatar{
		Filename:    s.newFilename(key, avatarExt(in.Filename)),
		ContentType: contentType,
		Content:     in.Content,
	})
}

func (s *UserService) DeleteAvatar(ctx context.Context, raw string) (*models.DeletedAvatar, error) {
	return s.avatars.Delete(ctx, avatarKey(raw))
}
