package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	localID1 = "507f1f77bcf86cd799439011"
	localID2 = "507f1f77bcf86cd799439012"
)

var lindsay = &models.User{
	ID:        "8",
	Email:     "lindsay.ferguson@reqres.in",
	FirstName: "Lindsay",
	LastName:  "Ferguson",
	Avatar:    "https://reqres.in/img/faces/8-image.jpg",
}

func strptr(s string) *string { return &s }

func TestResolveUser_LocalAbsentNeverGoesRemote(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ResolveUser(context.Background(), localID1)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, "User with ID "+localID1+" not found", common.Message(err))
	assert.Zero(t, f.dir.total())
	assert.Equal(t, 1, f.users.calls)
}

func TestResolveUser_Local(t *testing.T) {
	f := newFixture(&models.User{ID: localID1, Email: "john@mail.com", Job: "Developer"})

	u, err := f.svc.ResolveUser(context.Background(), localID1)
	require.NoError(t, err)
	assert.Equal(t, "Developer", u.Job)
	assert.Zero(t, f.dir.total())
}

func TestResolveUser_LocalStoreFailure(t *testing.T) {
	f := newFixture()
	f.users.err = errBoom

	_, err := f.svc.ResolveUser(context.Background(), localID1)
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Zero(t, f.dir.total())
}

func TestResolveUser_RemoteNeverTouchesLocalStore(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay

	u, err := f.svc.ResolveUser(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, lindsay, u)
	assert.Zero(t, f.users.calls)
	assert.EqualValues(t, 1, f.dir.gets.Load())
}

func TestResolveUser_RemoteFailures(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.ResolveUser(context.Background(), "1000")
		require.ErrorIs(t, err, common.ErrorNotFound)
		assert.Equal(t, "User with id 1000 not found", common.Message(err))
		assert.Zero(t, f.users.calls)
	})

	t.Run("upstream", func(t *testing.T) {
		f := newFixture()
		f.dir.getErr = fmt.Errorf("%w: unexpected status 503", common.ErrorUpstream)

		_, err := f.svc.ResolveUser(context.Background(), "8")
		require.ErrorIs(t, err, common.ErrorUpstream)
		assert.NotErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("other", func(t *testing.T) {
		f := newFixture()
		f.dir.getErr = context.DeadlineExceeded

		_, err := f.svc.ResolveUser(context.Background(), "8")
		require.ErrorIs(t, err, common.ErrorInternal)
	})
}

func TestResolveUser_GarbageID(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ResolveUser(context.Background(), "invalid_id")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, "User with id invalid_id not found", common.Message(err))
	assert.Zero(t, f.users.calls)
	assert.Zero(t, f.dir.total())
}

func TestListUsers(t *testing.T) {
	f := newFixture(&models.User{ID: localID1})

	list, err := f.svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	f.users.err = errBoom
	_, err = f.svc.ListUsers(context.Background())
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestCreateUser_ReturnsLocalRecord(t *testing.T) {
	f := newFixture()
	in := &models.NewUser{Email: "john@mail.com", FirstName: "John", LastName: "Doe", Job: "Developer"}

	u, err := f.svc.CreateUser(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, "42", u.ID)
	assert.Len(t, u.ID, 24)
	assert.Equal(t, "john@mail.com", u.Email)
	assert.Equal(t, "Developer", u.Job)
	assert.Equal(t, 1, f.users.creates)
	assert.EqualValues(t, 1, f.dir.creates.Load())

	require.Len(t, f.notifier.calls, 1)
	assert.Equal(t, u.ID, f.notifier.calls[0].ID)
	assert.NoError(t, f.notifier.ctxErr)

	got, err := f.svc.ResolveUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestCreateUser_UsesDirectoryRepresentation(t *testing.T) {
	f := newFixture()
	f.dir.createOut = &models.User{ID: "42", Email: "canon@mail.com", FirstName: "Jon", LastName: "Doe", Avatar: "https://x/a.jpg"}

	u, err := f.svc.CreateUser(context.Background(), &models.NewUser{Email: "john@mail.com", FirstName: "John", LastName: "Doe", Job: "Dev"})
	require.NoError(t, err)
	assert.Equal(t, "canon@mail.com", u.Email)
	assert.Equal(t, "Jon", u.FirstName)
	assert.Equal(t, "Dev", u.Job)
	assert.Equal(t, "https://x/a.jpg", u.Avatar)
}

func TestCreateUser_UpstreamFailureWritesNothing(t *testing.T) {
	f := newFixture()
	f.dir.createErr = fmt.Errorf("%w: unexpected status 500", common.ErrorUpstream)

	_, err := f.svc.CreateUser(context.Background(), &models.NewUser{Email: "a@b.c", FirstName: "A", LastName: "B", Job: "C"})
	require.ErrorIs(t, err, common.ErrorUpstream)
	assert.Zero(t, f.users.calls)
	assert.Empty(t, f.notifier.calls)
}

func TestCreateUser_LocalFailureAfterUpstream(t *testing.T) {
	f := newFixture()
	f.users.err = errBoom

	_, err := f.svc.CreateUser(context.Background(), &models.NewUser{Email: "a@b.c", FirstName: "A", LastName: "B", Job: "C"})
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Contains(t, common.Message(err), "directory id 42")
	assert.EqualValues(t, 1, f.dir.creates.Load())
	assert.Empty(t, f.notifier.calls)
}

func TestCreateUser_NotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture()
	f.notifier.err = errBoom

	u, err := f.svc.CreateUser(context.Background(), &models.NewUser{Email: "a@b.c", FirstName: "A", LastName: "B", Job: "C"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Len(t, f.notifier.calls, 1)
}

// cancelOnCreate cancels the request context once the local write is done.
type cancelOnCreate struct {
	*fakeUsersRepo
	cancel context.CancelFunc
}

func (r *cancelOnCreate) Create(ctx context.Context, u *models.User) (*models.User, error) {
	defer r.cancel()
	return r.fakeUsersRepo.Create(ctx, u)
}

type cancellingManager struct {
	*fakeRepoManager
	users users.Repository
}

func (m cancellingManager) Users() users.Repository { return m.users }

func TestCreateUser_NotificationOutlivesCancelledRequest(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	f.svc.repomanager = cancellingManager{
		fakeRepoManager: &fakeRepoManager{u: f.users, a: f.avatars},
		users:           &cancelOnCreate{fakeUsersRepo: f.users, cancel: cancel},
	}

	_, err := f.svc.CreateUser(ctx, &models.NewUser{Email: "a@b.c", FirstName: "A", LastName: "B", Job: "C"})
	require.NoError(t, err)
	require.Len(t, f.notifier.calls, 1)
	assert.NoError(t, f.notifier.ctxErr)
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   models.NewUser
		msg  string
	}{
		{"email", models.NewUser{FirstName: "A", LastName: "B", Job: "C"}, "email is required"},
		{"first name", models.NewUser{Email: "a@b.c", LastName: "B", Job: "C"}, "first_name is required"},
		{"last name only markup", models.NewUser{Email: "a@b.c", FirstName: "A", LastName: "<script></script>", Job: "C"}, "last_name is required"},
		{"job", models.NewUser{Email: "a@b.c", FirstName: "A", LastName: "B"}, "job is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.CreateUser(context.Background(), &tt.in)
			require.ErrorIs(t, err, common.ErrorInvalidArgument)
			assert.Equal(t, tt.msg, common.Message(err))
			assert.Zero(t, f.dir.total())
		})
	}
}

func TestCreateUser_SanitizesInput(t *testing.T) {
	f := newFixture()

	u, err := f.svc.CreateUser(context.Background(), &models.NewUser{
		Email: " a@b.c ", FirstName: `<b>Tom</b> & "Jerry"`, LastName: "B<script>alert(1)</script>", Job: "C",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", u.Email)
	assert.Equal(t, `Tom & "Jerry"`, u.FirstName)
	assert.Equal(t, "B", u.LastName)
}

func TestUpdateUser(t *testing.T) {
	t.Run("remote id is rejected without calls", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.UpdateUser(context.Background(), "8", &models.UserPatch{Job: strptr("x")})
		require.ErrorIs(t, err, common.ErrorInvalidArgument)
		assert.Equal(t, "Invalid ID", common.Message(err))
		assert.Zero(t, f.users.calls)
		assert.Zero(t, f.dir.total())
	})

	t.Run("garbage id", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.UpdateUser(context.Background(), "invalid_id", &models.UserPatch{})
		require.ErrorIs(t, err, common.ErrorInvalidArgument)
		assert.Zero(t, f.users.calls)
	})

	t.Run("absent", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.UpdateUser(context.Background(), localID1, &models.UserPatch{Job: strptr("x")})
		require.ErrorIs(t, err, common.ErrorNotFound)
		assert.Equal(t, "User with ID "+localID1+" not found", common.Message(err))
	})

	t.Run("updates fields", func(t *testing.T) {
		f := newFixture(&models.User{ID: localID1, Email: "john@mail.com", FirstName: "John", LastName: "Doe", Job: "Developer"})

		u, err := f.svc.UpdateUser(context.Background(), localID1, &models.UserPatch{
			FirstName: strptr("Jane"), Job: strptr("<i>Designer</i>"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Jane", u.FirstName)
		assert.Equal(t, "Doe", u.LastName)
		assert.Equal(t, "Designer", u.Job)
	})

	t.Run("empty patch reads back", func(t *testing.T) {
		f := newFixture(&models.User{ID: localID1, Email: "john@mail.com"})

		u, err := f.svc.UpdateUser(context.Background(), localID1, &models.UserPatch{})
		require.NoError(t, err)
		assert.Equal(t, "john@mail.com", u.Email)
		assert.Equal(t, 1, f.users.calls)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.users.err = errBoom

		_, err := f.svc.UpdateUser(context.Background(), localID1, &models.UserPatch{Job: strptr("x")})
		require.ErrorIs(t, err, common.ErrorInternal)
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("remote id is rejected without calls", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.DeleteUser(context.Background(), "8")
		require.ErrorIs(t, err, common.ErrorInvalidArgument)
		assert.Zero(t, f.users.calls)
	})

	t.Run("absent", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.DeleteUser(context.Background(), localID1)
		require.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("returns deleted user", func(t *testing.T) {
		f := newFixture(&models.User{ID: localID1, Email: "john@mail.com"})

		u, err := f.svc.DeleteUser(context.Background(), localID1)
		require.NoError(t, err)
		assert.Equal(t, localID1, u.ID)

		_, err = f.svc.ResolveUser(context.Background(), localID1)
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})
}

func TestFetchAvatar_ExistingIsReturnedUnchanged(t *testing.T) {
	f := newFixture()
	created, err := f.avatarSvc.Create(context.Background(), "8", &models.NewAvatar{Filename: "8_a.jpg", ContentType: "image/png", Content: []byte("img")})
	require.NoError(t, err)

	got, err := f.svc.FetchAvatar(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Zero(t, f.dir.total())
}

func TestFetchAvatar_BackfillsRemoteAvatar(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.dir.content = []byte{0xff, 0xd8, 0xff}
	f.svc.newFilename = func(id, ext string) string { return id + "_fixed" + ext }

	got, err := f.svc.FetchAvatar(context.Background(), "8")
	require.NoError(t, err)

	assert.Equal(t, "8", got.ForeignID)
	assert.Equal(t, "image/jpeg", got.ContentType)
	assert.Equal(t, "8_fixed.jpg", got.Filename)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, got.Content)
	assert.Equal(t, md5hex(got.Content), got.MD5)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, f.blobs.files["8_fixed.jpg"])
	assert.Zero(t, f.users.calls)
}

func TestFetchAvatar_DefaultFilename(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.dir.content = []byte("img")

	got, err := f.svc.FetchAvatar(context.Background(), "8")
	require.NoError(t, err)
	assert.Regexp(t, `^8_[0-9a-f-]{36}\.jpg$`, got.Filename)
}

func TestFetchAvatar_TwiceDownloadsOnce(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.dir.content = []byte("img")

	first, err := f.svc.FetchAvatar(context.Background(), "8")
	require.NoError(t, err)
	second, err := f.svc.FetchAvatar(context.Background(), "8")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, f.dir.downloads.Load())
	assert.Equal(t, 1, f.avatars.count())
}

func TestFetchAvatar_ConcurrentCallsDownloadOnce(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.dir.content = []byte("img")
	f.dir.downloadGate = make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	results := make([]*models.Avatar, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.FetchAvatar(context.Background(), "8")
		}(i)
	}

	close(f.dir.downloadGate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID)
	}
	assert.EqualValues(t, 1, f.dir.downloads.Load())
	assert.Equal(t, 1, f.avatars.count())
}

func TestFetchAvatar_LocalUserWithoutAvatarURL(t *testing.T) {
	f := newFixture(&models.User{ID: localID1, Email: "john@mail.com"})

	_, err := f.svc.FetchAvatar(context.Background(), localID1)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Zero(t, f.dir.total())
	assert.Zero(t, f.avatars.count())
}

func TestFetchAvatar_UnknownRemoteUser(t *testing.T) {
	f := newFixture()

	_, err := f.svc.FetchAvatar(context.Background(), "1000")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, "User with id 1000 not found", common.Message(err))
	assert.Zero(t, f.dir.downloads.Load())
}

func TestFetchAvatar_LookupFailureSkipsBackfill(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.avatars.findErr = errBoom

	_, err := f.svc.FetchAvatar(context.Background(), "8")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Zero(t, f.dir.total())
}

func TestFetchAvatar_MetadataWithoutBlob(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	_, err := f.avatars.Create(context.Background(), &models.Avatar{ForeignID: "8", Filename: "lost.jpg"})
	require.NoError(t, err)

	_, err = f.svc.FetchAvatar(context.Background(), "8")
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Zero(t, f.dir.total())
}

func TestFetchAvatar_DownloadFailure(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.dir.downloadErr = fmt.Errorf("%w: download failed: 404 Not Found", common.ErrorUpstream)

	_, err := f.svc.FetchAvatar(context.Background(), "8")
	require.ErrorIs(t, err, common.ErrorUpstream)
	assert.Zero(t, f.avatars.count())
	assert.Zero(t, f.blobs.writes)
}

func TestFetchAvatar_CanonicalKey(t *testing.T) {
	f := newFixture()
	_, err := f.avatarSvc.Create(context.Background(), "8", &models.NewAvatar{Filename: "8_a.jpg", Content: []byte("img")})
	require.NoError(t, err)

	got, err := f.svc.FetchAvatar(context.Background(), "08")
	require.NoError(t, err)
	assert.Equal(t, "8", got.ForeignID)
}

func TestUploadAvatar(t *testing.T) {
	in := &models.NewAvatar{Filename: "me.jpg", Content: []byte("img")}

	t.Run("stores for a resolvable user", func(t *testing.T) {
		f := newFixture(&models.User{ID: localID1})

		got, err := f.svc.UploadAvatar(context.Background(), localID1, in)
		require.NoError(t, err)
		assert.Equal(t, localID1, got.ForeignID)
		assert.Equal(t, common.AvatarContentType, got.ContentType)
		assert.Regexp(t, `^`+localID1+`_[0-9a-f-]{36}\.jpg$`, got.Filename)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.UploadAvatar(context.Background(), localID1, in)
		require.ErrorIs(t, err, common.ErrorNotFound)
		assert.Zero(t, f.blobs.calls())
	})

	t.Run("existing avatar conflicts", func(t *testing.T) {
		f := newFixture(&models.User{ID: localID1})
		_, err := f.svc.UploadAvatar(context.Background(), localID1, in)
		require.NoError(t, err)

		_, err = f.svc.UploadAvatar(context.Background(), localID1, &models.NewAvatar{Filename: "other.jpg", Content: []byte("x")})
		require.ErrorIs(t, err, common.ErrorAlreadyExists)
		assert.Equal(t, 1, f.avatars.count())
	})

	t.Run("invalid filename", func(t *testing.T) {
		f := newFixture(&models.User{ID: localID1})

		_, err := f.svc.UploadAvatar(context.Background(), localID1, &models.NewAvatar{Filename: "a/b.jpg"})
		require.ErrorIs(t, err, common.ErrorInvalidArgument)
	})
}

func TestDeleteAvatar(t *testing.T) {
	f := newFixture()

	_, err := f.svc.DeleteAvatar(context.Background(), "1000")
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, "Avatar with ID: 1000 not found", common.Message(err))
	assert.Zero(t, f.blobs.calls())
	assert.Zero(t, f.dir.total())

	created, err := f.avatarSvc.Create(context.Background(), "8", &models.NewAvatar{Filename: "8_a.jpg", Content: []byte("img")})
	require.NoError(t, err)

	got, err := f.svc.DeleteAvatar(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestUploadAvatar_OwnersKeepSeparateBlobs(t *testing.T) {
	f := newFixture(&models.User{ID: localID1}, &models.User{ID: localID2})
	ctx := context.Background()

	first, err := f.svc.UploadAvatar(ctx, localID1, &models.NewAvatar{Filename: "me.jpg", Content: []byte("AAAA")})
	require.NoError(t, err)
	second, err := f.svc.UploadAvatar(ctx, localID2, &models.NewAvatar{Filename: "me.jpg", Content: []byte("BBBB")})
	require.NoError(t, err)
	assert.NotEqual(t, first.Filename, second.Filename)

	got, err := f.svc.FetchAvatar(ctx, localID1)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), got.Content)
	assert.Equal(t, md5hex([]byte("AAAA")), got.MD5)

	_, err = f.svc.DeleteAvatar(ctx, localID2)
	require.NoError(t, err)

	got, err = f.svc.FetchAvatar(ctx, localID1)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), got.Content)
	assert.Zero(t, f.dir.total())
}

func TestAvatarExt(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"jpg", "me.jpg", ".jpg"},
		{"upper case", "Me.PNG", ".png"},
		{"no extension", "me", ".jpg"},
		{"punctuation", "me.j$g", ".jpg"},
		{"too long", "me.verylongext", ".jpg"},
		{"last only", "archive.tar.gz", ".gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, avatarExt(tt.in))
		})
	}
}

func TestFetchAvatar_CancelledCallerDoesNotFailSharedBackfill(t *testing.T) {
	f := newFixture()
	f.dir.users[8] = lindsay
	f.dir.content = []byte("img")
	f.dir.downloadGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.FetchAvatar(ctx, "8")
		firstErr <- err
	}()

	require.Eventually(t, func() bool { return f.dir.downloads.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		avatar *models.Avatar
		err    error
	}
	second := make(chan result, 1)
	go func() {
		a, err := f.svc.FetchAvatar(context.Background(), "8")
		second <- result{a, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	require.ErrorIs(t, err, context.Canceled)

	close(f.dir.downloadGate)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "8", res.avatar.ForeignID)
	assert.EqualValues(t, 1, f.dir.downloads.Load())
	assert.Equal(t, 1, f.avatars.count())
}
