package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/userhub/internal/common"
	"github.com/dmitrijs2005/userhub/internal/logging"
	"github.com/dmitrijs2005/userhub/internal/server/models"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/avatars"
	"github.com/dmitrijs2005/userhub/internal/server/repositories/users"
)

var errBoom = errors.New("boom")

// --- repositories ---

type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	calls   int
	creates int
	nextID  int
	err     error
}

func newFakeUsersRepo(list ...*models.User) *fakeUsersRepo {
	r := &fakeUsersRepo{byID: map[string]*models.User{}}
	for _, u := range list {
		r.byID[u.ID] = u
	}
	return r
}

func (r *fakeUsersRepo) hit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	r.nextID++
	c := *u
	c.ID = fmt.Sprintf("%024x", r.nextID)
	r.byID[c.ID] = &c
	return &c, nil
}

func (r *fakeUsersRepo) List(context.Context) ([]*models.User, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	out := []*models.User{}
	for _, u := range r.byID {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (r *fakeUsersRepo) Update(_ context.Context, id string, p *models.UserPatch) (*models.User, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Job != nil {
		c.Job = *p.Job
	}
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = *p.LastName
	}
	r.byID[id] = &c
	return &c, nil
}

func (r *fakeUsersRepo) Delete(_ context.Context, id string) (*models.User, error) {
	if err := r.hit(); err != nil {
		return nil, err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(r.byID, id)
	return u, nil
}

type fakeAvatarsRepo struct {
	mu        sync.Mutex
	records   []*models.Avatar
	nextID    int
	createErr error
	findErr   error
	deleteErr error
}

func (r *fakeAvatarsRepo) Create(_ context.Context, a *models.Avatar) (*models.Avatar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	c := *a
	c.ID = fmt.Sprintf("a%023x", r.nextID)
	r.records = append(r.records, &c)
	out := c
	return &out, nil
}

func (r *fakeAvatarsRepo) latest(foreignID string) int {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].ForeignID == foreignID {
			return i
		}
	}
	return -1
}

func (r *fakeAvatarsRepo) FindByForeignID(_ context.Context, foreignID string) (*models.Avatar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	i := r.latest(foreignID)
	if i < 0 {
		return nil, common.ErrorNotFound
	}
	out := *r.records[i]
	return &out, nil
}

func (r *fakeAvatarsRepo) DeleteByForeignID(_ context.Context, foreignID string) (*models.Avatar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return nil, r.deleteErr
	}
	i := r.latest(foreignID)
	if i < 0 {
		return nil, common.ErrorNotFound
	}
	out := *r.records[i]
	r.records = append(r.records[:i], r.records[i+1:]...)
	return &out, nil
}

func (r *fakeAvatarsRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	a *fakeAvatarsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context) error { return nil }
func (m *fakeRepoManager) Users() users.Repository             { return m.u }
func (m *fakeRepoManager) Avatars() avatars.Repository         { return m.a }
func (m *fakeRepoManager) Close(context.Context) error         { return nil }

// --- blob storage ---

type fakeBlobs struct {
	mu        sync.Mutex
	files     map[string][]byte
	writes    int
	reads     int
	deletes   int
	writeErr  error
	deleteErr error
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{files: map[string][]byte{}} }

func (b *fakeBlobs) Write(_ context.Context, name, _ string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes++
	if b.writeErr != nil {
		return b.writeErr
	}
	b.files[name] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBlobs) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	data, ok := b.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return data, nil
}

func (b *fakeBlobs) Delete(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.files[name]; !ok {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(b.files, name)
	return nil
}

func (b *fakeBlobs) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes + b.reads + b.deletes
}

// --- directory ---

type fakeDirectory struct {
	users       map[int]*models.User
	getErr      error
	createOut   *models.User
	createErr   error
	content     []byte
	downloadErr error

	// downloadGate, when set, blocks Download until it is closed.
	downloadGate chan struct{}

	gets      atomic.Int32
	creates   atomic.Int32
	downloads atomic.Int32
}

func (d *fakeDirectory) GetUser(_ context.Context, id int) (*models.User, error) {
	d.gets.Add(1)
	if d.getErr != nil {
		return nil, d.getErr
	}
	u, ok := d.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (d *fakeDirectory) CreateUser(_ context.Context, in *models.NewUser) (*models.User, error) {
	d.creates.Add(1)
	if d.createErr != nil {
		return nil, d.createErr
	}
	if d.createOut != nil {
		return d.createOut, nil
	}
	return &models.User{ID: "42", Email: in.Email, FirstName: in.FirstName, LastName: in.LastName, Job: in.Job}, nil
}

func (d *fakeDirectory) Download(ctx context.Context, _ string) ([]byte, error) {
	d.downloads.Add(1)
	if d.downloadGate != nil {
		select {
		case <-d.downloadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.downloadErr != nil {
		return nil, d.downloadErr
	}
	return d.content, nil
}

func (d *fakeDirectory) total() int {
	return int(d.gets.Load() + d.creates.Load() + d.downloads.Load())
}

// --- notifier ---

type fakeNotifier struct {
	mu     sync.Mutex
	calls  []*models.User
	err    error
	ctxErr error
}

func (n *fakeNotifier) UserCreated(ctx context.Context, u *models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, u)
	n.ctxErr = ctx.Err()
	return n.err
}

// --- wiring ---

type fixture struct {
	users     *fakeUsersRepo
	avatars   *fakeAvatarsRepo
	blobs     *fakeBlobs
	dir       *fakeDirectory
	notifier  *fakeNotifier
	avatarSvc *AvatarService
	svc       *UserService
}

func newFixture(local ...*models.User) *fixture {
	f := &fixture{
		users:    newFakeUsersRepo(local...),
		avatars:  &fakeAvatarsRepo{},
		blobs:    newFakeBlobs(),
		dir:      &fakeDirectory{users: map[int]*models.User{}},
		notifier: &fakeNotifier{},
	}
	rm := &fakeRepoManager{u: f.users, a: f.avatars}
	f.avatarSvc = NewAvatarService(rm, f.blobs, logging.Nop())
	f.svc = NewUserService(rm, f.dir, f.avatarSvc, f.notifier, time.Second, logging.Nop())
	return f
}
