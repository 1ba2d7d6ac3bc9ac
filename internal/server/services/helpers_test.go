package services

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/events"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/logo"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

var (
	alice = auth.Identity{UserID: "alice", Role: "user"}
	bob   = auth.Identity{UserID: "bob", Role: "user"}
	admin = auth.Identity{UserID: "root", Role: "admin"}
)

type fakeLogos struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeLogos) ResolveDetailed(_ context.Context, website string) logo.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, website)
	return logo.Result{
		URL:    "https://logo.test/" + logo.Clean(website),
		Status: models.LogoStatusSuccess,
		Source: models.LogoSourceVerified,
	}
}

func (f *fakeLogos) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyStore wraps a real store and injects failures.
type flakyStore struct {
	blobstore.Store
	putErr    error
	deleteErr error
	statErr   error
	deletes   []string
}

func (f *flakyStore) Put(ctx context.Context, r io.Reader, m blobstore.Metadata) (blobstore.PutResult, error) {
	if f.putErr != nil {
		return blobstore.PutResult{}, f.putErr
	}
	return f.Store.Put(ctx, r, m)
}

func (f *flakyStore) Delete(ctx context.Context, id string) error {
	f.deletes = append(f.deletes, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, id)
}

func (f *flakyStore) Stat(ctx context.Context, id string) (blobstore.Metadata, error) {
	if f.statErr != nil {
		return blobstore.Metadata{}, f.statErr
	}
	return f.Store.Stat(ctx, id)
}

// failingRepoManager returns a repository whose writes fail with err.
type failingRepoManager struct {
	repomanager.RepositoryManager
	err error
}

type failingRepo struct {
	accounts.Repository
	err error
}

func (f failingRepo) Create(context.Context, *models.Account) error { return f.err }
func (f failingRepo) Update(context.Context, *models.Account) error { return f.err }

func (m failingRepoManager) Accounts() accounts.Repository {
	return failingRepo{Repository: m.RepositoryManager.Accounts(), err: m.err}
}

func (m failingRepoManager) WithinTx(ctx context.Context, fn func(context.Context, accounts.Repository) error) error {
	return fn(ctx, m.Accounts())
}

// lockingRepoManager records how WithinTx callers read rows.
type lockingRepoManager struct {
	repomanager.RepositoryManager

	mu       sync.Mutex
	locked   []string
	unlocked []string
}

type lockingRepo struct {
	accounts.Repository
	m *lockingRepoManager
}

func (r lockingRepo) GetForUpdate(ctx context.Context, id string) (*models.Account, error) {
	r.m.mu.Lock()
	r.m.locked = append(r.m.locked, id)
	r.m.mu.Unlock()
	return r.Repository.GetForUpdate(ctx, id)
}

func (r lockingRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.m.mu.Lock()
	r.m.unlocked = append(r.m.unlocked, id)
	r.m.mu.Unlock()
	return r.Repository.GetByID(ctx, id)
}

func (m *lockingRepoManager) WithinTx(ctx context.Context, fn func(context.Context, accounts.Repository) error) error {
	return m.RepositoryManager.WithinTx(ctx, func(ctx context.Context, repo accounts.Repository) error {
		return fn(ctx, lockingRepo{Repository: repo, m: m})
	})
}

type fixture struct {
	repos  *repomanager.InMemoryRepositoryManager
	store  *flakyStore
	logos  *fakeLogos
	pub    *recordingPublisher
	svc    *AccountService
	files  *FileGateway
	maint  *MaintenanceService
	logger logging.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	local, err := blobstore.NewLocalStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	f := &fixture{
		repos:  repomanager.NewInMemoryRepositoryManager(),
		store:  &flakyStore{Store: local},
		logos:  &fakeLogos{},
		pub:    &recordingPublisher{},
		logger: logging.Nop(),
	}
	f.svc = NewAccountService(f.repos, f.store, f.logos, f.pub, f.logger, 0)
	f.files = NewFileGateway(f.repos, f.store, f.logger)
	f.maint = NewMaintenanceService(f.repos, f.store, f.logos, f.pub, f.logger)
	return f
}

func input(username, website string) AccountInput {
	return AccountInput{
		Website:  website,
		Name:     website,
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter22",
	}
}

func pdf(content string) *FileUpload {
	return &FileUpload{
		Reader:      strings.NewReader(content),
		Filename:    "scan.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(content)),
	}
}

func strp(s string) *string { return &s }
